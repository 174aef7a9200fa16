// Package msnptest provides fakes for exercising the notification and
// switchboard session state machines without a real MSNP server, mirroring
// the teacher's fakes and siptest packages.
package msnptest

import (
	"io"
	"net"
	"sync"
	"testing"
)

// Conn is an in-memory net.Conn substitute whose Reader/Writer a test wires
// up directly, the same shape as the teacher's fakes.TCPConn.
type Conn struct {
	net.Conn
	LAddr net.TCPAddr
	RAddr net.TCPAddr

	Reader io.Reader
	Writer io.Writer

	mu sync.Mutex
}

func (c *Conn) LocalAddr() net.Addr  { return &c.LAddr }
func (c *Conn) RemoteAddr() net.Addr { return &c.RAddr }

func (c *Conn) Read(p []byte) (int, error) {
	return c.Reader.Read(p)
}

func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	trace.Tracef("conn -> %q", p)
	return c.Writer.Write(p)
}

func (c *Conn) Close() error { return nil }

// ReadFrame reads whatever bytes are available and fails the test if none
// arrived, for asserting on a command a session under test just wrote.
func (c *Conn) ReadFrame(t testing.TB) []byte {
	buf := make([]byte, 65536)
	n, err := c.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatal(err)
	}
	if n == 0 {
		t.Fatal("no bytes received")
	}
	trace.Tracef("conn <- %q", buf[:n])
	return buf[:n]
}

// PipeConns returns two connected net.Conn halves, one for the session
// under test and one for the test driving it, built on net.Pipe.
func PipeConns() (net.Conn, net.Conn) {
	return net.Pipe()
}
