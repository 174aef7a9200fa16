// Package transport implements the TCP connection and stream-framing layer
// shared by the notification and switchboard sessions.
package transport

import (
	"bytes"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog/log"
)

var bufPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// Connection is the minimal surface a notification or switchboard session
// needs from its transport: write a raw wire frame, and refcounted close so
// a Switchboard and the Client that created it can share ownership safely.
type Connection interface {
	Write(frame []byte) error
	Ref(i int) int
	TryClose() (int, error)
	Close() error
	RemoteAddr() net.Addr
}

// TCPConnection wraps a net.Conn with MSNP's framing and reference
// counting, the same shape as the teacher's conn: TryClose tears the
// connection down only once every reference has been released, while Close
// tears it down at once regardless of the count.
type TCPConnection struct {
	net.Conn

	mu       sync.RWMutex
	refcount int
}

func NewTCPConnection(conn net.Conn) *TCPConnection {
	return &TCPConnection{Conn: conn, refcount: 1}
}

func (c *TCPConnection) Ref(i int) int {
	c.mu.Lock()
	c.refcount += i
	ref := c.refcount
	c.mu.Unlock()
	log.Debug().Str("dst", c.RemoteAddr().String()).Int("ref", ref).Msg("connection reference change")
	return ref
}

func (c *TCPConnection) Close() error {
	c.mu.Lock()
	c.refcount = 0
	c.mu.Unlock()
	return c.Conn.Close()
}

func (c *TCPConnection) TryClose() (int, error) {
	c.mu.Lock()
	c.refcount--
	ref := c.refcount
	c.mu.Unlock()

	if ref > 0 {
		return ref, nil
	}
	if ref < 0 {
		log.Warn().Str("dst", c.RemoteAddr().String()).Int("ref", ref).Msg("connection ref went negative")
		return 0, nil
	}
	return ref, c.Conn.Close()
}

// Write sends a fully-formed frame (as produced by msnp.Format/FormatPayload)
// over the wire using a pooled buffer, mirroring the teacher's WriteMsg.
func (c *TCPConnection) Write(frame []byte) error {
	buf := bufPool.Get().(*bytes.Buffer)
	defer bufPool.Put(buf)
	buf.Reset()
	buf.Write(frame)
	data := buf.Bytes()

	n, err := c.Conn.Write(data)
	if err != nil {
		return fmt.Errorf("conn %s write err=%w", c.RemoteAddr(), err)
	}
	if n != len(data) {
		return fmt.Errorf("conn %s: short write", c.RemoteAddr())
	}
	return nil
}
