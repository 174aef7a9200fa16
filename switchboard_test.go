package msnp11go

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/msnp11/msnp11go/msnp"
	"github.com/msnp11/msnp11go/msnptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a Client whose notification session is wired to one
// half of an in-memory pipe, logged in as email without running the real
// VER/CVR/USR handshake - enough for switchboard tests that only need
// Client.Email() and Client.emit() to work. The returned net.Conn is the
// far end of that pipe, for a test to script notification-server replies on.
func newTestClient(t *testing.T, email string) (*Client, net.Conn) {
	t.Helper()
	serverSide, clientSide := msnptest.PipeConns()
	t.Cleanup(func() { serverSide.Close(); clientSide.Close() })

	c := &Client{
		email:        email,
		switchboards: make(map[string]*Switchboard),
		events:       make(chan msnp.Event, 32),
	}
	c.ns = newNotificationSession(clientSide, c)
	c.ns.mu.Lock()
	c.ns.email = email
	c.ns.mu.Unlock()
	return c, serverSide
}

func acceptOne(t *testing.T, ln net.Listener) net.Conn {
	t.Helper()
	conn, err := ln.Accept()
	require.NoError(t, err)
	return conn
}

func TestNewOutgoingSwitchboardHandshake(t *testing.T) {
	c, nsServerSide := newTestClient(t, "me@example.com")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	nsServer := msnptest.NewScriptedServer(nsServerSide)
	nsServer.On("XFR", func(cmd msnp.Command) [][]byte {
		return [][]byte{msnptest.Reply(cmd, "XFR", "SB", ln.Addr().String(), "CKI", "cookie123")}
	})

	var sb *Switchboard
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		var err error
		sb, err = newOutgoingSwitchboard(ctx, c, "peer@example.com")
		assert.NoError(t, err)
	}()

	sbConn := acceptOne(t, ln)
	sbServer := msnptest.NewScriptedServer(sbConn)
	sbServer.On("USR", func(cmd msnp.Command) [][]byte {
		return [][]byte{msnptest.Reply(cmd, "USR", "OK", "me@example.com", "friendly")}
	})
	sbServer.On("CAL", func(cmd msnp.Command) [][]byte {
		return [][]byte{msnptest.Reply(cmd, "CAL", "RINGING", "9")}
	})

	<-done
	require.NotNil(t, sb)
	assert.Equal(t, "9", sb.SessionID())
	assert.Contains(t, sb.Participants(), "me@example.com")
}

func TestNewIncomingSwitchboardHandshake(t *testing.T) {
	c, _ := newTestClient(t, "me@example.com")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var sb *Switchboard
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		var err error
		sb, err = newIncomingSwitchboard(ctx, c, ln.Addr().String(), "42", "cookie")
		assert.NoError(t, err)
	}()

	sbConn := acceptOne(t, ln)
	sbServer := msnptest.NewScriptedServer(sbConn)
	sbServer.On("ANS", func(cmd msnp.Command) [][]byte {
		return [][]byte{msnptest.Reply(cmd, "ANS", "OK")}
	})

	<-done
	require.NotNil(t, sb)
	assert.Equal(t, "42", sb.SessionID())
	assert.Contains(t, sb.Participants(), "me@example.com")
}

func TestSwitchboardDispatchParticipantsAndMessages(t *testing.T) {
	c, _ := newTestClient(t, "me@example.com")
	serverSide, clientSide := msnptest.PipeConns()
	defer serverSide.Close()
	defer clientSide.Close()

	sb := newSwitchboard(clientSide, c)
	sb.setSessionID("7")

	go func() {
		serverSide.Write(msnp.Format("JOI", "bob@example.com"))
		serverSide.Write(msnp.FormatPayload("MSG", []string{"bob@example.com", "A"},
			[]byte("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\nhello there")))
		serverSide.Write(msnp.Format("BYE", "bob@example.com"))
	}()

	var gotJoin, gotMsg, gotLeave bool
	timeout := time.After(2 * time.Second)
	for !(gotJoin && gotMsg && gotLeave) {
		select {
		case ev := <-c.events:
			switch e := ev.(type) {
			case msnp.EventParticipantInSwitchboard:
				assert.Equal(t, "bob@example.com", e.Email)
				assert.Equal(t, "7", e.SessionID)
				gotJoin = true
			case msnp.EventTextMessage:
				assert.Equal(t, "hello there", e.Message)
				gotMsg = true
			case msnp.EventParticipantLeftSwitchboard:
				assert.Equal(t, "bob@example.com", e.Email)
				gotLeave = true
			}
		case <-timeout:
			t.Fatal("timed out waiting for switchboard events")
		}
	}
}

func TestBuildTextMessagePayloadEncodesStyleAndColor(t *testing.T) {
	payload := buildTextMessagePayload("hi", true, false, true, false, 0x0000ff)
	s := string(payload)
	assert.Contains(t, s, "EF=BU")
	assert.Contains(t, s, "CO=ff0000")
	assert.Contains(t, s, "hi")
}

func TestSplitMIMELowercasesHeaders(t *testing.T) {
	headers, body := splitMIME([]byte("Content-Type: text/plain\r\nX-Foo: Bar\r\n\r\nbody text"))
	assert.Equal(t, "text/plain", headers["content-type"])
	assert.Equal(t, "Bar", headers["x-foo"])
	assert.Equal(t, "body text", body)
}
