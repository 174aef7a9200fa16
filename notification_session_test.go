package msnp11go

import (
	"context"
	"testing"
	"time"

	"github.com/msnp11/msnp11go/msnp"
	"github.com/msnp11/msnp11go/msnptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotificationSession(t *testing.T) (*notificationSession, *msnptest.ScriptedServer) {
	t.Helper()
	serverSide, clientSide := msnptest.PipeConns()
	t.Cleanup(func() { serverSide.Close(); clientSide.Close() })

	c := &Client{
		switchboards: make(map[string]*Switchboard),
		events:       make(chan msnp.Event, 32),
	}
	ns := newNotificationSession(clientSide, c)
	c.ns = ns
	server := msnptest.NewScriptedServer(serverSide)
	return ns, server
}

func TestNegotiateVersionSuccess(t *testing.T) {
	ns, server := newTestNotificationSession(t)
	server.On("VER", func(cmd msnp.Command) [][]byte {
		return [][]byte{msnptest.Reply(cmd, "VER", "MSNP11", "CVR0")}
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, ns.negotiateVersion(ctx))
}

func TestNegotiateVersionUnsupportedProtocol(t *testing.T) {
	ns, server := newTestNotificationSession(t)
	server.On("VER", func(cmd msnp.Command) [][]byte {
		return [][]byte{msnptest.Reply(cmd, "VER", "MSNP8", "CVR0")}
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorIs(t, ns.negotiateVersion(ctx), msnp.ErrProtocolNotSupported)
}

func TestSendClientVersion(t *testing.T) {
	ns, server := newTestNotificationSession(t)
	ns.mu.Lock()
	ns.email = "me@example.com"
	ns.mu.Unlock()

	var gotArgs []string
	server.On("CVR", func(cmd msnp.Command) [][]byte {
		gotArgs = cmd.Args
		return [][]byte{msnptest.Reply(cmd, "CVR", "OK")}
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ns.sendClientVersion(ctx))
	assert.Contains(t, gotArgs, "me@example.com")
}

func TestSynchronizeAndFetchShields(t *testing.T) {
	ns, server := newTestNotificationSession(t)
	server.On("SYN", func(cmd msnp.Command) [][]byte {
		return [][]byte{msnptest.Reply(cmd, "SYN", "0", "0")}
	})
	server.On("GCF", func(cmd msnp.Command) [][]byte {
		return [][]byte{msnptest.Reply(cmd, "GCF", "Shields.xml", "0")}
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, ns.synchronize(ctx))
	assert.NoError(t, ns.fetchShields(ctx))
}

func TestCheckNumericErrorMapsKnownCodes(t *testing.T) {
	cmd, err := msnp.ParseLine("208 5")
	require.NoError(t, err)
	assert.ErrorIs(t, checkNumericError(cmd), msnp.ErrInvalidContact)

	cmd, err = msnp.ParseLine("282 6")
	require.NoError(t, err)
	assert.ErrorIs(t, checkNumericError(cmd), msnp.ErrMessageNotDelivered)

	cmd, err = msnp.ParseLine("911 7")
	require.NoError(t, err)
	busyErr := checkNumericError(cmd)
	assert.ErrorIs(t, busyErr, msnp.ErrServerIsBusy)
	assert.NotErrorIs(t, busyErr, msnp.ErrServerError)
	var serverBusy *msnp.ServerBusyError
	assert.ErrorAs(t, busyErr, &serverBusy)
	assert.Equal(t, 911, serverBusy.Code)

	cmd, err = msnp.ParseLine("500 8")
	require.NoError(t, err)
	serverErr := checkNumericError(cmd)
	assert.ErrorIs(t, serverErr, msnp.ErrServerError)
	assert.NotErrorIs(t, serverErr, msnp.ErrServerIsBusy)
}

func TestCheckNumericErrorIgnoresNonNumericVerbs(t *testing.T) {
	cmd, err := msnp.ParseLine("VER 1 MSNP11 CVR0")
	require.NoError(t, err)
	assert.NoError(t, checkNumericError(cmd))
}

func TestDispatchRoutesQNGToKeepAliveChannel(t *testing.T) {
	ns, _ := newTestNotificationSession(t)
	cmd, err := msnp.ParseLine("QNG 60")
	require.NoError(t, err)
	ns.dispatch(cmd)

	select {
	case interval := <-ns.qng:
		assert.Equal(t, "60", interval)
	case <-time.After(time.Second):
		t.Fatal("QNG was not routed to the keep-alive channel")
	}
}

func TestDispatchRoutesRNGToInvitationChannel(t *testing.T) {
	ns, _ := newTestNotificationSession(t)
	cmd, err := msnp.ParseLine("RNG 12 127.0.0.1:1234 CKI cookie")
	require.NoError(t, err)
	ns.dispatch(cmd)

	select {
	case got := <-ns.rng:
		assert.Equal(t, "RNG", got.Verb)
	case <-time.After(time.Second):
		t.Fatal("RNG was not routed to the invitation channel")
	}
}

func TestSetDisplayNameEscapesName(t *testing.T) {
	ns, server := newTestNotificationSession(t)
	var gotArgs []string
	server.On("PRP", func(cmd msnp.Command) [][]byte {
		gotArgs = cmd.Args
		return [][]byte{msnptest.Reply(cmd, "PRP", "MFN")}
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ns.SetDisplayName(ctx, "Bob Smith"))
	assert.Contains(t, gotArgs, "Bob%20Smith")
}
