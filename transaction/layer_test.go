package transaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/msnp11/msnp11go/msnp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	frames [][]byte
	err    error
}

func (w *recordingWriter) Write(frame []byte) error {
	if w.err != nil {
		return w.err
	}
	w.frames = append(w.frames, frame)
	return nil
}

func TestNextTrIDMonotonic(t *testing.T) {
	l := NewLayer()
	first := l.NextTrID()
	second := l.NextTrID()
	third := l.NextTrID()
	assert.Less(t, first, second)
	assert.Less(t, second, third)
}

func TestRequestThenDeliverResolvesWait(t *testing.T) {
	l := NewLayer()
	w := &recordingWriter{}

	tx, err := l.Request(context.Background(), w, 1, []byte("VER 1 MSNP11 CVR0\r\n"))
	require.NoError(t, err)
	require.Len(t, w.frames, 1)

	reply, err := msnp.ParseLine("VER 1 MSNP11 CVR0")
	require.NoError(t, err)
	assert.True(t, l.Deliver(reply))

	got, err := tx.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "VER", got.Verb)
}

func TestDeliverUnregisteredTrIDReturnsFalse(t *testing.T) {
	l := NewLayer()
	cmd, err := msnp.ParseLine("VER 99 MSNP11 CVR0")
	require.NoError(t, err)
	assert.False(t, l.Deliver(cmd))
}

func TestRequestWriteFailureClosesTx(t *testing.T) {
	l := NewLayer()
	w := &recordingWriter{err: errors.New("broken pipe")}

	_, err := l.Request(context.Background(), w, 1, []byte("VER 1 MSNP11 CVR0\r\n"))
	assert.Error(t, err)
	assert.Empty(t, l.txs)
}

func TestCloseTerminatesOutstandingTransactions(t *testing.T) {
	l := NewLayer()
	w := &recordingWriter{}

	tx, err := l.Request(context.Background(), w, 1, []byte("VER 1 MSNP11 CVR0\r\n"))
	require.NoError(t, err)

	l.Close()

	_, err = tx.Wait(context.Background())
	assert.ErrorIs(t, err, msnp.ErrDisconnected)
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	l := NewLayer()
	w := &recordingWriter{}

	tx, err := l.Request(context.Background(), w, 1, []byte("VER 1 MSNP11 CVR0\r\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = tx.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscribeBeforeWriteOrdering(t *testing.T) {
	// A reply racing in immediately after Write returns must still be
	// deliverable, since Request registers the Tx before writing.
	l := NewLayer()
	w := &recordingWriter{}

	tx, err := l.Request(context.Background(), w, 7, []byte("PNG\r\n"))
	require.NoError(t, err)

	reply, err := msnp.ParseLine("QNG 50")
	require.NoError(t, err)
	reply.Args = []string{"7", "50"}

	require.True(t, l.Deliver(reply))
	got, err := tx.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "QNG", got.Verb)
}
