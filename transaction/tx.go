package transaction

import (
	"context"
	"sync"

	"github.com/msnp11/msnp11go/msnp"
)

// Tx is a single in-flight request awaiting its correlated reply. Unlike
// the teacher's ClientTx it carries no FSM or timers: the transport is
// always TCP, so the only terminal outcomes are "a reply arrived" or "the
// connection went away".
type Tx struct {
	trID uint32

	replies   chan msnp.Command
	closeOnce sync.Once
	err       error
	mu        sync.RWMutex
}

func newTx(trID uint32) *Tx {
	return &Tx{
		trID:    trID,
		replies: make(chan msnp.Command, 1),
	}
}

// Wait blocks until a reply is delivered, the connection closes, or ctx is
// done, whichever happens first.
func (t *Tx) Wait(ctx context.Context) (msnp.Command, error) {
	select {
	case cmd, ok := <-t.replies:
		if !ok {
			return msnp.Command{}, t.Err()
		}
		return cmd, nil
	case <-ctx.Done():
		return msnp.Command{}, ctx.Err()
	}
}

func (t *Tx) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

func (t *Tx) deliver(cmd msnp.Command) {
	t.replies <- cmd
}

func (t *Tx) closeWithErr(err error) {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.replies)
	})
}
