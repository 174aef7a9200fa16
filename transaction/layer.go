// Package transaction correlates outgoing MSNP commands with their
// replies. MSNP runs exclusively over TCP and has no notion of a
// retransmission timer ladder the way SIP does, so this is a much smaller
// relative of the teacher's transaction.Layer: a subscribe-before-write
// store keyed by transaction id, not an FSM with timers A through K.
package transaction

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/msnp11/msnp11go/msnp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Writer is the minimal write surface the correlator needs from a
// connection; transport.Connection satisfies it.
type Writer interface {
	Write(frame []byte) error
}

// Layer owns the set of in-flight transactions for one connection and the
// monotonic transaction id counter used to generate new ones.
type Layer struct {
	log zerolog.Logger

	mu  sync.Mutex
	txs map[uint32]*Tx

	nextID uint32
}

func NewLayer() *Layer {
	return &Layer{
		txs: make(map[uint32]*Tx),
		log: log.Logger.With().Str("caller", "transaction<Layer>").Logger(),
	}
}

// NextTrID returns the next transaction id to use, starting at 1 and
// wrapping if it ever overflows (it won't in any real session's lifetime).
func (l *Layer) NextTrID() uint32 {
	return atomic.AddUint32(&l.nextID, 1)
}

// Request registers a new Tx for trID and writes frame, in that order, so
// a reply racing in on the reader goroutine can never arrive before the
// transaction exists to receive it. This mirrors the teacher's
// transaction.Layer.Request/ClientTx.Init ordering.
func (l *Layer) Request(ctx context.Context, w Writer, trID uint32, frame []byte) (*Tx, error) {
	tx := newTx(trID)

	l.mu.Lock()
	l.txs[trID] = tx
	l.mu.Unlock()

	if err := w.Write(frame); err != nil {
		l.mu.Lock()
		delete(l.txs, trID)
		l.mu.Unlock()
		tx.closeWithErr(err)
		return nil, fmt.Errorf("transaction: write request: %w", err)
	}

	return tx, nil
}

// Deliver routes cmd to the transaction matching its transaction id, if
// any is registered and waiting. It returns false if cmd does not
// correlate with an open transaction, in which case the caller should
// treat it as an unsolicited event instead.
func (l *Layer) Deliver(cmd msnp.Command) bool {
	trID, ok := cmd.TrID()
	if !ok {
		return false
	}

	l.mu.Lock()
	tx, ok := l.txs[trID]
	if ok {
		delete(l.txs, trID)
	}
	l.mu.Unlock()

	if !ok {
		return false
	}

	tx.deliver(cmd)
	return true
}

// Close terminates every outstanding transaction with msnp.ErrDisconnected,
// called once the owning connection goes away.
func (l *Layer) Close() {
	l.mu.Lock()
	txs := l.txs
	l.txs = make(map[uint32]*Tx)
	l.mu.Unlock()

	for _, tx := range txs {
		tx.closeWithErr(msnp.ErrDisconnected)
	}
}
