package gtpengine

import (
	"context"

	"go.uber.org/zap"
)

// Ponderer performs speculative background work while the engine waits for
// the next command.
type Ponderer interface {
	// Ponder runs until ctx is cancelled. It is called on the ponder
	// goroutine and must return promptly after cancellation; the engine does
	// not handle the next command before Ponder has returned.
	Ponder(ctx context.Context)
}

// PonderPreparer is implemented by a Ponderer that needs to prepare a ponder
// round on the main goroutine, where it may safely read the state that
// command handlers modify.
type PonderPreparer interface {
	InitPonder()
}

// PonderFunc adapts an ordinary function to the Ponderer interface.
type PonderFunc func(ctx context.Context)

// Ponder calls f(ctx).
func (f PonderFunc) Ponder(ctx context.Context) {
	f(ctx)
}

// ponderThread runs ponder rounds on a long-lived goroutine. Every round is
// a strict start / stop-acknowledge pair driven by the main goroutine; at
// most one round is in flight.
type ponderThread struct {
	ponderer Ponderer
	logger   *zap.Logger

	start chan context.Context
	done  chan struct{}
	stop  chan struct{}

	cancel context.CancelFunc
}

func newPonderThread(p Ponderer, logger *zap.Logger) *ponderThread {
	return &ponderThread{
		ponderer: p,
		logger:   logger,
		start:    make(chan context.Context),
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
	}
}

func (t *ponderThread) run() error {
	for {
		select {
		case <-t.stop:
			return nil
		case ctx := <-t.start:
			t.ponder(ctx)
			t.done <- struct{}{}
		}
	}
}

func (t *ponderThread) ponder(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Ponder panicked", zap.Any("panic", r))
		}
	}()
	t.ponderer.Ponder(ctx)
}

// initPonder prepares the round on the calling goroutine. A panic is logged
// and the round is started anyway.
func (t *ponderThread) initPonder() {
	p, ok := t.ponderer.(PonderPreparer)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("InitPonder panicked", zap.Any("panic", r))
		}
	}()
	p.InitPonder()
}

// startPonder begins a ponder round. It must be followed by stopPonder.
func (t *ponderThread) startPonder() {
	t.initPonder()
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.logger.Debug("Start pondering")
	t.start <- ctx
}

// stopPonder cancels the current round and blocks until Ponder returned.
func (t *ponderThread) stopPonder() {
	t.cancel()
	<-t.done
	t.cancel = nil
	t.logger.Debug("Pondering stopped")
}

// quit ends the goroutine. No round may be in flight.
func (t *ponderThread) quit() {
	close(t.stop)
}
