// Package sample provides demonstration commands that exercise the
// pondering, interrupt and worker pool support of gtpengine.
package sample

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gtpkit/gtpengine/gtpengine"
)

// Options configures a Service.
type Options struct {
	// Workers is the number of goroutines used by sample-primes.
	Workers int

	// PonderStep is the number of iterations credited per millisecond of
	// pondering.
	PonderStep int

	Logger *zap.Logger
}

// Service is the state shared by the sample commands. It implements
// gtpengine.Ponderer, gtpengine.PonderPreparer, gtpengine.Interrupter and
// gtpengine.Hooks.
type Service struct {
	logger     *zap.Logger
	workers    int
	ponderStep int

	interrupted atomic.Bool

	// topic is written by sample-echo and read by InitPonder, both on the
	// main goroutine.
	topic string

	mu          sync.Mutex // guards ponderTopic
	ponderTopic string

	rounds     atomic.Int64
	iterations atomic.Int64
}

// New creates a service.
func New(opts Options) *Service {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PonderStep < 1 {
		opts.PonderStep = 1000
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		logger:     opts.Logger,
		workers:    opts.Workers,
		ponderStep: opts.PonderStep,
	}
}

// Register adds the sample commands and the service hooks to e. The pool
// behind sample-primes is released when e is closed.
func (s *Service) Register(e *gtpengine.Engine) error {
	e.SetHooks(s)
	for verb, f := range map[string]func(*gtpengine.Command) error{
		"sample-compute":      s.cmdCompute,
		"sample-echo":         s.cmdEcho,
		"sample-license":      cmdLicense,
		"sample-ponder-stats": s.cmdPonderStats,
	} {
		if err := e.RegisterFunc(verb, f); err != nil {
			return err
		}
	}
	return e.Register("sample-primes", newPrimesCommand(s.workers, s.logger))
}

// BeforeHandleCommand clears an interrupt left over from the previous
// command.
func (s *Service) BeforeHandleCommand() {
	s.interrupted.Store(false)
}

// BeforeWritingResponse implements gtpengine.Hooks.
func (s *Service) BeforeWritingResponse() {}

// Interrupt asks the running computation to stop.
func (s *Service) Interrupt() {
	s.interrupted.Store(true)
}

// Interrupted reports whether the current computation should stop.
func (s *Service) Interrupted() bool {
	return s.interrupted.Load()
}

// InitPonder captures the state the next ponder round works on.
func (s *Service) InitPonder() {
	s.mu.Lock()
	s.ponderTopic = s.topic
	s.mu.Unlock()
}

// Ponder counts iterations until ctx is cancelled.
func (s *Service) Ponder(ctx context.Context) {
	s.rounds.Add(1)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	var n int64
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Ponder round finished",
				zap.String("topic", s.currentPonderTopic()),
				zap.Int64("iterations", n))
			return
		case <-ticker.C:
			n += int64(s.ponderStep)
			s.iterations.Add(int64(s.ponderStep))
		}
	}
}

func (s *Service) currentPonderTopic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ponderTopic
}

func (s *Service) cmdEcho(cmd *gtpengine.Command) error {
	s.topic = cmd.ArgLine()
	cmd.WriteString(s.topic)
	return nil
}

// cmdCompute works for the given number of milliseconds, checking for an
// interrupt every millisecond.
func (s *Service) cmdCompute(cmd *gtpengine.Command) error {
	if err := cmd.CheckNumArgs(1); err != nil {
		return err
	}
	ms, err := cmd.IntArgMin(0, 0)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(time.Duration(ms) * time.Millisecond)
	for time.Now().Before(deadline) {
		if s.Interrupted() {
			cmd.WriteString("interrupted")
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	cmd.WriteString("completed")
	return nil
}

func (s *Service) cmdPonderStats(cmd *gtpengine.Command) error {
	if err := cmd.CheckNoArgs(); err != nil {
		return err
	}
	cmd.Printf("rounds %d\niterations %d\ntopic %s",
		s.rounds.Load(), s.iterations.Load(), s.currentPonderTopic())
	return nil
}

func cmdLicense(cmd *gtpengine.Command) error {
	if err := cmd.CheckNoArgs(); err != nil {
		return err
	}
	cmd.WriteString("\n" +
		"gtpengine sample commands\n" +
		"This program comes with NO WARRANTY to the extent permitted by law.\n" +
		"It is free software; you can redistribute it and/or modify it under\n" +
		"the terms of the GNU Lesser General Public License, version 3.\n")
	return nil
}
