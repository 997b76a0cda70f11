// Package workerpool runs batches of independent jobs on a fixed set of
// persistent worker goroutines.
//
// Each worker is a stateful object owned by exactly one goroutine, so a
// worker may keep per-goroutine resources (search trees, buffers) between
// jobs and rounds without locking.
//
//	pool := workerpool.New(workers)
//	defer pool.Close()
//	pairs, err := pool.DoWork(items)
package workerpool

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned by DoWork after Close.
var ErrClosed = errors.New("worker pool closed")

// Worker computes one output from one input.
type Worker[I, O any] interface {
	Work(input I) O
}

// WorkerFunc adapts an ordinary function to the Worker interface.
type WorkerFunc[I, O any] func(input I) O

// Work calls f(input).
func (f WorkerFunc[I, O]) Work(input I) O {
	return f(input)
}

// Pair is an input together with the output computed for it.
type Pair[I, O any] struct {
	Input  I
	Output O
}

// Option configures a Pool.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger for round and shutdown messages.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Pool distributes the items of a round across its workers.
//
// DoWork and Close must not be called concurrently with each other.
type Pool[I, O any] struct {
	logger *zap.Logger

	// starts holds one entry barrier per worker goroutine. Closing them
	// tells the goroutines to quit.
	starts   []chan struct{}
	finished sync.WaitGroup // exit barrier of the current round
	threads  sync.WaitGroup

	workMu sync.Mutex // guards work and next
	work   []I
	next   int

	outputMu sync.Mutex // guards output and errs
	output   []Pair[I, O]
	errs     []error

	closed bool
}

// New creates a pool and starts one goroutine per worker.
func New[I, O any](workers []Worker[I, O], opts ...Option) *Pool[I, O] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	p := &Pool[I, O]{
		logger: o.logger,
		starts: make([]chan struct{}, len(workers)),
	}
	for i, w := range workers {
		p.starts[i] = make(chan struct{})
		p.threads.Add(1)
		go p.thread(i, w, p.starts[i])
	}
	return p
}

// Size returns the number of workers.
func (p *Pool[I, O]) Size() int {
	return len(p.starts)
}

// DoWork computes an output for every item and returns the (input, output)
// pairs once all workers have finished the round. Every item appears exactly
// once; the order of the pairs is unspecified.
//
// A worker that panics on an item produces the zero output for it, and the
// panic is reported in the returned error.
func (p *Pool[I, O]) DoWork(items []I) ([]Pair[I, O], error) {
	if p.closed {
		return nil, ErrClosed
	}
	if len(p.starts) == 0 && len(items) > 0 {
		return nil, errors.New("worker pool has no workers")
	}

	p.work = items
	p.next = 0
	p.output = make([]Pair[I, O], 0, len(items))
	p.errs = nil
	p.logger.Debug("Processing jobs", zap.Int("jobs", len(items)))

	p.finished.Add(len(p.starts))
	for _, start := range p.starts {
		start <- struct{}{}
	}
	p.finished.Wait()

	output, errs := p.output, p.errs
	p.work, p.output, p.errs = nil, nil, nil
	return output, errors.Join(errs...)
}

// Close tells every goroutine to quit and waits for them. It is safe to call
// Close more than once.
func (p *Pool[I, O]) Close() {
	if p.closed {
		return
	}
	p.closed = true
	for _, start := range p.starts {
		close(start)
	}
	p.threads.Wait()
	p.logger.Debug("Worker pool closed", zap.Int("workers", len(p.starts)))
}

func (p *Pool[I, O]) thread(id int, w Worker[I, O], start <-chan struct{}) {
	defer p.threads.Done()
	for range start {
		for {
			item, ok := p.claim()
			if !ok {
				break
			}
			output, err := p.compute(id, w, item)
			p.store(item, output, err)
		}
		p.finished.Done()
	}
}

func (p *Pool[I, O]) claim() (I, bool) {
	p.workMu.Lock()
	defer p.workMu.Unlock()
	if p.next >= len(p.work) {
		var zero I
		return zero, false
	}
	item := p.work[p.next]
	p.next++
	return item, true
}

func (p *Pool[I, O]) compute(id int, w Worker[I, O], item I) (output O, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d panicked: %v", id, r)
		}
	}()
	return w.Work(item), nil
}

func (p *Pool[I, O]) store(item I, output O, err error) {
	p.outputMu.Lock()
	defer p.outputMu.Unlock()
	p.output = append(p.output, Pair[I, O]{Input: item, Output: output})
	if err != nil {
		p.errs = append(p.errs, err)
	}
}
