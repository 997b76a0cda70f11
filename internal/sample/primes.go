package sample

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gtpkit/gtpengine/gtpengine"
	"github.com/gtpkit/gtpengine/workerpool"
)

// maxPrimeLimit bounds the sieve size of a single job.
const maxPrimeLimit = 50_000_000

type primeJob struct {
	index int
	limit int
}

// primeCounter counts the primes up to a limit. Its sieve is reused across
// jobs and rounds, which is safe because a worker belongs to one goroutine.
type primeCounter struct {
	sieve []bool
}

func (w *primeCounter) Work(job primeJob) int {
	n := job.limit
	if n < 2 {
		return 0
	}
	if cap(w.sieve) < n+1 {
		w.sieve = make([]bool, n+1)
	}
	composite := w.sieve[:n+1]
	clear(composite)

	count := 0
	for i := 2; i <= n; i++ {
		if composite[i] {
			continue
		}
		count++
		for j := i * i; j <= n; j += i {
			composite[j] = true
		}
	}
	return count
}

// primesCommand answers sample-primes through a worker pool. It implements
// io.Closer so that the registry shuts the pool down.
type primesCommand struct {
	pool *workerpool.Pool[primeJob, int]
}

func newPrimesCommand(workers int, logger *zap.Logger) *primesCommand {
	ws := make([]workerpool.Worker[primeJob, int], workers)
	for i := range ws {
		ws[i] = &primeCounter{}
	}
	return &primesCommand{
		pool: workerpool.New(ws, workerpool.WithLogger(logger)),
	}
}

// HandleCommand writes the number of primes up to each argument, one line
// per argument in argument order.
func (c *primesCommand) HandleCommand(cmd *gtpengine.Command) error {
	if cmd.NumArgs() == 0 {
		return gtpengine.Failuref("command needs at least one argument")
	}
	jobs := make([]primeJob, cmd.NumArgs())
	for i := range jobs {
		limit, err := cmd.SizeArg(i)
		if err != nil {
			return err
		}
		if limit > maxPrimeLimit {
			return gtpengine.Failuref("argument %d (%d) must be less or equal %d", i+1, limit, maxPrimeLimit)
		}
		jobs[i] = primeJob{index: i, limit: limit}
	}

	pairs, err := c.pool.DoWork(jobs)
	if err != nil {
		return fmt.Errorf("counting primes: %w", err)
	}
	counts := make([]int, len(jobs))
	for _, pair := range pairs {
		counts[pair.Input.index] = pair.Output
	}
	for i, count := range counts {
		if i > 0 {
			cmd.WriteString("\n")
		}
		cmd.Printf("%d %d", jobs[i].limit, count)
	}
	return nil
}

// Close stops the worker goroutines.
func (c *primesCommand) Close() error {
	c.pool.Close()
	return nil
}
