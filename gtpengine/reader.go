package gtpengine

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// Interrupter is notified when the interrupt directive arrives on the input,
// possibly while a command is being executed. Interruption is cooperative:
// the computation in progress has to check for it.
type Interrupter interface {
	Interrupt()
}

// InterruptFunc adapts an ordinary function to the Interrupter interface.
type InterruptFunc func()

// Interrupt calls f().
func (f InterruptFunc) Interrupt() {
	f()
}

type readResult struct {
	line string
	ok   bool
}

// readThread reads lines on its own goroutine so that directives are seen
// while the main goroutine executes a command. The next command line is
// handed over through a request / result handshake.
type readThread struct {
	in          LineReader
	interrupter Interrupter
	logger      *zap.Logger

	request chan struct{}
	result  chan readResult
	stop    chan struct{}
	done    chan struct{}
}

func newReadThread(in LineReader, interrupter Interrupter, logger *zap.Logger) *readThread {
	return &readThread{
		in:          in,
		interrupter: interrupter,
		logger:      logger,
		request:     make(chan struct{}),
		result:      make(chan readResult),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (t *readThread) run() error {
	defer close(t.done)
	requested := false
	for {
		line, err := t.scan()
		if !requested {
			select {
			case <-t.request:
			case <-t.stop:
				return nil
			}
		}
		requested = false
		t.result <- readResult{line: line, ok: err == nil}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading command: %w", err)
		}
		// Do not read ahead after quit: the main goroutine either stops the
		// loop or, if the command failed, asks for the next line.
		if isQuitCommand(line) {
			select {
			case <-t.request:
				requested = true
			case <-t.stop:
				return nil
			}
		}
	}
}

// scan reads until the next command line, handling directives on the way.
func (t *readThread) scan() (string, error) {
	for {
		line, err := t.in.ReadLine()
		if err != nil {
			return "", err
		}
		line = Trim(line)
		if line == InterruptDirective {
			t.logger.Info("Interrupt directive received")
			t.interrupt()
			continue
		}
		if seconds, ok := parseSleepDirective(line); ok {
			t.sleep(seconds)
			continue
		}
		if IsCommandLine(line) {
			return line, nil
		}
	}
}

func (t *readThread) interrupt() {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Interrupt panicked", zap.Any("panic", r))
		}
	}()
	t.interrupter.Interrupt()
}

func (t *readThread) sleep(seconds int) {
	if seconds <= 0 {
		return
	}
	t.logger.Info("Sleep directive", zap.Int("seconds", seconds))
	timer := time.NewTimer(time.Duration(seconds) * time.Second)
	defer timer.Stop()
	select {
	case <-timer.C:
		t.logger.Info("Sleep done")
	case <-t.stop:
	}
}

// readCommand requests the next command line. ok is false at the end of the
// input or once the goroutine has ended.
func (t *readThread) readCommand() (string, bool, error) {
	select {
	case t.request <- struct{}{}:
	case <-t.done:
		return "", false, nil
	}
	res := <-t.result
	return res.line, res.ok, nil
}

// quit tells a goroutine that is waiting for a request or sleeping to end.
// A goroutine blocked in ReadLine ends once the read returns.
func (t *readThread) quit() {
	close(t.stop)
}

func isQuitCommand(line string) bool {
	cmd, err := ParseCommand(line)
	if err != nil {
		return false
	}
	return cmd.Name() == "quit" && cmd.NumArgs() == 0
}
