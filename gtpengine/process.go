package gtpengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// QuitTimeout bounds how long Process.Quit waits for the quit response.
const QuitTimeout = 5 * time.Second

// Process is an engine executable running as a child process, driven
// through its standard input and output.
type Process struct {
	*Client

	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// StartProcess launches the engine executable at path and connects a client
// to it. The child's standard error is discarded; cancelling ctx kills it.
func StartProcess(ctx context.Context, logger *zap.Logger, path string, args ...string) (*Process, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", path, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Engine process started",
		zap.String("path", path),
		zap.Int("pid", cmd.Process.Pid))

	return &Process{
		Client: NewClient(stdout, stdin, logger),
		cmd:    cmd,
		stdin:  stdin,
	}, nil
}

// Pid returns the process id of the engine.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Quit sends the quit command, closes the engine's input and waits for the
// process to exit. An engine that does not close its output within
// QuitTimeout is killed.
func (p *Process) Quit() error {
	ctx, cancel := context.WithTimeout(context.Background(), QuitTimeout)
	defer cancel()

	_, sendErr := p.Execute(ctx, "quit")
	p.stdin.Close()

	// Wait must not run before the reads from stdout are done.
	select {
	case <-p.readerDone:
	case <-ctx.Done():
		p.cmd.Process.Kill()
	}
	p.Client.Close()
	waitErr := p.cmd.Wait()

	if sendErr != nil && !errors.Is(sendErr, ErrNotConnected) {
		return fmt.Errorf("quit: %w", sendErr)
	}
	if waitErr != nil {
		return fmt.Errorf("waiting for engine: %w", waitErr)
	}
	return nil
}
