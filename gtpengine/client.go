package gtpengine

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Client drives an engine from the controller side of the protocol.
//
// It sends one command at a time with a numeric id and waits for the
// response with the same id. Interrupt may be called from another goroutine
// while Send is waiting.
type Client struct {
	sendMu  sync.Mutex // serializes command exchanges
	writeMu sync.Mutex // serializes writes to w

	w      io.Writer
	r      io.Reader
	parser *ResponseParser
	logger *zap.Logger

	nextID atomic.Uint64

	responses  chan Response
	closing    chan struct{}
	readerDone chan struct{}
	readErr    error // set before readerDone is closed

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewClient creates a client that writes commands to w and reads responses
// from r. Close closes r and w if they implement io.Closer.
func NewClient(r io.Reader, w io.Writer, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		w:          w,
		r:          r,
		parser:     NewResponseParser(r),
		logger:     logger,
		responses:  make(chan Response),
		closing:    make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	go c.readerLoop()
	return c
}

// readerLoop reads response blocks and hands them to the waiting Send.
func (c *Client) readerLoop() {
	defer close(c.readerDone)
	for {
		resp, err := c.parser.Next()
		if err != nil {
			c.readErr = err
			return
		}
		select {
		case c.responses <- resp:
		case <-c.closing:
			return
		}
	}
}

// Send sends a command line and waits for its response. If the line has no
// id, the client assigns the next numeric id. A failure response is not an
// error; use Response.Err to convert it.
func (c *Client) Send(ctx context.Context, line string) (Response, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed.Load() {
		return Response{}, ErrNotConnected
	}

	cmd, err := ParseCommand(line)
	if err != nil || !IsCommandLine(line) || strings.ContainsAny(line, "\r\n") {
		return Response{}, newBadCommandError(line)
	}
	id := cmd.ID()
	wire := cmd.Line()
	if id == "" {
		id = strconv.FormatUint(c.nextID.Add(1), 10)
		wire = id + " " + wire
	}

	if err := c.writeLine(wire); err != nil {
		return Response{}, NewConnectionError("failed to send command", err)
	}

	for {
		select {
		case resp := <-c.responses:
			if resp.ID != id {
				c.logger.Debug("Discarding stale response", zap.String("id", resp.ID))
				continue
			}
			return resp, nil
		case <-c.readerDone:
			return Response{}, NewConnectionError("disconnected", c.readErr)
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
}

// Execute sends a command and returns the response text, or an error if the
// command failed or could not be sent.
func (c *Client) Execute(ctx context.Context, line string) (string, error) {
	resp, err := c.Send(ctx, line)
	if err != nil {
		return "", err
	}
	return resp.Text, resp.Err()
}

// Interrupt writes the interrupt directive. The engine must have been
// started with an Interrupter for the directive to have an effect.
func (c *Client) Interrupt() error {
	if c.closed.Load() {
		return ErrNotConnected
	}
	if err := c.writeLine(InterruptDirective); err != nil {
		return NewConnectionError("failed to send interrupt", err)
	}
	return nil
}

func (c *Client) writeLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFlush(c.w, line+"\n")
}

// Close stops the client and waits for its reader goroutine.
func (c *Client) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closing)
		if closer, ok := c.w.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
		if closer, ok := c.r.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
		<-c.readerDone
	})
	return errors.Join(errs...)
}
