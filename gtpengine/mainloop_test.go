package gtpengine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventLog is a goroutine-safe ordered list of events.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// recordingWriter logs a "response" event for every write.
type recordingWriter struct {
	events *eventLog
	buf    bytes.Buffer
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.events.add("response")
	return w.buf.Write(p)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

// scriptedReader returns its lines and then err, or io.EOF if err is nil.
type scriptedReader struct {
	lines []string
	err   error
}

func (r *scriptedReader) ReadLine() (string, error) {
	if len(r.lines) == 0 {
		if r.err != nil {
			return "", r.err
		}
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

// recordingPonderer logs each round and blocks until it is cancelled.
type recordingPonderer struct {
	events *eventLog
}

func (p recordingPonderer) InitPonder() { p.events.add("init-ponder") }

func (p recordingPonderer) Ponder(ctx context.Context) {
	p.events.add("ponder-start")
	<-ctx.Done()
	p.events.add("ponder-stop")
}

// panickingHooks panics in BeforeHandleCommand, or in BeforeWritingResponse
// if beforeWriting is set.
type panickingHooks struct {
	beforeWriting bool
}

func (h panickingHooks) BeforeHandleCommand() {
	if !h.beforeWriting {
		panic("hook bug")
	}
}

func (h panickingHooks) BeforeWritingResponse() {
	if h.beforeWriting {
		panic("hook bug")
	}
}

// panickingPreparer panics while preparing a round and ponders until
// cancelled.
type panickingPreparer struct{}

func (panickingPreparer) InitPonder() { panic("init bug") }

func (panickingPreparer) Ponder(ctx context.Context) { <-ctx.Done() }

func runMainLoop(t *testing.T, e *Engine, input string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, e.MainLoop(NewLineScanner(strings.NewReader(input)), &out))
	return out.String()
}

func TestMainLoopQuitsAtEOF(t *testing.T) {
	e := newTestEngine(t)
	out := runMainLoop(t, e, "name\n\n# comment\n2 version\n")

	assert.Equal(t, "= test-engine\n\n=2 1.0\n\n", out)
	assert.True(t, e.IsQuitSet())
}

func TestMainLoopStopsAfterQuit(t *testing.T) {
	e := newTestEngine(t)
	out := runMainLoop(t, e, "name\nquit\nversion\n")
	assert.Equal(t, "= test-engine\n\n= \n\n", out)
}

func TestMainLoopCanBeRestarted(t *testing.T) {
	e := newTestEngine(t)
	runMainLoop(t, e, "quit\n")
	out := runMainLoop(t, e, "name\n")
	assert.Equal(t, "= test-engine\n\n", out)
}

func TestMainLoopPonderOrdering(t *testing.T) {
	e := newTestEngine(t)
	events := &eventLog{}
	e.SetPonderer(recordingPonderer{events: events})

	out := &recordingWriter{events: events}
	in := NewLineScanner(strings.NewReader("name\nversion\nquit\n"))
	require.NoError(t, e.MainLoop(in, out))

	var want []string
	for range 3 {
		want = append(want, "init-ponder", "ponder-start", "ponder-stop", "response")
	}
	if diff := cmp.Diff(want, events.snapshot()); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
}

func TestMainLoopPonderPanicIsContained(t *testing.T) {
	e := newTestEngine(t)
	e.SetPonderer(PonderFunc(func(context.Context) {
		panic("ponder bug")
	}))

	out := runMainLoop(t, e, "name\nquit\n")
	assert.Equal(t, "= test-engine\n\n= \n\n", out)
}

func TestMainLoopInterruptDirective(t *testing.T) {
	e := newTestEngine(t)
	var interrupts atomic.Int32
	e.SetInterrupter(InterruptFunc(func() { interrupts.Add(1) }))

	out := runMainLoop(t, e, "name\n# interrupt\n  # interrupt  \n1 name\nquit\n")

	assert.Equal(t, "= test-engine\n\n=1 test-engine\n\n= \n\n", out)
	assert.Equal(t, int32(2), interrupts.Load())
}

func TestMainLoopInterruptWithoutInterrupterIsComment(t *testing.T) {
	e := newTestEngine(t)
	out := runMainLoop(t, e, "# interrupt\nname\n")
	assert.Equal(t, "= test-engine\n\n", out)
}

func TestMainLoopInterruptsRunningCommand(t *testing.T) {
	e := newTestEngine(t)
	interrupted := make(chan struct{})
	var once sync.Once
	e.SetInterrupter(InterruptFunc(func() {
		once.Do(func() { close(interrupted) })
	}))
	require.NoError(t, e.RegisterFunc("wait", func(cmd *Command) error {
		select {
		case <-interrupted:
			cmd.WriteString("interrupted")
			return nil
		case <-time.After(5 * time.Second):
			return Failuref("not interrupted")
		}
	}))

	out := runMainLoop(t, e, "wait\n# interrupt\nquit\n")
	assert.Equal(t, "= interrupted\n\n= \n\n", out)
}

func TestMainLoopRejectedQuitKeepsReading(t *testing.T) {
	e := newTestEngine(t)
	e.SetInterrupter(InterruptFunc(func() {}))

	out := runMainLoop(t, e, "quit now\nname\nquit\n")
	assert.Equal(t, "? no arguments allowed\n\n= test-engine\n\n= \n\n", out)
}

func TestMainLoopFailedQuitKeepsReading(t *testing.T) {
	for _, withReader := range []bool{false, true} {
		e := newTestEngine(t)
		if withReader {
			e.SetInterrupter(InterruptFunc(func() {}))
		}
		require.NoError(t, e.RegisterFunc("quit", func(*Command) error {
			return Failuref("quit disabled")
		}))

		out := runMainLoop(t, e, "quit\nname\n")
		assert.Equal(t, "? quit disabled\n\n= test-engine\n\n", out, "read goroutine: %v", withReader)
	}
}

func TestMainLoopHookPanicIsContained(t *testing.T) {
	e := newTestEngine(t)
	e.SetHooks(panickingHooks{})
	e.SetPonderer(panickingPreparer{})
	e.SetInterrupter(InterruptFunc(func() {}))

	out := runMainLoop(t, e, "name\n2 name\n")
	assert.Equal(t, "? fatal error: hook bug\n\n?2 fatal error: hook bug\n\n", out)
	assert.True(t, e.IsQuitSet())
}

func TestMainLoopWritingHookPanic(t *testing.T) {
	e := newTestEngine(t)
	e.SetHooks(panickingHooks{beforeWriting: true})

	out := runMainLoop(t, e, "name\n")
	assert.Equal(t, "? fatal error: hook bug\n\n", out)
}

func TestMainLoopSleepDirective(t *testing.T) {
	e := newTestEngine(t)
	e.SetInterrupter(InterruptFunc(func() {}))

	out := runMainLoop(t, e, "# gtpengine-sleep 0\n# gtpengine-sleep x\nname\n")
	assert.Equal(t, "= test-engine\n\n", out)
}

func TestMainLoopReadError(t *testing.T) {
	boom := errors.New("device gone")
	for _, withReader := range []bool{false, true} {
		e := newTestEngine(t)
		if withReader {
			e.SetInterrupter(InterruptFunc(func() {}))
		}
		var out bytes.Buffer
		in := &scriptedReader{lines: []string{"name"}, err: boom}

		err := e.MainLoop(in, &out)
		assert.ErrorIs(t, err, boom, "read goroutine: %v", withReader)
		assert.Equal(t, "= test-engine\n\n", out.String())
		assert.True(t, e.IsQuitSet())
	}
}

func TestMainLoopWriteError(t *testing.T) {
	e := newTestEngine(t)
	e.SetPonderer(PonderFunc(func(ctx context.Context) { <-ctx.Done() }))
	e.SetInterrupter(InterruptFunc(func() {}))

	in := NewLineScanner(strings.NewReader("name\nversion\n"))
	err := e.MainLoop(in, failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}
