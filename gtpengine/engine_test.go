package gtpengine

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHooks records the order of hook calls relative to handlers.
type recordingHooks struct {
	events *eventLog
}

func (h recordingHooks) BeforeHandleCommand()   { h.events.add("before-handle") }
func (h recordingHooks) BeforeWritingResponse() { h.events.add("before-write") }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(Config{Name: "test-engine", Version: "1.0"})
	t.Cleanup(func() { e.Close() })
	return e
}

func TestExecuteCommandBuiltins(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		line     string
		ok       bool
		response string
	}{
		{"name", true, "test-engine"},
		{"version", true, "1.0"},
		{"protocol_version", true, "2"},
		{"3 protocol_version", true, "2"},
		{"known_command name", true, "true"},
		{"known_command frobnicate", true, "false"},
		{"known_command", false, "command needs one argument"},
		{"name extra", false, "no arguments allowed"},
		{"frobnicate", false, "unknown command: frobnicate"},
		{"Name", false, "unknown command: Name"},
		{"", false, "bad command: "},
		{"# comment", false, "bad command: # comment"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			ok, response := e.ExecuteCommand(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.response, response)
		})
	}
}

func TestExecuteCommandDefaults(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Close()

	_, name := e.ExecuteCommand("name")
	assert.Equal(t, "Unknown", name)
	ok, version := e.ExecuteCommand("version")
	assert.True(t, ok)
	assert.Empty(t, version)
}

func TestExecuteCommandQuitArity(t *testing.T) {
	e := newTestEngine(t)

	ok, response := e.ExecuteCommand("quit x")
	assert.False(t, ok)
	assert.Equal(t, "no arguments allowed", response)
	assert.False(t, e.IsQuitSet())

	ok, _ = e.ExecuteCommand("quit")
	assert.True(t, ok)
	assert.True(t, e.IsQuitSet())
}

func TestExecuteCommandRecoversPanics(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.RegisterFunc("explode", func(*Command) error {
		panic("kaboom")
	}))

	ok, response := e.ExecuteCommand("explode")
	assert.False(t, ok)
	assert.Contains(t, response, "kaboom")
}

func TestExecuteCommandHandlerErrors(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.RegisterFunc("fail", func(cmd *Command) error {
		cmd.WriteString("partial output")
		return Failuref("cannot %s", "comply")
	}))
	require.NoError(t, e.RegisterFunc("oops", func(*Command) error {
		return errors.New("disk on fire")
	}))

	ok, response := e.ExecuteCommand("fail")
	assert.False(t, ok)
	assert.Equal(t, "cannot comply", response)

	ok, response = e.ExecuteCommand("oops")
	assert.False(t, ok)
	assert.Equal(t, "disk on fire", response)
}

func TestExecuteCommandSkipsHooks(t *testing.T) {
	e := newTestEngine(t)
	events := &eventLog{}
	e.SetHooks(recordingHooks{events: events})

	e.ExecuteCommand("name")
	assert.Empty(t, events.snapshot())
}

func TestHandleCommandFormatsResponse(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.RegisterFunc("multi", func(cmd *Command) error {
		cmd.WriteString("a\n\nb")
		return nil
	}))

	tests := []struct {
		line string
		want string
	}{
		{"name", "= test-engine\n\n"},
		{"9 name", "=9 test-engine\n\n"},
		{"4 frobnicate", "?4 unknown command: frobnicate\n\n"},
		{"multi", "= a\n \nb\n\n"},
		{"list_commands", "= known_command\nlist_commands\nmulti\nname\nprotocol_version\nquit\nversion\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			var out bytes.Buffer
			_, err := e.HandleCommand(mustParse(t, tt.line), &out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestHandleCommandCallsHooksInOrder(t *testing.T) {
	e := newTestEngine(t)
	events := &eventLog{}
	e.SetHooks(recordingHooks{events: events})
	require.NoError(t, e.RegisterFunc("work", func(*Command) error {
		events.add("handler")
		return nil
	}))

	out := &recordingWriter{events: events}
	ok, err := e.HandleCommand(mustParse(t, "work"), out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"before-handle", "handler", "before-write", "response"}, events.snapshot())
}

func TestHandleCommandReportsWriteErrors(t *testing.T) {
	e := newTestEngine(t)
	ok, err := e.HandleCommand(mustParse(t, "name"), failingWriter{})
	assert.True(t, ok)
	assert.Error(t, err)
}

func TestListCommandsAfterReRegister(t *testing.T) {
	e := newTestEngine(t)
	verbs := []string{"play", "genmove", "play", "name"}
	for i, verb := range verbs {
		response := fmt.Sprintf("handler %d", i)
		require.NoError(t, e.RegisterFunc(verb, func(cmd *Command) error {
			cmd.WriteString(response)
			return nil
		}))
	}

	ok, list := e.ExecuteCommand("list_commands")
	require.True(t, ok)
	lines := strings.Split(strings.TrimSuffix(list, "\n"), "\n")

	counts := map[string]int{}
	for _, line := range lines {
		counts[line]++
	}
	for _, verb := range append(verbs, "quit", "known_command") {
		assert.Equal(t, 1, counts[verb], "verb %q", verb)
	}

	_, response := e.ExecuteCommand("play")
	assert.Equal(t, "handler 2", response, "last registration wins")
	_, response = e.ExecuteCommand("name")
	assert.Equal(t, "handler 3", response)
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commands.gtp")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExecuteFile(t *testing.T) {
	e := newTestEngine(t)
	var calls []string
	require.NoError(t, e.RegisterFunc("set", func(cmd *Command) error {
		calls = append(calls, cmd.ArgLine())
		return nil
	}))

	path := writeFile(t, "# setup\n\nset a 1\n   \nset b 2\n")
	var log bytes.Buffer
	require.NoError(t, e.ExecuteFile(path, &log))

	assert.Equal(t, []string{"a 1", "b 2"}, calls)
	assert.Equal(t, "set a 1\n= \n\nset b 2\n= \n\n", log.String())
}

func TestExecuteFileAbortsOnFailure(t *testing.T) {
	e := newTestEngine(t)
	var calls int
	require.NoError(t, e.RegisterFunc("count", func(*Command) error {
		calls++
		return nil
	}))

	path := writeFile(t, "count\nfrobnicate now\ncount\n")
	err := e.ExecuteFile(path, nil)
	require.Error(t, err)
	assert.Equal(t, "executing frobnicate now failed", err.Error())
	assert.True(t, IsFailure(err, FailureFile))
	assert.Equal(t, 1, calls)
}

func TestExecuteFileMissing(t *testing.T) {
	e := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "missing.gtp")

	err := e.ExecuteFile(path, nil)
	require.Error(t, err)
	assert.Equal(t, "cannot read "+path, err.Error())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
