// =============================================================================
// lineeditor.go - Line Editor for Interactive Sessions
// =============================================================================
//
// The engine normally talks to a controller through pipes, but developers
// also type commands by hand. The line editor detects which case applies:
//
//   - Interactive mode (stdin is a TTY): ergochat/readline provides Emacs
//     keybindings, persistent history and Ctrl-R history search.
//   - Non-interactive mode (piped input, or running inside Emacs): lines
//     are read with a plain gtpengine.LineScanner.
//
// The protocol has no prompt. Only the drive console sets one, and only in
// interactive mode.
//
// =============================================================================

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"

	"github.com/gtpkit/gtpengine/gtpengine"
)

const (
	// historyFileName is the name of the history file in the user's home
	// directory.
	historyFileName = ".gtpengine_history"

	// historySize is the maximum number of history entries to retain.
	historySize = 1000
)

// LineEditor reads command lines for the main loop. It implements
// gtpengine.LineReader.
type LineEditor struct {
	// interactive is true when the input is a terminal.
	interactive bool

	// inst is the readline instance used in interactive mode, nil otherwise.
	inst *readline.Instance

	// scanner reads lines in non-interactive mode, nil otherwise.
	scanner *gtpengine.LineScanner
}

// NewLineEditor creates a line editor reading from in.
//
// Interactive mode is used if in is a terminal and INSIDE_EMACS is not
// set; Emacs provides its own line editing.
func NewLineEditor(in *os.File) *LineEditor {
	isInteractive := term.IsTerminal(int(in.Fd())) &&
		os.Getenv("INSIDE_EMACS") == ""

	if !isInteractive {
		return &LineEditor{scanner: gtpengine.NewLineScanner(in)}
	}

	inst, err := readline.NewFromConfig(&readline.Config{
		Stdin:        in,
		HistoryFile:  filepath.Join(homeDir(), historyFileName),
		HistoryLimit: historySize,

		// Lines are added to the history manually so that blank lines and
		// directives stay out of it.
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "gtpengine: line editing unavailable: %v\n", err)
		return &LineEditor{scanner: gtpengine.NewLineScanner(in)}
	}

	return &LineEditor{
		interactive: true,
		inst:        inst,
	}
}

// ReadLine returns the next input line without its terminator. It returns
// io.EOF on Ctrl-D, Ctrl-C or the end of piped input.
func (le *LineEditor) ReadLine() (string, error) {
	if le.interactive {
		return le.readInteractiveLine()
	}
	return le.scanner.ReadLine()
}

func (le *LineEditor) readInteractiveLine() (string, error) {
	if le.inst == nil {
		return "", io.EOF
	}
	line, err := le.inst.Readline()
	if err != nil {
		if err == readline.ErrInterrupt {
			return "", io.EOF
		}
		return "", err
	}

	if trimmed := strings.TrimSpace(line); gtpengine.IsCommandLine(trimmed) {
		le.inst.SaveToHistory(trimmed)
	}
	return line, nil
}

// SetPrompt sets the prompt shown in interactive mode.
func (le *LineEditor) SetPrompt(prompt string) {
	if le.inst != nil {
		le.inst.SetPrompt(prompt)
	}
}

// Close saves the history and releases the terminal. It is safe to call
// Close more than once.
func (le *LineEditor) Close() {
	if le.inst != nil {
		le.inst.Close()
		le.inst = nil
	}
}

// IsInteractive reports whether the editor reads from a terminal.
func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}

// homeDir returns the user's home directory, or the current directory if
// it cannot be determined.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
