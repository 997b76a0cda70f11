package gtpengine

import (
	"strconv"
	"strings"
)

// Protocol constants for the line-oriented command protocol.
const (
	// SuccessPrefix starts a response to a command that succeeded.
	SuccessPrefix = "="

	// FailurePrefix starts a response to a command that failed.
	FailurePrefix = "?"

	// CommentPrefix marks a line that is ignored by the reader.
	CommentPrefix = "#"

	// InterruptDirective is the in-band marker that asks the engine to
	// interrupt the computation in progress. It is consumed by the reader
	// and never dispatched.
	InterruptDirective = "# interrupt"

	// SleepDirective pauses the reader for the given number of seconds.
	// It exists for deterministic test orchestration.
	SleepDirective = "# gtpengine-sleep "

	// DefaultProtocolVersion is the answer to protocol_version.
	DefaultProtocolVersion = "2"

	// MaxLineLength is the longest input line the scanner accepts in bytes.
	MaxLineLength = 1 << 20
)

// whiteSpace is the set of characters Trim removes.
const whiteSpace = " \t\r"

// Trim removes leading and trailing spaces, tabs and carriage returns.
func Trim(s string) string {
	return strings.Trim(s, whiteSpace)
}

// IsCommandLine reports whether line holds a command, i.e. it is neither
// blank nor a comment.
func IsCommandLine(line string) bool {
	line = Trim(line)
	return line != "" && !strings.HasPrefix(line, CommentPrefix)
}

// ReplaceEmptyLines replaces every empty line inside a multi-line text by a
// line holding a single space. A blank line terminates a response on the
// wire, so a response body must never contain one.
func ReplaceEmptyLines(text string) string {
	if !strings.Contains(text, "\n\n") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + 8)
	lastWasNewLine := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		isNewLine := c == '\n'
		if isNewLine && lastWasNewLine {
			b.WriteByte(' ')
		}
		b.WriteByte(c)
		lastWasNewLine = isNewLine
	}
	return b.String()
}

// FormatResponse returns the wire form of a response:
//
//	<'=' | '?'><id> <text>\n\n
//
// A newline is appended to text if it does not already end with one, so the
// response is always terminated by exactly one blank line. The text is
// expected to have been passed through ReplaceEmptyLines.
func FormatResponse(success bool, id, text string) string {
	var b strings.Builder
	b.Grow(len(id) + len(text) + 4)
	if success {
		b.WriteString(SuccessPrefix)
	} else {
		b.WriteString(FailurePrefix)
	}
	b.WriteString(id)
	b.WriteByte(' ')
	b.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

// parseSleepDirective returns the number of seconds requested by a sleep
// directive line. ok is false if line is not a sleep directive.
func parseSleepDirective(line string) (seconds int, ok bool) {
	if !strings.HasPrefix(line, SleepDirective) {
		return 0, false
	}
	fields := strings.Fields(line[len(SleepDirective):])
	if len(fields) == 0 {
		return 0, true
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, true
	}
	return n, true
}
