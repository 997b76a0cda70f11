package gtpengine

import (
	"fmt"
	"strconv"
	"strings"
)

// Argument is one token of a command line.
type Argument struct {
	// Value is the token with surrounding quotes removed.
	Value string
	// End is the offset in the command line just past the token.
	End int
}

// Command is one parsed protocol line: an optional numeric id, the verb,
// the arguments, and the response the handler builds.
//
// A Command can be reused for many lines by calling Init; the response is
// reset on every Init. Command implements io.Writer so handlers can write
// the response with fmt.Fprintf.
type Command struct {
	id       string
	line     string
	args     []Argument // args[0] is the verb
	response strings.Builder
}

// ParseCommand parses a single command line.
// It returns ErrEmptyCommand if the line holds no tokens.
func ParseCommand(line string) (*Command, error) {
	cmd := &Command{}
	if err := cmd.Init(line); err != nil {
		return nil, err
	}
	return cmd, nil
}

// Init parses line into the command and clears the response.
//
// Tokens are separated by unquoted whitespace. A double quote that is not
// escaped by a preceding backslash starts or ends a quoted token. If the line
// has at least two tokens and the first one is an integer, it is taken as the
// command id.
func (c *Command) Init(line string) error {
	c.line = Trim(line)
	c.args = splitLine(c.line, c.args[:0])
	c.id = ""
	c.response.Reset()
	if len(c.args) == 0 {
		return ErrEmptyCommand
	}
	c.parseID()
	return nil
}

func (c *Command) parseID() {
	if len(c.args) < 2 {
		return
	}
	if _, err := strconv.Atoi(c.args[0].Value); err != nil {
		return
	}
	c.id = c.args[0].Value
	c.args = append(c.args[:0], c.args[1:]...)
}

func splitLine(line string, args []Argument) []Argument {
	escape := false
	inString := false
	var element strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"' && !escape:
			if inString {
				args = append(args, Argument{Value: element.String(), End: i + 1})
				element.Reset()
			}
			inString = !inString
		case isSpace(c) && !inString:
			if element.Len() > 0 {
				args = append(args, Argument{Value: element.String(), End: i + 1})
				element.Reset()
			}
		default:
			element.WriteByte(c)
		}
		escape = c == '\\' && !escape
	}
	if element.Len() > 0 {
		args = append(args, Argument{Value: element.String(), End: len(line)})
	}
	return args
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// ID returns the command id, or the empty string if the line had none.
func (c *Command) ID() string {
	return c.id
}

// Name returns the command verb.
func (c *Command) Name() string {
	if len(c.args) == 0 {
		return ""
	}
	return c.args[0].Value
}

// Line returns the trimmed command line, including the id.
func (c *Command) Line() string {
	return c.line
}

// String implements fmt.Stringer.
func (c *Command) String() string {
	return c.line
}

// NumArgs returns the number of arguments, not counting the verb.
func (c *Command) NumArgs() int {
	if len(c.args) == 0 {
		return 0
	}
	return len(c.args) - 1
}

// Args returns the argument values, not counting the verb.
func (c *Command) Args() []string {
	n := c.NumArgs()
	values := make([]string, n)
	for i := 0; i < n; i++ {
		values[i] = c.args[i+1].Value
	}
	return values
}

// Arg returns argument i (0-based, not counting the verb).
func (c *Command) Arg(i int) (string, error) {
	if i < 0 || i >= c.NumArgs() {
		return "", newMissingArgumentError(i + 1)
	}
	return c.args[i+1].Value, nil
}

// SingleArg checks that the command has exactly one argument and returns it.
func (c *Command) SingleArg() (string, error) {
	if err := c.CheckNumArgs(1); err != nil {
		return "", err
	}
	return c.Arg(0)
}

// ArgToLower returns argument i converted to lower case.
func (c *Command) ArgToLower(i int) (string, error) {
	value, err := c.Arg(i)
	if err != nil {
		return "", err
	}
	return strings.ToLower(value), nil
}

// ArgLine returns the text after the verb, trimmed.
func (c *Command) ArgLine() string {
	if len(c.args) == 0 {
		return ""
	}
	return Trim(c.line[c.args[0].End:])
}

// RemainingLine returns the text after argument i, trimmed.
func (c *Command) RemainingLine(i int) (string, error) {
	if i < 0 || i >= c.NumArgs() {
		return "", newMissingArgumentError(i + 1)
	}
	return Trim(c.line[c.args[i+1].End:]), nil
}

// IntArg returns argument i as an int.
func (c *Command) IntArg(i int) (int, error) {
	value, err := c.Arg(i)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, newArgumentTypeError(i+1, value, "int")
	}
	return n, nil
}

// IntArgMin returns argument i as an int that must be at least min.
func (c *Command) IntArgMin(i, min int) (int, error) {
	n, err := c.IntArg(i)
	if err != nil {
		return 0, err
	}
	if n < min {
		return 0, newArgumentError("argument %d (%d) must be greater or equal %d", i+1, n, min)
	}
	return n, nil
}

// IntArgRange returns argument i as an int in [min, max].
func (c *Command) IntArgRange(i, min, max int) (int, error) {
	n, err := c.IntArgMin(i, min)
	if err != nil {
		return 0, err
	}
	if n > max {
		return 0, newArgumentError("argument %d (%d) must be less or equal %d", i+1, n, max)
	}
	return n, nil
}

// FloatArg returns argument i as a float64.
func (c *Command) FloatArg(i int) (float64, error) {
	value, err := c.Arg(i)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, newArgumentTypeError(i+1, value, "float")
	}
	return f, nil
}

// BoolArg returns argument i as a bool. Accepted values are 0, 1, false and
// true.
func (c *Command) BoolArg(i int) (bool, error) {
	value, err := c.Arg(i)
	if err != nil {
		return false, err
	}
	switch value {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	return false, newArgumentTypeError(i+1, value, "bool")
}

// SizeArg returns argument i as a non-negative size. A negative value is a
// type mismatch, not a range error.
func (c *Command) SizeArg(i int) (int, error) {
	value, err := c.Arg(i)
	if err != nil {
		return 0, err
	}
	if strings.HasPrefix(value, "-") {
		return 0, newArgumentTypeError(i+1, value, "size")
	}
	n, err := strconv.ParseUint(value, 10, strconv.IntSize-1)
	if err != nil {
		return 0, newArgumentTypeError(i+1, value, "size")
	}
	return int(n), nil
}

// SizeArgMin returns argument i as a size that must be at least min.
func (c *Command) SizeArgMin(i, min int) (int, error) {
	n, err := c.SizeArg(i)
	if err != nil {
		return 0, err
	}
	if n < min {
		return 0, newArgumentError("argument %d (%d) must be greater or equal %d", i+1, n, min)
	}
	return n, nil
}

// CheckNumArgs fails unless the command has exactly n arguments.
func (c *Command) CheckNumArgs(n int) error {
	if c.NumArgs() == n {
		return nil
	}
	switch n {
	case 0:
		return newArgumentError("no arguments allowed")
	case 1:
		return newArgumentError("command needs one argument")
	default:
		return newArgumentError("command needs %d arguments", n)
	}
}

// CheckNoArgs fails if the command has any arguments.
func (c *Command) CheckNoArgs() error {
	return c.CheckNumArgs(0)
}

// CheckNumArgsAtMost fails if the command has more than n arguments.
func (c *Command) CheckNumArgsAtMost(n int) error {
	if c.NumArgs() <= n {
		return nil
	}
	if n == 1 {
		return newArgumentError("command needs at most one argument")
	}
	return newArgumentError("command needs at most %d arguments", n)
}

// Write appends p to the response. It never fails.
func (c *Command) Write(p []byte) (int, error) {
	return c.response.Write(p)
}

// WriteString appends s to the response. It never fails.
func (c *Command) WriteString(s string) (int, error) {
	return c.response.WriteString(s)
}

// Printf appends formatted text to the response.
func (c *Command) Printf(format string, args ...any) {
	fmt.Fprintf(&c.response, format, args...)
}

// SetResponse replaces the response.
func (c *Command) SetResponse(s string) {
	c.response.Reset()
	c.response.WriteString(s)
}

// SetResponseBool replaces the response with "true" or "false".
func (c *Command) SetResponseBool(b bool) {
	c.SetResponse(strconv.FormatBool(b))
}

// Response returns the response built so far.
func (c *Command) Response() string {
	return c.response.String()
}
