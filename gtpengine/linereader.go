package gtpengine

import (
	"bufio"
	"io"
)

// LineReader is a blocking source of input lines. ReadLine returns the next
// line without its line terminator, and io.EOF once the input is exhausted.
type LineReader interface {
	ReadLine() (string, error)
}

// LineScanner reads lines from an io.Reader.
type LineScanner struct {
	scanner *bufio.Scanner
}

// NewLineScanner creates a LineReader over r. Lines may be up to
// MaxLineLength bytes long.
func NewLineScanner(r io.Reader) *LineScanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineLength)
	return &LineScanner{scanner: scanner}
}

// ReadLine implements LineReader.
func (s *LineScanner) ReadLine() (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

// readCommandLine reads lines until one holds a command. It returns ok=false
// at the end of the input; err is only set for read errors other than
// io.EOF.
func readCommandLine(in LineReader) (line string, ok bool, err error) {
	for {
		line, err := in.ReadLine()
		if err == io.EOF {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		if IsCommandLine(line) {
			return Trim(line), true, nil
		}
	}
}
