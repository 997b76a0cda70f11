package gtpengine

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Response is one response block as seen by a controller.
type Response struct {
	Success bool
	ID      string // The echoed command id, empty if the command had none
	Text    string // The response body without the trailing newline
}

// IsOK returns true if the command succeeded.
func (r Response) IsOK() bool {
	return r.Success
}

// Lines returns the response body split into lines.
func (r Response) Lines() []string {
	if r.Text == "" {
		return nil
	}
	return strings.Split(r.Text, "\n")
}

// Format returns the response formatted for transmission.
func (r Response) Format() string {
	return FormatResponse(r.Success, r.ID, ReplaceEmptyLines(r.Text))
}

// Err returns nil for a successful response and an error carrying the
// response text otherwise.
func (r Response) Err() error {
	if r.Success {
		return nil
	}
	return &Failure{Kind: FailureHandler, Message: r.Text}
}

// ResponseParser reads response blocks from an engine's output.
type ResponseParser struct {
	r *bufio.Reader
}

// NewResponseParser creates a parser reading from r.
func NewResponseParser(r io.Reader) *ResponseParser {
	return &ResponseParser{r: bufio.NewReader(r)}
}

// Next reads the next response block. Blank lines before the status line
// are skipped. It returns io.EOF if the input ends before a block starts and
// io.ErrUnexpectedEOF if it ends inside one.
func (p *ResponseParser) Next() (Response, error) {
	var first string
	for {
		line, err := p.readLine()
		if err != nil {
			return Response{}, err
		}
		if line != "" {
			first = line
			break
		}
	}

	var resp Response
	switch first[0] {
	case SuccessPrefix[0]:
		resp.Success = true
	case FailurePrefix[0]:
		resp.Success = false
	default:
		return Response{}, fmt.Errorf("%w: %q", ErrMalformedResponse, first)
	}

	head := first[1:]
	sep := strings.IndexByte(head, ' ')
	if sep < 0 {
		resp.ID = head
		head = ""
	} else {
		resp.ID = head[:sep]
		head = head[sep+1:]
	}

	lines := []string{head}
	for {
		line, err := p.readLine()
		if err == io.EOF {
			return Response{}, io.ErrUnexpectedEOF
		}
		if err != nil {
			return Response{}, err
		}
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	resp.Text = strings.Join(lines, "\n")
	return resp, nil
}

func (p *ResponseParser) readLine() (string, error) {
	line, err := p.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ParseResponse parses a single formatted response.
func ParseResponse(s string) (Response, error) {
	return NewResponseParser(strings.NewReader(s)).Next()
}
