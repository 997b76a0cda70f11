package gtpengine

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Response
	}{
		{"success", "= 2\n\n", Response{Success: true, Text: "2"}},
		{"failure", "? unknown command: x\n\n", Response{Success: false, Text: "unknown command: x"}},
		{"with id", "=12 black\n\n", Response{Success: true, ID: "12", Text: "black"}},
		{"empty body", "= \n\n", Response{Success: true}},
		{"bare status", "=\n\n", Response{Success: true}},
		{"bare id", "=5\n\n", Response{Success: true, ID: "5"}},
		{"multi line", "= a\n \nb\n\n", Response{Success: true, Text: "a\n \nb"}},
		{"leading blank lines", "\n\n=3 ok\n\n", Response{Success: true, ID: "3", Text: "ok"}},
		{"crlf", "= ok\r\n\r\n", Response{Success: true, Text: "ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.input)
			if err != nil {
				t.Fatalf("ParseResponse(%q) error: %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseResponse(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestParseResponseErrors(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{"", io.EOF},
		{"\n\n", io.EOF},
		{"= unterminated\n", io.ErrUnexpectedEOF},
		{"! what\n\n", ErrMalformedResponse},
	}
	for _, tt := range tests {
		if _, err := ParseResponse(tt.input); !errors.Is(err, tt.want) {
			t.Errorf("ParseResponse(%q) error = %v, want %v", tt.input, err, tt.want)
		}
	}
}

func TestResponseParserSequence(t *testing.T) {
	p := NewResponseParser(strings.NewReader("=1 a\n\n?2 b\nc\n\n=3\n\n"))
	var got []Response
	for {
		resp, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, resp)
	}
	want := []Response{
		{Success: true, ID: "1", Text: "a"},
		{Success: false, ID: "2", Text: "b\nc"},
		{Success: true, ID: "3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("responses mismatch (-want +got):\n%s", diff)
	}
}

func TestResponseFormatRoundTrip(t *testing.T) {
	for _, r := range []Response{
		{Success: true, Text: "single"},
		{Success: false, ID: "9", Text: "broken"},
		{Success: true, ID: "4", Text: "x\ny\nz"},
	} {
		got, err := ParseResponse(r.Format())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(r, got); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestResponseHelpers(t *testing.T) {
	ok := Response{Success: true, Text: "a\nb"}
	if !ok.IsOK() || ok.Err() != nil {
		t.Errorf("successful response reported as failure")
	}
	if diff := cmp.Diff([]string{"a", "b"}, ok.Lines()); diff != "" {
		t.Errorf("Lines() mismatch (-want +got):\n%s", diff)
	}
	if lines := (Response{Success: true}).Lines(); lines != nil {
		t.Errorf("Lines() of empty response = %v, want nil", lines)
	}

	failed := Response{Text: "illegal move"}
	err := failed.Err()
	if err == nil || err.Error() != "illegal move" {
		t.Errorf("Err() = %v, want illegal move", err)
	}
	if !IsFailure(err, FailureHandler) {
		t.Errorf("Err() is not a handler failure")
	}
}
