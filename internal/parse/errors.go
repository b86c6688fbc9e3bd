package parse

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingInput   = errors.New("report input not found")
	ErrMalformedInput = errors.New("report input is malformed")
)

// MissingInputError reports that the expected report artifact does not exist.
type MissingInputError struct {
	Path string
	Err  error
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: %s (run a load test first)", ErrMissingInput, e.Path)
}

func (e *MissingInputError) Unwrap() error { return e.Err }

func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

// MalformedInputError reports input that is present but not a valid report.
// Violations lists schema failures when decoding itself succeeded.
type MalformedInputError struct {
	Path       string
	Reason     string
	Violations []string
	Err        error
}

func (e *MalformedInputError) Error() string {
	var b strings.Builder
	b.WriteString(ErrMalformedInput.Error())
	if e.Path != "" {
		b.WriteString(": " + e.Path)
	}
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	if len(e.Violations) > 0 {
		b.WriteString(": " + strings.Join(e.Violations, "; "))
	}
	return b.String()
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

func (e *MalformedInputError) Is(target error) bool { return target == ErrMalformedInput }
