package expect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getmockd/expectd/pkg/fingerprint"
)

// Setup misuse errors. The first one raised is kept by the Provider and
// returned from Err and Verify.
var (
	ErrNoPendingExpectation  = errors.New("no pending expectation to respond to")
	ErrPendingExpectation    = errors.New("previous expectation has no response yet")
	ErrIncompleteExpectation = errors.New("expectation declared but never given a response")
	ErrInvalidMethod         = errors.New("invalid HTTP method")
	ErrEmptyPath             = errors.New("request path must not be empty")
)

// ErrUnsatisfiedExpectation matches any *UnsatisfiedExpectationError via
// errors.Is.
var ErrUnsatisfiedExpectation = errors.New("unsatisfied expectation")

// UnsatisfiedExpectationError is returned by Verify when the received
// requests differ from the expected ones. Both sets are reported in full and
// sorted by fingerprint key.
type UnsatisfiedExpectationError struct {
	// Missing are expected requests that were never received.
	Missing []fingerprint.Fingerprint
	// Unexpected are received requests that were never expected.
	Unexpected []fingerprint.Fingerprint
}

func (e *UnsatisfiedExpectationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "unsatisfied expectation: %d missing, %d unexpected", len(e.Missing), len(e.Unexpected))
	for _, f := range e.Missing {
		b.WriteString("\n  missing:    ")
		b.WriteString(f.String())
	}
	for _, f := range e.Unexpected {
		b.WriteString("\n  unexpected: ")
		b.WriteString(f.String())
	}
	return b.String()
}

// Is reports whether target is ErrUnsatisfiedExpectation.
func (e *UnsatisfiedExpectationError) Is(target error) bool {
	return target == ErrUnsatisfiedExpectation
}
