package tabulation

import (
	"errors"
	"fmt"
)

// Kind identifies a class of tabulation error, independent of its message.
type Kind string

// The error kinds a tabulation can fail with. ConfigInvalid and
// UnrecognizedCandidate abort before round 1. NoCandidates aborts before
// round 1 when no candidates are declared, and mid-tabulation when the
// continuing set empties before every seat is filled. NoProgress,
// TieBreakCancelled and ArithmeticOutOfRange abort mid-round.
const (
	ErrConfigInvalid         Kind = "config_invalid"
	ErrUnrecognizedCandidate Kind = "unrecognized_candidate"
	ErrNoCandidates          Kind = "no_candidates"
	ErrNoProgress            Kind = "no_progress"
	ErrTieBreakCancelled     Kind = "tie_break_cancelled"
	ErrArithmeticOutOfRange  Kind = "arithmetic_out_of_range"
	ErrInternal              Kind = "internal"
)

func (k Kind) Error() string {
	return string(k)
}

// kindError pairs a Kind with a formatted message, the way the teacher's
// vote.MessageError pairs a sentinel with a message. errors.Is(err,
// ErrConfigInvalid) works because Unwrap returns the Kind itself.
type kindError struct {
	kind Kind
	msg  string
}

func (e kindError) Error() string {
	return e.msg
}

func (e kindError) Unwrap() error {
	return e.kind
}

// Type returns the error kind as a string, for callers (HTTP/CLI adapters)
// that need to map an error to a status or exit code without importing this
// package's sentinels.
func (e kindError) Type() string {
	return string(e.kind)
}

// MessageError wraps kind with msg so errors.Is(err, kind) still succeeds.
func MessageError(kind Kind, msg string) error {
	return kindError{kind: kind, msg: msg}
}

// MessageErrorf is MessageError with fmt.Sprintf formatting.
func MessageErrorf(kind Kind, format string, a ...any) error {
	return kindError{kind: kind, msg: fmt.Sprintf(format, a...)}
}

// KindOf returns the Kind carried by err, or ErrInternal if err carries none.
func KindOf(err error) Kind {
	var ke kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return ErrInternal
}
