package sentiment

import (
	"errors"
	"fmt"
)

// Kind classifies why an analysis failed so front-ends can pick their own
// status codes without parsing messages.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation covers empty-after-cleaning input and missing fields.
	KindValidation
	// KindBackend covers tokenizer and model failures.
	KindBackend
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// Error is returned by the classification pipeline.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError builds a KindValidation error.
func ValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// BackendError wraps a backend failure.
func BackendError(msg string, err error) *Error {
	return &Error{Kind: KindBackend, Msg: msg, Err: err}
}

// KindOf reports the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
