package manual

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can tell "no data" from "service broken".
type Kind int

const (
	// KindUnknown is reported for errors that carry no kind.
	KindUnknown Kind = iota
	// KindTransient marks I/O failures (page fetch, index query, model call).
	KindTransient
	// KindAbsent marks structural absence: the data simply is not there.
	KindAbsent
	// KindFatal marks failures that must end the current run.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAbsent:
		return "absent"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is an error tagged with a Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a transient failure of op.
func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Absent wraps err as a structural absence reported by op.
func Absent(op string, err error) error {
	return &Error{Kind: KindAbsent, Op: op, Err: err}
}

// Fatal wraps err as a fatal failure of op.
func Fatal(op string, err error) error {
	return &Error{Kind: KindFatal, Op: op, Err: err}
}

// KindOf returns the kind of the outermost tagged error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
