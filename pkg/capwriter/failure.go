package capwriter

import (
	"fmt"

	"github.com/pkg/errors"
)

// FailureKind tells the caller which step of a write operation failed.
type FailureKind int

const (
	// NoFailure is returned by KindOf for nil or foreign errors.
	NoFailure FailureKind = iota
	// NotBound means WriteRecord was called before a successful WriteGlobalHeader.
	NotBound
	// HeaderWriteFailed means the global header could not be written. The writer is unbound.
	HeaderWriteFailed
	// RecordHeaderWriteFailed means no byte of the record payload was written.
	// Failure.Written tells whether a part of the record header reached the sink.
	RecordHeaderWriteFailed
	// RecordPayloadWriteFailed means the record header is already in the sink
	// but its payload is missing or short.
	RecordPayloadWriteFailed
)

func (x FailureKind) String() string {
	switch x {
	case NoFailure:
		return "no failure"
	case NotBound:
		return "writer is not bound"
	case HeaderWriteFailed:
		return "header write failed"
	case RecordHeaderWriteFailed:
		return "record header failed"
	case RecordPayloadWriteFailed:
		return "record payload failed"
	default:
		return fmt.Sprintf("unknown failure (%d)", int(x))
	}
}

var (
	// ErrNotBound is the cause of a NotBound failure.
	ErrNotBound = errors.New("WriteGlobalHeader has not succeeded on this writer")

	// ErrRetryExhausted is returned when the retry policy gives up on a
	// sink that keeps reporting transient errors.
	ErrRetryExhausted = errors.New("Retry policy stopped transfer")
)

// Failure is the error type returned by Writer operations.
type Failure struct {
	Kind FailureKind
	Err  error

	// Written is the number of bytes the failed operation left in the sink.
	// The sink ends at a record boundary only when it is 0.
	Written int
}

func (x *Failure) Error() string {
	if x.Err == nil {
		return x.Kind.String()
	}
	return x.Kind.String() + ": " + x.Err.Error()
}

// Unwrap returns the underlying cause.
func (x *Failure) Unwrap() error { return x.Err }

// Cause returns the underlying cause for github.com/pkg/errors.Cause.
func (x *Failure) Cause() error { return x.Err }

func newFailure(kind FailureKind, written int, err error) *Failure {
	return &Failure{Kind: kind, Err: err, Written: written}
}

// KindOf extracts FailureKind from err. It returns NoFailure if err does not
// contain a *Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return NoFailure
}

// WrittenOf returns Failure.Written of err, or 0 if err does not contain a
// *Failure.
func WrittenOf(err error) int {
	var f *Failure
	if errors.As(err, &f) {
		return f.Written
	}
	return 0
}
