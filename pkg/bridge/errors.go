package bridge

import (
	"io"

	"github.com/cockroachdb/errors"
)

var (
	// ErrBodyDetached is returned by a RequestBody pulled after the request
	// it belongs to has been finished by the server.
	ErrBodyDetached = errors.New("bridge: request body used after the request finished")

	// ErrConcurrentCall is returned in exclusive mode when a call overlaps
	// another call on the same inner instance.
	ErrConcurrentCall = errors.New("bridge: concurrent call on an exclusive service")

	// ErrStreamClosed is returned by a Stream read after Close.
	ErrStreamClosed = errors.New("bridge: response stream closed")

	errNilResponse = errors.New("bridge: inner service returned a nil response")
	errNilService  = errors.New("bridge: factory returned a nil service")
)

// BodyError wraps a failure of a body source. The original error stays
// reachable through errors.Is/As.
type BodyError struct {
	Err error
}

func (e *BodyError) Error() string { return "bridge: body: " + e.Err.Error() }

func (e *BodyError) Unwrap() error { return e.Err }

func wrapBodyError(err error) error {
	if err == nil || err == io.EOF {
		return err
	}
	var be *BodyError
	if errors.As(err, &be) {
		return err
	}
	return &BodyError{Err: err}
}
