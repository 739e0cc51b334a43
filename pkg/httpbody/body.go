// Package httpbody defines the pull-based body contract used by bridged
// handlers and the adapters between it and net/http body values.
package httpbody

import (
	"io"
	"math"
	"net/http"
)

// Body is a payload that is pulled chunk by chunk instead of being
// materialized up front.
//
// Data blocks until the next chunk is available and returns io.EOF once the
// stream is exhausted. A returned chunk is owned by the caller. Trailers may
// only be called after Data has returned io.EOF.
type Body interface {
	Data() ([]byte, error)
	Trailers() (http.Header, error)
	IsEndStream() bool
	SizeHint() SizeHint
}

// SizeHint carries the lower and (optional) upper bound of the remaining
// body length.
type SizeHint struct {
	Lower    uint64
	Upper    uint64
	HasUpper bool
}

// Unknown is the hint of a body that cannot say anything about its length.
func Unknown() SizeHint { return SizeHint{} }

// Exact returns a hint with identical bounds.
func Exact(n uint64) SizeHint { return SizeHint{Lower: n, Upper: n, HasUpper: true} }

// None is the hint of a body known to be empty.
func None() SizeHint { return Exact(0) }

// ExactLen returns the length when both bounds agree.
func (h SizeHint) ExactLen() (uint64, bool) {
	if h.HasUpper && h.Upper == h.Lower {
		return h.Lower, true
	}
	return 0, false
}

// ContentLength narrows the hint to the signed length convention used by
// net/http and fasthttp: the exact length, or -1 when unknown or too large.
func (h SizeHint) ContentLength() int64 {
	n, ok := h.ExactLen()
	if !ok || n > math.MaxInt64 {
		return -1
	}
	return int64(n)
}

// FromContentLength converts a net/http style length (-1 unknown) to a hint.
func FromContentLength(n int64) SizeHint {
	if n < 0 {
		return Unknown()
	}
	return Exact(uint64(n))
}

type empty struct{}

// Empty returns a body without data.
func Empty() Body { return empty{} }

func (empty) Data() ([]byte, error)          { return nil, io.EOF }
func (empty) Trailers() (http.Header, error) { return nil, nil }
func (empty) IsEndStream() bool              { return true }
func (empty) SizeHint() SizeHint             { return None() }

type full struct {
	data []byte
}

// Full returns a body yielding b as a single chunk.
func Full(b []byte) Body {
	if len(b) == 0 {
		return Empty()
	}
	return &full{data: b}
}

func (f *full) Data() ([]byte, error) {
	if f.data == nil {
		return nil, io.EOF
	}
	b := f.data
	f.data = nil
	return b, nil
}

func (f *full) Trailers() (http.Header, error) { return nil, nil }
func (f *full) IsEndStream() bool              { return f.data == nil }

func (f *full) SizeHint() SizeHint { return Exact(uint64(len(f.data))) }

// Collect drains b and returns all of its bytes. Intended for small bodies
// and tests; bridged traffic is never collected.
func Collect(b Body) ([]byte, error) {
	var out []byte
	for {
		chunk, err := b.Data()
		out = append(out, chunk...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}
