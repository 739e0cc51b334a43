package bridge

import (
	"io"
	"math"
	"sync"

	"fastbridge/pkg/httpbody"
)

// Stream turns the inner service's response body into the lazy chunk
// sequence fasthttp pulls while writing the response.
//
// The sequence is finite and not restartable: once Next has returned io.EOF
// or an error it keeps returning it.
type Stream struct {
	body    httpbody.Body
	closer  io.Closer
	pending []byte
	err     error

	onChunk   func(n int)
	onClose   func()
	closeOnce sync.Once
}

// NewStream wraps body. closer, if not nil, is closed together with the
// stream; it is normally the http.Response.Body the body was read from.
func NewStream(body httpbody.Body, closer io.Closer) *Stream {
	if body == nil {
		body = httpbody.Empty()
	}
	return &Stream{body: body, closer: closer}
}

// Next returns the next chunk, io.EOF at the end of the stream, or a
// *BodyError if the source failed.
func (s *Stream) Next() ([]byte, error) {
	for s.err == nil {
		if s.body.IsEndStream() {
			s.err = io.EOF
			break
		}
		chunk, err := s.body.Data()
		if err != nil {
			s.err = wrapBodyError(err)
		}
		if len(chunk) > 0 {
			if s.onChunk != nil {
				s.onChunk(len(chunk))
			}
			return chunk, nil
		}
	}
	return nil, s.err
}

// Read implements io.Reader on top of Next. At most one partially consumed
// chunk is held between calls.
func (s *Stream) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		chunk, err := s.Next()
		if err != nil {
			return 0, err
		}
		s.pending = chunk
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// SizeHint reports the remaining length, including a partially read chunk.
// A source at end of stream always reports exactly zero.
func (s *Stream) SizeHint() httpbody.SizeHint {
	if s.body.IsEndStream() {
		return httpbody.Exact(uint64(len(s.pending)))
	}
	h := s.body.SizeHint()
	extra := uint64(len(s.pending))
	h.Lower += extra
	if h.HasUpper {
		h.Upper += extra
	}
	return h
}

// ContentLength narrows SizeHint to the int length fasthttp expects from
// SetBodyStream: the exact size, or -1 for a chunked response.
func (s *Stream) ContentLength() int {
	n := s.SizeHint().ContentLength()
	if n < 0 || n > math.MaxInt {
		return -1
	}
	return int(n)
}

// Close releases the source. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.err == nil {
			s.err = ErrStreamClosed
		}
		s.pending = nil
		if s.closer != nil {
			err = s.closer.Close()
		}
		if s.onClose != nil {
			s.onClose()
		}
	})
	return err
}
