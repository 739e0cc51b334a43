package httpbody

import (
	"io"
	"net/http"
)

// DefaultChunkSize is the buffer size used when a Body is pulled out of a
// plain io.Reader.
const DefaultChunkSize = 32 * 1024

// maxEmptyReads bounds consecutive (0, nil) reads before giving up.
const maxEmptyReads = 100

type readerBody struct {
	rc        io.ReadCloser
	remaining int64 // -1 when unknown
	chunkSize int
	eof       bool
	trailers  func() http.Header
}

// FromReader adapts rc into a Body. contentLength follows the net/http
// convention (-1 means unknown). Each Data call allocates at most chunkSize
// bytes; a non-positive chunkSize selects DefaultChunkSize.
func FromReader(rc io.ReadCloser, contentLength int64, chunkSize int) Body {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if contentLength < 0 {
		contentLength = -1
	}
	return &readerBody{rc: rc, remaining: contentLength, chunkSize: chunkSize}
}

// FromResponse returns the Body of resp. Bodies that already implement Body
// (or were wrapped with NewReader) are used as they are; any other
// io.ReadCloser is adapted with FromReader and exposes resp.Trailer once
// drained.
func FromResponse(resp *http.Response, chunkSize int) Body {
	if resp == nil || resp.Body == nil || resp.Body == http.NoBody {
		return Empty()
	}
	switch b := resp.Body.(type) {
	case *bodyReader:
		return b.body
	case Body:
		return b
	}
	rb := FromReader(resp.Body, resp.ContentLength, chunkSize).(*readerBody)
	rb.trailers = func() http.Header { return resp.Trailer }
	return rb
}

func (r *readerBody) Data() ([]byte, error) {
	if r.eof || r.remaining == 0 {
		r.eof = true
		return nil, io.EOF
	}
	size := r.chunkSize
	if r.remaining > 0 && r.remaining < int64(size) {
		size = int(r.remaining)
	}
	buf := make([]byte, size)
	for i := 0; i < maxEmptyReads; i++ {
		n, err := r.rc.Read(buf)
		if r.remaining > 0 {
			r.remaining -= int64(n)
		}
		if err == io.EOF {
			r.eof = true
			if n > 0 {
				return buf[:n], nil
			}
			return nil, io.EOF
		}
		if err != nil {
			return buf[:n], err
		}
		if n > 0 {
			return buf[:n], nil
		}
	}
	return nil, io.ErrNoProgress
}

func (r *readerBody) Trailers() (http.Header, error) {
	if r.trailers == nil {
		return nil, nil
	}
	return r.trailers(), nil
}

func (r *readerBody) IsEndStream() bool { return r.eof || r.remaining == 0 }

func (r *readerBody) SizeHint() SizeHint {
	if r.IsEndStream() {
		return None()
	}
	return FromContentLength(r.remaining)
}

func (r *readerBody) Close() error { return r.rc.Close() }

// bodyReader presents a Body as an io.ReadCloser so it can be stored in
// http.Response.Body without losing its hints.
type bodyReader struct {
	body    Body
	pending []byte
	err     error
}

// NewReader wraps b as an io.ReadCloser. FromResponse recognizes the
// wrapper and hands the original Body back.
func NewReader(b Body) io.ReadCloser {
	return &bodyReader{body: b}
}

func (r *bodyReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.pending, r.err = r.body.Data()
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *bodyReader) Close() error {
	if c, ok := r.body.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
