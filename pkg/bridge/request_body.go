package bridge

import (
	"io"
	"net/http"
	"sync"

	"fastbridge/pkg/httpbody"
)

// RequestBody exposes the body of a fasthttp request to the inner service,
// both as an io.ReadCloser and as an httpbody.Body.
//
// The source belongs to the fasthttp request and is only valid while that
// request is being served. The server drives one request per connection at a
// time and parks its goroutine in the bridge until the response body has
// been written, so pulls from the inner service never race the server.
// Pulls from several inner goroutines are serialized by mu, and once the
// request is finished the body is detached: every later pull returns
// ErrBodyDetached instead of touching recycled server memory.
type RequestBody struct {
	mu        sync.Mutex
	src       io.Reader
	remaining int64 // -1 when unknown
	length    int64
	chunkSize int
	eof       bool
	detached  bool
}

// maxEmptyReads bounds consecutive (0, nil) reads from a source.
const maxEmptyReads = 100

var (
	_ io.ReadCloser = (*RequestBody)(nil)
	_ httpbody.Body = (*RequestBody)(nil)
)

func newRequestBody(src io.Reader, contentLength int64, chunkSize int) *RequestBody {
	if contentLength < 0 {
		contentLength = -1
	}
	if chunkSize <= 0 {
		chunkSize = httpbody.DefaultChunkSize
	}
	return &RequestBody{
		src:       src,
		remaining: contentLength,
		length:    contentLength,
		chunkSize: chunkSize,
	}
}

// ContentLength is the declared length, -1 when unknown.
func (b *RequestBody) ContentLength() int64 { return b.length }

// Read reads directly from the source into p.
func (b *RequestBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if b.remaining > 0 && int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.src.Read(p)
	b.advance(n)
	if err == io.EOF {
		b.eof = true
		if n > 0 {
			return n, nil
		}
	}
	return n, wrapBodyError(err)
}

// Data pulls the next chunk. The chunk is freshly allocated and owned by the
// caller.
func (b *RequestBody) Data() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(); err != nil {
		return nil, err
	}
	size := b.chunkSize
	if b.remaining > 0 && b.remaining < int64(size) {
		size = int(b.remaining)
	}
	buf := make([]byte, size)
	for i := 0; i < maxEmptyReads; i++ {
		n, err := b.src.Read(buf)
		b.advance(n)
		if err == io.EOF {
			b.eof = true
			if n == 0 {
				return nil, io.EOF
			}
			return buf[:n], nil
		}
		if err != nil {
			return buf[:n], wrapBodyError(err)
		}
		if n > 0 {
			return buf[:n], nil
		}
	}
	return nil, wrapBodyError(io.ErrNoProgress)
}

// Trailers always reports no trailers: inbound trailers are not forwarded.
func (b *RequestBody) Trailers() (http.Header, error) { return nil, nil }

func (b *RequestBody) IsEndStream() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.eof || b.remaining == 0
}

func (b *RequestBody) SizeHint() httpbody.SizeHint {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.eof || b.remaining == 0 {
		return httpbody.None()
	}
	return httpbody.FromContentLength(b.remaining)
}

// Close detaches the body from its source.
func (b *RequestBody) Close() error {
	b.detach()
	return nil
}

func (b *RequestBody) detach() {
	b.mu.Lock()
	b.detached = true
	b.src = nil
	b.mu.Unlock()
}

func (b *RequestBody) check() error {
	if b.detached {
		return ErrBodyDetached
	}
	if b.eof || b.remaining == 0 {
		return io.EOF
	}
	return nil
}

func (b *RequestBody) advance(n int) {
	if b.remaining > 0 {
		b.remaining -= int64(n)
		if b.remaining < 0 {
			b.remaining = 0
		}
	}
}
