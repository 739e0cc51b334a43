package httpbody

import (
	"bytes"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"testing"
)

type chunkReader struct {
	chunks [][]byte
	err    error
	closed bool
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func (c *chunkReader) Close() error {
	c.closed = true
	return nil
}

func TestSizeHint(t *testing.T) {
	if n, ok := Exact(7).ExactLen(); !ok || n != 7 {
		t.Fatalf("Exact(7).ExactLen() = %d, %v", n, ok)
	}
	if _, ok := Unknown().ExactLen(); ok {
		t.Fatalf("unknown hint must not be exact")
	}
	if got := Unknown().ContentLength(); got != -1 {
		t.Fatalf("unknown content length = %d, want -1", got)
	}
	if got := None().ContentLength(); got != 0 {
		t.Fatalf("none content length = %d, want 0", got)
	}
	if got := Exact(math.MaxUint64).ContentLength(); got != -1 {
		t.Fatalf("oversized hint must narrow to -1, got %d", got)
	}
	if got := FromContentLength(-1); got.HasUpper {
		t.Fatalf("FromContentLength(-1) must have no upper bound: %+v", got)
	}
}

func TestFullAndEmpty(t *testing.T) {
	b := Full([]byte("hello"))
	if b.IsEndStream() {
		t.Fatalf("full body reported end before data")
	}
	if n, ok := b.SizeHint().ExactLen(); !ok || n != 5 {
		t.Fatalf("full size hint = %d, %v", n, ok)
	}
	chunk, err := b.Data()
	if err != nil || string(chunk) != "hello" {
		t.Fatalf("Data() = %q, %v", chunk, err)
	}
	if !b.IsEndStream() {
		t.Fatalf("full body must end after its chunk")
	}
	if _, err := b.Data(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}

	e := Empty()
	if !e.IsEndStream() {
		t.Fatalf("empty body must be at end")
	}
	if _, ok := Full(nil).(empty); !ok {
		t.Fatalf("Full(nil) should be the empty body")
	}
}

func TestFromReaderPreservesChunks(t *testing.T) {
	src := &chunkReader{chunks: [][]byte{[]byte("ab"), []byte("cde"), []byte("f")}}
	b := FromReader(src, -1, 0)

	var got []string
	for {
		chunk, err := b.Data()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Data: %v", err)
		}
		got = append(got, string(chunk))
	}
	if strings.Join(got, "|") != "ab|cde|f" {
		t.Fatalf("chunks = %v", got)
	}
	if !b.IsEndStream() {
		t.Fatalf("reader body must be at end after EOF")
	}
	if err := b.(io.Closer).Close(); err != nil || !src.closed {
		t.Fatalf("close did not reach source: %v", err)
	}
}

func TestFromReaderContentLength(t *testing.T) {
	b := FromReader(io.NopCloser(strings.NewReader("0123456789")), 10, 4)
	if n, ok := b.SizeHint().ExactLen(); !ok || n != 10 {
		t.Fatalf("initial hint = %d, %v", n, ok)
	}
	first, _ := b.Data()
	if len(first) != 4 {
		t.Fatalf("chunk size not honoured: %d", len(first))
	}
	if n, _ := b.SizeHint().ExactLen(); n != 6 {
		t.Fatalf("hint after first chunk = %d, want 6", n)
	}
	rest, err := Collect(b)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if string(first)+string(rest) != "0123456789" {
		t.Fatalf("payload = %q", string(first)+string(rest))
	}
	if !b.IsEndStream() {
		t.Fatalf("body must end once content length is consumed")
	}
}

func TestFromReaderError(t *testing.T) {
	boom := errors.New("boom")
	b := FromReader(&chunkReader{chunks: [][]byte{[]byte("x")}, err: boom}, -1, 0)
	if _, err := b.Data(); err != nil {
		t.Fatalf("first chunk: %v", err)
	}
	if _, err := b.Data(); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestFromResponse(t *testing.T) {
	if !FromResponse(&http.Response{Body: http.NoBody}, 0).IsEndStream() {
		t.Fatalf("NoBody must map to an empty body")
	}

	native := Full([]byte("native"))
	resp := &http.Response{Body: NewReader(native), ContentLength: -1}
	if FromResponse(resp, 0) != native {
		t.Fatalf("wrapped Body was not unwrapped")
	}

	resp = &http.Response{
		Body:          io.NopCloser(strings.NewReader("abc")),
		ContentLength: 3,
		Trailer:       http.Header{"X-Checksum": {"1"}},
	}
	b := FromResponse(resp, 0)
	if _, err := Collect(b); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	tr, err := b.Trailers()
	if err != nil || tr.Get("X-Checksum") != "1" {
		t.Fatalf("trailers = %v, %v", tr, err)
	}
}

func TestNewReader(t *testing.T) {
	src := &chunkReader{chunks: [][]byte{[]byte("hello,"), []byte("world!")}}
	r := NewReader(FromReader(src, -1, 0))
	var buf bytes.Buffer
	if _, err := io.CopyBuffer(&buf, r, make([]byte, 3)); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if buf.String() != "hello,world!" {
		t.Fatalf("read %q", buf.String())
	}
	if err := r.Close(); err != nil || !src.closed {
		t.Fatalf("close: %v", err)
	}
}
