package bridge

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
)

// FromHandler adapts an http.Handler into a Service.
//
// The handler runs on its own goroutine and writes into a pipe. Call returns
// as soon as the handler has committed its response head (WriteHeader, the
// first Write, or returning), and the response body then streams whatever
// the handler keeps writing. Closing the body makes further writes fail,
// which unblocks a handler whose client went away.
func FromHandler(h http.Handler) Service {
	return handlerService{h: h}
}

type handlerService struct {
	h http.Handler
}

func (s handlerService) Call(req *http.Request) (*http.Response, error) {
	pr, pw := io.Pipe()
	w := &pipeResponseWriter{
		req:    req,
		header: make(http.Header),
		pr:     pr,
		pw:     pw,
		ready:  make(chan struct{}),
	}
	go w.serve(s.h)

	select {
	case <-w.ready:
		return w.resp, w.err
	case <-req.Context().Done():
		err := req.Context().Err()
		_ = pr.CloseWithError(err)
		return nil, err
	}
}

type pipeResponseWriter struct {
	req    *http.Request
	header http.Header
	pr     *io.PipeReader
	pw     *io.PipeWriter

	mu          sync.Mutex
	wroteHeader bool
	ready       chan struct{}
	resp        *http.Response
	err         error
}

var _ http.Flusher = (*pipeResponseWriter)(nil)

func (w *pipeResponseWriter) serve(h http.Handler) {
	defer func() {
		if r := recover(); r != nil {
			if r == http.ErrAbortHandler {
				w.fail(errors.Wrap(http.ErrAbortHandler, "bridge: handler aborted"))
				return
			}
			w.fail(errors.Newf("bridge: handler panic: %v", r))
			return
		}
		w.finish()
	}()
	h.ServeHTTP(w, w.req)
}

func (w *pipeResponseWriter) Header() http.Header { return w.header }

func (w *pipeResponseWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.commit(code, w.pr)
}

func (w *pipeResponseWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.commit(http.StatusOK, w.pr)
	w.mu.Unlock()
	return w.pw.Write(p)
}

// Flush is a no-op: every Write is handed to the reader synchronously.
func (w *pipeResponseWriter) Flush() {}

// commit publishes the response head once. Callers hold mu.
func (w *pipeResponseWriter) commit(code int, body io.ReadCloser) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	header := w.header.Clone()
	contentLength := int64(-1)
	if v := header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			contentLength = n
		}
	}
	if body == http.NoBody {
		contentLength = 0
	}
	w.resp = &http.Response{
		Status:        fmt.Sprintf("%d %s", code, http.StatusText(code)),
		StatusCode:    code,
		Proto:         w.req.Proto,
		ProtoMajor:    w.req.ProtoMajor,
		ProtoMinor:    w.req.ProtoMinor,
		Header:        header,
		Body:          body,
		ContentLength: contentLength,
		Request:       w.req,
	}
	close(w.ready)
}

// finish runs when the handler returned normally.
func (w *pipeResponseWriter) finish() {
	w.mu.Lock()
	if !w.wroteHeader {
		w.commit(http.StatusOK, http.NoBody)
		_ = w.pr.Close()
	}
	w.mu.Unlock()
	_ = w.pw.Close()
}

// fail reports a handler panic: as the call error if the head was not sent
// yet, otherwise as the error of the body stream.
func (w *pipeResponseWriter) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.wroteHeader {
		w.wroteHeader = true
		w.err = err
		_ = w.pr.Close()
		close(w.ready)
		return
	}
	_ = w.pw.CloseWithError(err)
}
