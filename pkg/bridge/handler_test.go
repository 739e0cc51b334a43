package bridge

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func TestFromHandlerStreams(t *testing.T) {
	svc := FromHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Handler", "1")
		w.WriteHeader(http.StatusCreated)
		for _, part := range []string{"a", "b", "c"} {
			_, _ = io.WriteString(w, part)
			w.(http.Flusher).Flush()
		}
	}))

	resp, err := svc.Call(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || resp.Header.Get("X-Handler") != "1" {
		t.Fatalf("head = %d %v", resp.StatusCode, resp.Header)
	}
	if resp.ContentLength != -1 {
		t.Fatalf("content length = %d", resp.ContentLength)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil || string(b) != "abc" {
		t.Fatalf("body = %q, %v", b, err)
	}
}

func TestFromHandlerContentLength(t *testing.T) {
	svc := FromHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "5")
		_, _ = io.WriteString(w, "hello")
	}))
	resp, err := svc.Call(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.ContentLength != 5 {
		t.Fatalf("head = %d, length %d", resp.StatusCode, resp.ContentLength)
	}
}

func TestFromHandlerNoWrite(t *testing.T) {
	svc := FromHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	resp, err := svc.Call(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.StatusCode != http.StatusOK || resp.Body != http.NoBody || resp.ContentLength != 0 {
		t.Fatalf("resp = %d %v %d", resp.StatusCode, resp.Body, resp.ContentLength)
	}
}

func TestFromHandlerPanic(t *testing.T) {
	t.Run("before head", func(t *testing.T) {
		svc := FromHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("kaput")
		}))
		if _, err := svc.Call(httptest.NewRequest(http.MethodGet, "/", nil)); err == nil || !strings.Contains(err.Error(), "kaput") {
			t.Fatalf("Call = %v", err)
		}
	})

	t.Run("abort after head", func(t *testing.T) {
		svc := FromHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "partial")
			panic(http.ErrAbortHandler)
		}))
		resp, err := svc.Call(httptest.NewRequest(http.MethodGet, "/", nil))
		if err != nil {
			t.Fatalf("Call: %v", err)
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if string(b) != "partial" || !errors.Is(err, http.ErrAbortHandler) {
			t.Fatalf("body = %q, %v", b, err)
		}
	})
}

func TestFromHandlerCancelledBeforeHead(t *testing.T) {
	unblock := make(chan struct{})
	defer close(unblock)
	svc := FromHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-unblock
	}))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, err := svc.Call(req); !errors.Is(err, context.Canceled) {
		t.Fatalf("Call = %v", err)
	}
}

func TestFromHandlerCloseUnblocksWriter(t *testing.T) {
	writeErr := make(chan error, 1)
	svc := FromHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		for {
			if _, err := io.WriteString(w, "tick"); err != nil {
				writeErr <- err
				return
			}
		}
	}))

	resp, err := svc.Call(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(resp.Body, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	_ = resp.Body.Close()

	select {
	case err := <-writeErr:
		if !errors.Is(err, io.ErrClosedPipe) {
			t.Fatalf("write error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("handler still blocked after the body was closed")
	}
}
