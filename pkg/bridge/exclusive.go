package bridge

import (
	"io"
	"net/http"
	"sync/atomic"
)

// exclusive gives one caller at a time access to an inner service that keeps
// mutable per-connection state. It is a borrow flag, not a lock: the server
// never issues two calls on one connection at once, so an overlapping call is
// a contract violation and fails instead of waiting.
type exclusive struct {
	svc  Service
	busy atomic.Bool
}

func (e *exclusive) Call(req *http.Request) (*http.Response, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrConcurrentCall
	}
	defer e.busy.Store(false)
	return e.svc.Call(req)
}

func (e *exclusive) Close() error {
	if c, ok := e.svc.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
