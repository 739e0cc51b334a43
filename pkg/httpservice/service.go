// Package httpservice hosts connection-scoped services on a fasthttp server.
//
// A Builder owns a build function that is invoked once per accepted
// connection. The resulting service handles every request of that
// connection and is released when fasthttp reports the connection closed.
package httpservice

import (
	"context"
	"io"

	"github.com/valyala/fasthttp"
)

// Service handles one request. A returned error means no response was
// produced; the Builder then answers and closes the connection.
type Service interface {
	Call(ctx *fasthttp.RequestCtx) error
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx *fasthttp.RequestCtx) error

func (f ServiceFunc) Call(ctx *fasthttp.RequestCtx) error { return f(ctx) }

// ReadyService reports whether it can take a call right now.
type ReadyService interface {
	Service
	Ready(ctx context.Context) error
}

// BuildFunc builds the service for a new connection.
type BuildFunc func(ctx context.Context) (Service, error)

// ReadyBuildFunc builds a ReadyService for a new connection.
type ReadyBuildFunc func(ctx context.Context) (ReadyService, error)

// Middleware wraps a freshly built Service.
type Middleware func(Service) ReadyService

// Enclose applies mw to every service produced by build.
func Enclose(build BuildFunc, mw Middleware) ReadyBuildFunc {
	return func(ctx context.Context) (ReadyService, error) {
		svc, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return mw(svc), nil
	}
}

// UncheckedReady marks s as always ready. Services without internal
// admission state use it; backpressure is left to body streaming.
func UncheckedReady(s Service) ReadyService {
	return uncheckedReady{Service: s}
}

type uncheckedReady struct {
	Service
}

func (uncheckedReady) Ready(context.Context) error { return nil }

func (u uncheckedReady) Close() error {
	if c, ok := u.Service.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
