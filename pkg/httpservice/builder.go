package httpservice

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"fastbridge/pkg/logger"
	"fastbridge/pkg/metrics"
)

// Options are the protocol settings of the fasthttp server built by
// Builder.Server.
type Options struct {
	Name               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	MaxRequestBodySize int
	ReadBufferSize     int
	Concurrency        int
	StreamRequestBody  bool
}

// ErrorHandler answers a request whose service failed.
type ErrorHandler func(ctx *fasthttp.RequestCtx, err error)

// Builder serves requests with one service per connection.
type Builder struct {
	build   ReadyBuildFunc
	conns   sync.Map // net.Conn -> *slot
	onError ErrorHandler

	connsActive prometheus.Gauge
	connsTotal  prometheus.Counter
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithErrorHandler replaces the default error answer (500, connection
// close).
func WithErrorHandler(h ErrorHandler) BuilderOption {
	return func(b *Builder) { b.onError = h }
}

// WithRegisterer registers the connection metrics with reg.
func WithRegisterer(reg prometheus.Registerer) BuilderOption {
	return func(b *Builder) {
		b.connsActive = metrics.Register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "server",
			Name:      "connections_active",
			Help:      "Connections with a registered service slot.",
		}))
		b.connsTotal = metrics.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "server",
			Name:      "connections_total",
			Help:      "Connections accepted.",
		}))
	}
}

// NewBuilder returns a Builder around build.
func NewBuilder(build ReadyBuildFunc, opts ...BuilderOption) *Builder {
	b := &Builder{build: build, onError: closeWithError}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// slot holds the service of one connection. The service is built lazily
// by the first request, on the connection's own goroutine, so a slow
// factory never stalls the accept loop.
type slot struct {
	once sync.Once
	svc  ReadyService
	err  error
}

func (s *slot) get(build ReadyBuildFunc) (ReadyService, error) {
	s.once.Do(func() {
		s.svc, s.err = build(context.Background())
	})
	return s.svc, s.err
}

func (s *slot) release() {
	// Mark the slot as used so a late first request cannot build after
	// the connection is gone.
	s.once.Do(func() {})
	if c, ok := s.svc.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("conn_release_failed", "error", err)
		}
	}
}

// ConnState tracks connection lifecycles. Install it as
// fasthttp.Server.ConnState; Server does so.
func (b *Builder) ConnState(c net.Conn, state fasthttp.ConnState) {
	switch state {
	case fasthttp.StateNew:
		b.conns.Store(c, &slot{})
		if b.connsTotal != nil {
			b.connsTotal.Inc()
			b.connsActive.Inc()
		}
	case fasthttp.StateClosed, fasthttp.StateHijacked:
		if v, ok := b.conns.LoadAndDelete(c); ok {
			v.(*slot).release()
			if b.connsActive != nil {
				b.connsActive.Dec()
			}
		}
	}
}

// Handler is the fasthttp.RequestHandler of the Builder.
func (b *Builder) Handler(ctx *fasthttp.RequestCtx) {
	svc, err := b.service(ctx)
	if err != nil {
		logger.Error("conn_build_failed", "remote", ctx.RemoteAddr().String(), "error", err)
		b.onError(ctx, err)
		return
	}
	if err := svc.Ready(ctx); err != nil {
		logger.Warn("service_not_ready", "remote", ctx.RemoteAddr().String(), "error", err)
		ctx.Response.Reset()
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		return
	}
	if err := svc.Call(ctx); err != nil {
		logger.Warn("service_call_failed", "method", string(ctx.Method()), "path", string(ctx.Path()), "remote", ctx.RemoteAddr().String(), "error", err)
		b.onError(ctx, err)
	}
}

// service returns the connection's service. Connections the Builder has
// not seen through ConnState get a fresh service per request; those
// instances are not closed.
func (b *Builder) service(ctx *fasthttp.RequestCtx) (ReadyService, error) {
	if c := ctx.Conn(); c != nil {
		if v, ok := b.conns.Load(c); ok {
			return v.(*slot).get(b.build)
		}
	}
	return b.build(context.Background())
}

// Server returns a fasthttp.Server wired to the Builder.
func (b *Builder) Server(o Options) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:              b.Handler,
		ConnState:            b.ConnState,
		Name:                 o.Name,
		ReadTimeout:          o.ReadTimeout,
		WriteTimeout:         o.WriteTimeout,
		IdleTimeout:          o.IdleTimeout,
		MaxRequestBodySize:   o.MaxRequestBodySize,
		ReadBufferSize:       o.ReadBufferSize,
		Concurrency:          o.Concurrency,
		StreamRequestBody:    o.StreamRequestBody,
		NoDefaultContentType: true,
		Logger:               logger.Fast(),
	}
}

func closeWithError(ctx *fasthttp.RequestCtx, _ error) {
	ctx.Response.Reset()
	ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	ctx.SetConnectionClose()
}
