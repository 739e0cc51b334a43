// Package bridge runs net/http style services inside a fasthttp server.
//
// A Bridge owns a Factory that produces one inner Service per connection.
// Every call translates the fasthttp request into an *http.Request whose
// body streams from the connection, forwards the peer address through the
// request context, invokes the inner service and streams its response body
// back to fasthttp. Status and headers are passed through untouched.
package bridge

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fastbridge/pkg/httpbody"
	"fastbridge/pkg/logger"
)

const tracerName = "fastbridge/pkg/bridge"

// Service is the inner handler contract: it takes the whole request and
// returns a response whose Body is pulled by the bridge.
//
// The response Body may implement httpbody.Body (or be wrapped with
// httpbody.NewReader) to report size hints and trailers; any other
// io.ReadCloser is streamed using http.Response.ContentLength as its hint.
type Service interface {
	Call(req *http.Request) (*http.Response, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(req *http.Request) (*http.Response, error)

func (f ServiceFunc) Call(req *http.Request) (*http.Response, error) { return f(req) }

// Factory produces one inner Service. It may be invoked concurrently, once
// per connection.
type Factory func(ctx context.Context) (Service, error)

// NewFactory wraps an infallible constructor.
func NewFactory(fn func() Service) Factory {
	return func(context.Context) (Service, error) { return fn(), nil }
}

// Bridge builds per-connection Conns from a Factory.
type Bridge struct {
	factory     Factory
	exclusive   bool
	chunkSize   int
	forwardPeer bool
	metrics     *Metrics
	tracer      trace.Tracer
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithExclusive serializes calls on each inner instance. Use it for services
// that mutate per-connection state.
func WithExclusive() Option { return func(b *Bridge) { b.exclusive = true } }

// WithMetrics records calls and builds into m.
func WithMetrics(m *Metrics) Option { return func(b *Bridge) { b.metrics = m } }

// WithTracerProvider selects the provider used for call spans. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *Bridge) { b.tracer = tp.Tracer(tracerName) }
}

// WithChunkSize sets the size of chunks pulled from request bodies.
func WithChunkSize(n int) Option { return func(b *Bridge) { b.chunkSize = n } }

// WithoutPeerAddr stops forwarding the peer address to the inner service.
func WithoutPeerAddr() Option { return func(b *Bridge) { b.forwardPeer = false } }

// New returns a Bridge around factory.
func New(factory Factory, opts ...Option) *Bridge {
	b := &Bridge{
		factory:     factory,
		chunkSize:   httpbody.DefaultChunkSize,
		forwardPeer: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.tracer == nil {
		b.tracer = otel.Tracer(tracerName)
	}
	return b
}

// Build invokes the factory once and returns the Conn serving one
// connection.
func (b *Bridge) Build(ctx context.Context) (*Conn, error) {
	svc, err := b.factory(ctx)
	if err == nil && svc == nil {
		err = errNilService
	}
	b.metrics.observeBuild(err)
	if err != nil {
		return nil, errors.Wrap(err, "bridge: build inner service")
	}
	if b.exclusive {
		svc = &exclusive{svc: svc}
	}
	return &Conn{bridge: b, svc: svc}, nil
}

// Conn is the bridge state of one connection.
type Conn struct {
	bridge *Bridge
	svc    Service
}

// Close releases the inner instance if it implements io.Closer.
func (c *Conn) Close() error {
	if cl, ok := c.svc.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// Call serves ctx through the inner service. It is CallContext with the
// request context itself as parent, so a server shutdown cancels the inner
// request.
func (c *Conn) Call(ctx *fasthttp.RequestCtx) error {
	return c.CallContext(ctx, ctx)
}

// CallContext serves ctx through the inner service. parent only contributes
// cancellation: none of its values reach the inner request.
//
// On success the response head and a streaming body are set on
// ctx.Response. On failure the inner error is returned as is and ctx.Response
// is left untouched. If parent is cancelled before the inner service returns,
// its response is discarded and parent's error is returned.
func (c *Conn) CallContext(parent context.Context, ctx *fasthttp.RequestCtx) error {
	b := c.bridge
	start := time.Now()

	base, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(parent, cancel)

	src, contentLength := requestBodySource(ctx)
	body := newRequestBody(src, contentLength, b.chunkSize)
	release := func() {
		body.detach()
		stop()
		cancel()
	}

	req, err := newRequest(ctx, body)
	if err != nil {
		release()
		b.metrics.observeCall(outcomeError, start)
		return err
	}

	// The peer address is attached after the request has been assembled;
	// the rest of the server-side user values are not forwarded.
	peer := ctx.RemoteAddr()
	reqCtx := base
	if b.forwardPeer && peer != nil {
		reqCtx = WithPeerAddr(reqCtx, peer)
		req.RemoteAddr = peer.String()
	}

	reqCtx, span := b.tracer.Start(reqCtx, "bridge.call",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
			attribute.String("client.address", req.RemoteAddr),
		),
	)
	defer span.End()
	req = req.WithContext(reqCtx)

	resp, err := c.svc.Call(req)
	if err == nil && resp == nil {
		err = errNilResponse
	}
	if err != nil {
		release()
		span.RecordError(err)
		span.SetStatus(codes.Error, "inner service failed")
		b.metrics.observeCall(outcomeError, start)
		return err
	}

	if perr := parent.Err(); perr != nil {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
		release()
		span.SetStatus(codes.Error, "canceled")
		b.metrics.observeCall(outcomeCanceled, start)
		return perr
	}

	stream := NewStream(httpbody.FromResponse(resp, b.chunkSize), resp.Body)
	stream.onClose = release
	if b.metrics != nil {
		stream.onChunk = b.metrics.addResponseBytes
	}
	writeResponse(ctx, resp, stream)

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	b.metrics.observeCall(outcomeOK, start)
	logger.Debug("bridge_call", "method", req.Method, "path", req.URL.Path, "remote", req.RemoteAddr, "status", resp.StatusCode, "elapsed", time.Since(start))
	return nil
}

// requestBodySource returns the streamed body when the server streams
// request bodies, otherwise a reader over the buffered body.
func requestBodySource(ctx *fasthttp.RequestCtx) (io.Reader, int64) {
	if r := ctx.RequestBodyStream(); r != nil {
		return r, int64(ctx.Request.Header.ContentLength())
	}
	buf := ctx.Request.Body()
	return bytes.NewReader(buf), int64(len(buf))
}

func newRequest(ctx *fasthttp.RequestCtx, body *RequestBody) (*http.Request, error) {
	requestURI := string(ctx.RequestURI())
	u, err := url.ParseRequestURI(requestURI)
	if err != nil {
		return nil, errors.Wrapf(err, "bridge: parse request uri %q", requestURI)
	}
	req := &http.Request{
		Method:        string(ctx.Method()),
		URL:           u,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          body,
		ContentLength: body.ContentLength(),
		Host:          string(ctx.Host()),
		RequestURI:    requestURI,
	}
	if !ctx.Request.Header.IsHTTP11() {
		req.Proto, req.ProtoMinor = "HTTP/1.0", 0
	}
	if body.ContentLength() == 0 {
		req.Body = http.NoBody
	}
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		key := string(k)
		if key == fasthttp.HeaderHost {
			return
		}
		req.Header.Add(key, string(v))
	})
	if req.ContentLength < 0 && ctx.Request.Header.ContentLength() == -1 {
		req.TransferEncoding = []string{"chunked"}
	}
	if ctx.IsTLS() {
		req.TLS = ctx.TLSConnectionState()
	}
	return req, nil
}

func writeResponse(ctx *fasthttp.RequestCtx, resp *http.Response, stream *Stream) {
	ctx.Response.Header.SetNoDefaultContentType(true)
	ctx.SetStatusCode(resp.StatusCode)
	for k, vs := range resp.Header {
		for _, v := range vs {
			ctx.Response.Header.Add(k, v)
		}
	}
	ctx.SetBodyStream(stream, stream.ContentLength())
}
