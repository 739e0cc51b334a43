package app

import (
	"net"

	"github.com/valyala/fasthttp"

	"fastbridge/pkg/api"
	"fastbridge/pkg/bridge"
	"fastbridge/pkg/config"
	"fastbridge/pkg/httpservice"
	"fastbridge/pkg/logger"
)

// buildServer wires the inner router behind the bridge and returns the
// fasthttp server hosting it.
func (a *App) buildServer() *fasthttp.Server {
	cfg := a.eff.Config

	handler := api.Handler(api.Options{
		Gatherer:  a.registry,
		Limiter:   a.limiter,
		Profiling: cfg.Server.Profiling,
	})
	factory := bridge.NewFactory(func() bridge.Service {
		return bridge.FromHandler(handler)
	})

	opts := []bridge.Option{
		bridge.WithMetrics(bridge.NewMetrics(a.registry)),
		bridge.WithChunkSize(cfg.Bridge.ChunkSize.Int()),
	}
	if cfg.Bridge.Mode == config.ModeExclusive {
		opts = append(opts, bridge.WithExclusive())
	}
	if !cfg.ForwardPeerAddr() {
		opts = append(opts, bridge.WithoutPeerAddr())
	}

	builder := bridge.NewService(factory, opts, httpservice.WithRegisterer(a.registry))
	srv := builder.Server(httpservice.Options{
		Name:               cfg.Server.Name,
		ReadTimeout:        cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:       cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:        cfg.Server.IdleTimeout.Duration(),
		MaxRequestBodySize: cfg.Server.MaxRequestBodySize.Int(),
		ReadBufferSize:     cfg.Server.ReadBufferSize.Int(),
		Concurrency:        cfg.Server.Concurrency,
		StreamRequestBody:  cfg.StreamRequestBody(),
	})

	inner := srv.Handler
	srv.Handler = func(ctx *fasthttp.RequestCtx) {
		logger.LogRequestFast(ctx)
		inner(ctx)
	}
	return srv
}

// startHTTP serves on ln in a goroutine, returning a channel that delivers
// the serve error.
func (a *App) startHTTP(ln net.Listener) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.Serve(ln)
	}()
	return errCh
}
