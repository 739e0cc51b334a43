package app

import (
	"context"
	"net"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/valyala/fasthttp"

	"fastbridge/pkg/api"
	"fastbridge/pkg/config"
	"fastbridge/pkg/config/banner"
	"fastbridge/pkg/logger"
	"fastbridge/pkg/tracing"
)

// App groups server state and components.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	registry *prometheus.Registry
	limiter  *api.Limiter
	srv      *fasthttp.Server

	mu              sync.Mutex
	state           string
	tracingShutdown func(context.Context) error
}

// New validates the effective config and assembles the server. It does not
// listen; call Run for that.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	if err := config.ValidateConfig(eff); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		registry:  reg,
		state:     "created",
	}
	if rl := eff.Config.RateLimit; rl.RPS > 0 {
		a.limiter = api.NewLimiter(rl.RPS, rl.Burst)
	}
	a.srv = a.buildServer()
	return a, nil
}

// Run listens on the configured address and serves until ctx is cancelled
// or the server fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp4", a.eff.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", a.eff.Addr)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or the server fails.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	shutdownTracing, err := tracing.Setup(ctx, a.eff.Config.Telemetry)
	if err != nil {
		_ = ln.Close()
		return err
	}
	a.mu.Lock()
	a.tracingShutdown = shutdownTracing
	a.state = "running"
	a.mu.Unlock()

	a.printBanner()
	logger.Info("server_listening", "addr", ln.Addr().String(), "mode", a.eff.Config.Bridge.Mode)

	errCh := a.startHTTP(ln)
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// State reports the lifecycle state: created, running, shutting_down or
// stopped.
func (a *App) State() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *App) printBanner() {
	if os.Getenv("FASTBRIDGE_NO_BANNER") != "" {
		return
	}
	ver := a.version
	if a.commit != "" && a.commit != "none" {
		ver += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		ver += " @ " + a.buildDate
	}
	banner.PrintWithEff(os.Stdout, a.eff, ver)
}
