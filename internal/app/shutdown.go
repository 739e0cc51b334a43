package app

import (
	"context"

	"fastbridge/pkg/shutdown"
)

// Shutdown stops the server and flushes telemetry.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	a.state = "shutting_down"
	tracingShutdown := a.tracingShutdown
	a.mu.Unlock()

	hooks := []func(context.Context) error{tracingShutdown}
	if a.limiter != nil {
		hooks = append(hooks, func(context.Context) error {
			a.limiter.Shutdown()
			return nil
		})
	}
	err := shutdown.ShutdownApp(ctx, a.srv, hooks...)
	if err == nil {
		a.mu.Lock()
		a.state = "stopped"
		a.mu.Unlock()
	}
	return err
}
