// Package api is the net/http application served through the bridge.
package api

import (
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fastbridge/pkg/logger"
)

// Greeting is the body served on "/".
const Greeting = "hello,world!"

// Options configures Handler.
type Options struct {
	// Gatherer backs /metrics. nil disables the route.
	Gatherer prometheus.Gatherer
	// Limiter throttles requests per peer. nil disables limiting.
	Limiter *Limiter
	// Profiling mounts net/http/pprof under /debug/pprof/.
	Profiling bool
}

// Handler returns the application router.
func Handler(o Options) http.Handler {
	r := mux.NewRouter()
	r.Use(logRequests)
	if o.Limiter != nil {
		r.Use(o.Limiter.Middleware)
	}

	r.HandleFunc("/", hello).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	r.HandleFunc("/echo", echo).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/peer", peer).Methods(http.MethodGet)
	if o.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	if o.Profiling {
		d := r.PathPrefix("/debug/pprof").Subrouter()
		d.HandleFunc("/", pprof.Index)
		d.HandleFunc("/cmdline", pprof.Cmdline)
		d.HandleFunc("/profile", pprof.Profile)
		d.HandleFunc("/symbol", pprof.Symbol)
		d.HandleFunc("/trace", pprof.Trace)
		d.HandleFunc("/{profile}", pprof.Index)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("inner_request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}
