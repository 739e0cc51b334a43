package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"fastbridge/pkg/bridge"
	"fastbridge/pkg/logger"
)

// Limiter is a per-peer token bucket pool.
type Limiter struct {
	rps   float64
	burst int

	mu            sync.Mutex
	m             map[string]*limiterEntry
	startCleanup  sync.Once
	ttl           time.Duration
	cleanupPeriod time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	now           func() time.Time
}

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// NewLimiter returns a Limiter allowing rps requests per second per peer
// with the given burst.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		rps:           rps,
		burst:         burst,
		m:             make(map[string]*limiterEntry),
		ttl:           10 * time.Minute,
		cleanupPeriod: time.Minute,
		stopCh:        make(chan struct{}),
		now:           time.Now,
	}
}

// get limiter for key, create if missing; start cleanup once
func (p *Limiter) get(key string) *rate.Limiter {
	p.startCleanup.Do(func() { go p.cleanupLoop() })

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.m[key]; ok {
		e.lastSeen = p.now()
		return e.l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: p.now()}
	return l
}

// Allow reports whether a request from key may proceed now.
func (p *Limiter) Allow(key string) bool {
	return p.get(key).Allow()
}

// Middleware rejects requests over the peer's budget with 429.
func (p *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := peerKey(r)
		if !p.Allow(key) {
			logger.Warn("rate_limited", "peer", key, "path", r.URL.Path)
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the cleanup goroutine.
func (p *Limiter) Shutdown() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// sweep removes limiters unused for longer than the TTL.
func (p *Limiter) sweep() {
	cutoff := p.now().Add(-p.ttl)
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
}

func (p *Limiter) cleanupLoop() {
	ticker := time.NewTicker(p.cleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.sweep()
		case <-p.stopCh:
			return
		}
	}
}

// peerKey keys requests by peer host: the forwarded peer address when
// present, else RemoteAddr.
func peerKey(r *http.Request) string {
	addr := r.RemoteAddr
	if a, ok := bridge.PeerAddrFromContext(r.Context()); ok {
		addr = a.String()
	}
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
