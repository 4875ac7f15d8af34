package httpfetch

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateSettings configures a token bucket per host. Zero values disable it.
type RateSettings struct {
	Requests int
	Window   time.Duration
}

func (r RateSettings) enabled() bool {
	return r.Requests > 0 && r.Window > 0
}

// HostLimiter keeps one token bucket per host.
type HostLimiter struct {
	settings RateSettings

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter returns nil when rate limiting is disabled. A nil limiter
// never blocks.
func NewHostLimiter(settings RateSettings) *HostLimiter {
	if !settings.enabled() {
		return nil
	}
	return &HostLimiter{settings: settings, limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until the host's bucket has a token or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	if h == nil || host == "" {
		return nil
	}
	host = strings.ToLower(host)

	h.mu.Lock()
	limiter, ok := h.limiters[host]
	if !ok {
		every := h.settings.Window / time.Duration(h.settings.Requests)
		limiter = rate.NewLimiter(rate.Every(every), h.settings.Requests)
		h.limiters[host] = limiter
	}
	h.mu.Unlock()

	return limiter.Wait(ctx)
}
