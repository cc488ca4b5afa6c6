package httpx

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// StrictLimit is the default for authentication endpoints: 5 attempts per
// minute per client, all available as a burst.
var StrictLimit = RateLimitConfig{
	RequestsPerWindow: 5,
	Window:            time.Minute,
	Burst:             5,
}

// Decision is the outcome of one throttle check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Throttle counts attempts per key. Implementations must be safe for
// concurrent use.
type Throttle interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, user ID, client ID, etc.)
type KeyExtractor func(*http.Request) string

// IPKeyExtractor keys on the address of the connected peer. Forwarding
// headers are ignored since any client can set them; behind a reverse proxy
// use TrustedProxyKeyExtractor.
func IPKeyExtractor(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ParseTrustedProxies reads CIDR ranges or bare addresses.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// TrustedProxyKeyExtractor honours X-Forwarded-For and X-Real-IP only when
// the peer is one of proxies. The client is the rightmost X-Forwarded-For hop
// that is not itself a trusted proxy. Requests from any other peer are keyed
// on the peer address.
func TrustedProxyKeyExtractor(proxies []netip.Prefix) KeyExtractor {
	if len(proxies) == 0 {
		return IPKeyExtractor
	}

	trusted := func(addr netip.Addr) bool {
		addr = addr.Unmap()
		for _, p := range proxies {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	return func(r *http.Request) string {
		peer := IPKeyExtractor(r)
		peerAddr, err := netip.ParseAddr(peer)
		if err != nil || !trusted(peerAddr) {
			return peer
		}

		if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
			hops := strings.Split(strings.Join(xff, ","), ",")
			for i := len(hops) - 1; i >= 0; i-- {
				hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
				if err != nil {
					// Anything left of a garbled hop was written by the client.
					return peer
				}
				if !trusted(hop) {
					return hop.Unmap().String()
				}
			}
		}

		if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
			return xri.Unmap().String()
		}
		return peer
	}
}

// MemoryThrottle is a per-process token bucket per key.
type MemoryThrottle struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

// NewMemoryThrottle converts a requests-per-window budget into a token
// bucket refilling at RequestsPerWindow/Window.
func NewMemoryThrottle(cfg RateLimitConfig) *MemoryThrottle {
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerWindow
	}
	return &MemoryThrottle{
		rate:        rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

func (t *MemoryThrottle) Allow(_ context.Context, key string) (Decision, error) {
	limiter := t.getLimiter(key)
	if limiter.Allow() {
		return Decision{Allowed: true}, nil
	}

	// Peek at when the next token lands without consuming it.
	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()

	return Decision{Allowed: false, RetryAfter: delay}, nil
}

func (t *MemoryThrottle) getLimiter(key string) *rate.Limiter {
	if limiter, ok := t.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(t.rate, t.burst)
	actual, _ := t.limiters.LoadOrStore(key, limiter)

	t.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose bucket has refilled, which means the
// key has been idle long enough to forget.
func (t *MemoryThrottle) maybeCleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if time.Since(t.lastCleanup) < 5*time.Minute {
		return
	}
	t.lastCleanup = time.Now()

	t.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(t.burst) {
			t.limiters.Delete(key)
		}
		return true
	})
}

// ThrottleMiddleware rejects requests once the throttle denies the client's
// key. scope separates counters per endpoint group. If the throttle backend
// fails the request is let through and the failure logged.
func ThrottleMiddleware(t Throttle, scope string, keyFn KeyExtractor, onLimited func(scope string)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			key := keyFn(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			decision, err := t.Allow(ctx, scope+":"+key)
			if err != nil {
				log.Warn("rate limit: backend unavailable, allowing request", "scope", scope, "err", err)
				next.ServeHTTP(w, r)
				return
			}

			if !decision.Allowed {
				retryAfter := max(int(math.Ceil(decision.RetryAfter.Seconds())), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				log.Warn("rate limit exceeded",
					"key", key,
					"scope", scope,
					"retry_after", retryAfter,
				)
				if onLimited != nil {
					onLimited(scope)
				}

				WriteError(w, http.StatusTooManyRequests, CodeRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
