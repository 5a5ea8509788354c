package shield

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig defines the rate limit for a single endpoint.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

func (c RateLimitConfig) enabled() bool {
	return c.MaxRequests > 0 && c.Window > 0
}

type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// RateLimiter provides per-IP, per-endpoint fixed-window rate limiting.
// Rules are keyed by "METHOD /path" (for example "POST /generate-code").
// Endpoints without a rule are not limited.
type RateLimiter struct {
	rules   map[string]RateLimitConfig
	buckets sync.Map
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter for the given rules. Rules with a
// non-positive MaxRequests or Window are ignored.
func NewRateLimiter(rules map[string]RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		rules: make(map[string]RateLimitConfig, len(rules)),
		now:   time.Now,
	}
	for endpoint, cfg := range rules {
		if cfg.enabled() {
			rl.rules[endpoint] = cfg
		}
	}
	return rl
}

// StartGC drops expired buckets every interval until done is closed.
func (rl *RateLimiter) StartGC(done <-chan struct{}, interval time.Duration) {
	tick := time.NewTicker(interval)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				rl.gc()
			}
		}
	}()
}

func (rl *RateLimiter) gc() {
	now := rl.now()
	rl.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		expired := now.After(b.resetAt)
		b.mu.Unlock()
		if expired {
			rl.buckets.Delete(key)
		}
		return true
	})
}

// allow reports whether the request is within budget and, when it is not,
// how long until the window resets.
func (rl *RateLimiter) allow(ip, endpoint string) (bool, time.Duration) {
	cfg, ok := rl.rules[endpoint]
	if !ok {
		return true, 0
	}

	now := rl.now()
	val, _ := rl.buckets.LoadOrStore(ip+" "+endpoint, &bucket{resetAt: now.Add(cfg.Window)})
	b := val.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()
	if now.After(b.resetAt) {
		b.count = 0
		b.resetAt = now.Add(cfg.Window)
	}
	b.count++
	if b.count <= cfg.MaxRequests {
		return true, 0
	}
	return false, b.resetAt.Sub(now)
}

// Middleware enforces the limits. Blocked requests get a 429 JSON response
// with a Retry-After header in seconds.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.Method + " " + r.URL.Path
		ip := ExtractIP(r)

		ok, retry := rl.allow(ip, endpoint)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		slog.Warn("ratelimit: request blocked", "ip", ip, "endpoint", endpoint)

		secs := int(retry.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "rate limit exceeded",
		})
	})
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
