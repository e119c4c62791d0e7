package middleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SecurityHeaders adds OWASP-recommended security headers to all responses.
// The proxy only serves JSON, so the content policy denies everything.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cross-Origin-Resource-Policy", "cross-origin")

		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// RateLimitConfig is a per-client ceiling of Requests per Window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// TrustedProxies lists CIDRs whose X-Forwarded-For / X-Real-IP headers
	// are honoured. Empty means proxy headers are ignored.
	TrustedProxies []string
	// Message is returned in the 429 body.
	Message string
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

const defaultLimitMessage = "Too many requests from this IP, please try again later."

// RateLimit limits each client IP to cfg.Requests per cfg.Window.
//
// Each client gets a token bucket holding cfg.Requests tokens that refills
// evenly over cfg.Window, so a fresh client can burst the full allowance and
// then sustains Requests/Window. Idle client entries are evicted by a
// goroutine that stops when ctx is cancelled.
func RateLimit(ctx context.Context, cfg RateLimitConfig) func(http.Handler) http.Handler {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	msg := cfg.Message
	if msg == "" {
		msg = defaultLimitMessage
	}
	interval := cfg.Window / time.Duration(max(cfg.Requests, 1))
	every := rate.Every(interval)
	trusted := parsePrefixes(cfg.TrustedProxies)

	clients := make(map[string]*client)
	mu := &sync.Mutex{}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cutoff := now().Add(-cfg.Window)
				mu.Lock()
				for ip, c := range clients {
					if c.lastSeen.Before(cutoff) {
						delete(clients, ip)
					}
				}
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, trusted)
			t := now()

			mu.Lock()
			c, ok := clients[ip]
			if !ok {
				c = &client{limiter: rate.NewLimiter(every, cfg.Requests)}
				clients[ip] = c
			}
			c.lastSeen = t
			allowed := c.limiter.AllowN(t, 1)
			mu.Unlock()

			if !allowed {
				w.Header().Set("Retry-After", retryAfter(interval))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": msg})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfter(interval time.Duration) string {
	secs := int(math.Ceil(interval.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func parsePrefixes(cidrs []string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		if p, err := netip.ParsePrefix(strings.TrimSpace(c)); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// ClientIP extracts the client IP from the request. X-Forwarded-For and
// X-Real-IP are only trusted when the direct peer is inside one of the
// trusted prefixes; otherwise the TCP peer address is used.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	directIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(directIP); err == nil {
		directIP = host
	}

	if len(trusted) == 0 {
		return directIP
	}

	addr, err := netip.ParseAddr(directIP)
	if err != nil {
		return directIP
	}
	isTrusted := false
	for _, p := range trusted {
		if p.Contains(addr) {
			isTrusted = true
			break
		}
	}
	if !isTrusted {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return directIP
}
