package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/csrf"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond requests per IP with the given burst.
// PRE: perSecond > 0, burst > 0
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     5 * time.Minute,
	}
}

// Allow reports whether a request from ip may proceed.
// POST: one token of ip's bucket is consumed when true
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	if !v.limiter.Allow() {
		slog.Warn("rate_limit_exceeded", "ip", ip)
		return false
	}
	return true
}

// Sweep forgets visitors idle for longer than the idle window.
// It returns the number of visitors removed.
func (rl *RateLimiter) Sweep(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.idle {
			delete(rl.visitors, ip)
			removed++
		}
	}
	return removed
}

// RateLimit returns middleware that limits requests per client IP.
// A nil deny writes the default JSON error.
func RateLimit(limiter *RateLimiter, deny DenyFunc) func(http.Handler) http.Handler {
	deny = orDefault(deny)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(ClientIP(r)) {
				w.Header().Set("Retry-After", "1")
				deny(w, r, http.StatusTooManyRequests, "request.rate_limited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the remote host of r without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SecurityHeaders adds OWASP recommended headers for a JSON API.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// CSRFConfig configures the CSRF middleware.
type CSRFConfig struct {
	Key            []byte // 32 bytes
	Secure         bool   // cookies only over HTTPS
	TrustedOrigins []string
	Deny           DenyFunc
}

// CSRF protects form submissions with gorilla/csrf.
// Requests with Content-Type application/json are exempt: browsers cannot
// send them cross-site without a CORS preflight.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	deny := orDefault(cfg.Deny)
	protect := csrf.Protect(
		cfg.Key,
		csrf.Secure(cfg.Secure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteStrictMode),
		csrf.TrustedOrigins(cfg.TrustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("csrf_rejected", "path", r.URL.Path, "reason", csrf.FailureReason(r))
			deny(w, r, http.StatusForbidden, "auth.csrf")
		})),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
				next.ServeHTTP(w, r)
				return
			}
			if !cfg.Secure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// Chain applies middlewares in order (outer to inner).
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// DenyFunc writes a rejection for the given status and message key.
type DenyFunc func(w http.ResponseWriter, r *http.Request, status int, code string)

var defaultMessages = map[string]string{
	"auth.required":        "login required",
	"auth.forbidden":       "not allowed",
	"auth.csrf":            "invalid or missing CSRF token",
	"request.rate_limited": "too many requests",
}

func orDefault(deny DenyFunc) DenyFunc {
	if deny != nil {
		return deny
	}
	return func(w http.ResponseWriter, _ *http.Request, status int, code string) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]string{"code": code, "message": defaultMessages[code]},
		})
	}
}
