package ratelimit

import (
	"net"
	"net/http"
	"strconv"

	"github.com/ignite/campaign-dashboard/internal/auth"
	"github.com/ignite/campaign-dashboard/internal/metrics"
	"github.com/ignite/campaign-dashboard/internal/pkg/apperr"
	"github.com/ignite/campaign-dashboard/internal/pkg/httputil"
	"github.com/ignite/campaign-dashboard/internal/pkg/logger"
)

// KeyFunc picks the counter key of a request.
type KeyFunc func(r *http.Request) string

// ByClientIP keys on the request's remote address without the port. Run
// chi's RealIP middleware first when behind a proxy.
func ByClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ByUser keys on the authenticated user and falls back to the client IP.
func ByUser(r *http.Request) string {
	if id := auth.UserID(r.Context()); id != "" {
		return "user:" + id
	}
	return "ip:" + ByClientIP(r)
}

// Middleware counts each request against rule and answers 429 rate_limited
// with Retry-After once the window is full. When the limiter itself fails
// the request is let through.
func Middleware(l Limiter, rule Rule, key KeyFunc, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), rule, key(r))
			if err != nil {
				logger.Error("ratelimit: limiter failed, allowing request", "rule", rule.Name, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				m.RecordRateLimited(rule.Name)
				httputil.WriteError(w, r, apperr.RateLimited(apperr.CodeRateLimited,
					"too many requests for "+rule.Name, d.RetryAfter))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
