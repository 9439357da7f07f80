package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/iconidentify/xresolve/internal/ratelimit"
)

// Admitter decides whether a client may make another request.
type Admitter interface {
	Admit(ctx context.Context, clientKey string) (ratelimit.Decision, error)
}

// ClientKey identifies the caller by the host part of RemoteAddr. A non-empty
// header name takes precedence when the request carries it; callers can forge
// any header, so name one only when a proxy in front overwrites it.
func ClientKey(r *http.Request, header string) string {
	if header != "" {
		if v := r.Header.Get(header); v != "" {
			return v
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// RateLimit creates a middleware that enforces the per-client request budget.
// If the counter store fails the request is let through.
func RateLimit(gov Admitter, clientIPHeader string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientKey(r, clientIPHeader)

			d, err := gov.Admit(r.Context(), client)
			if err != nil {
				logger.Warn("rate limit check failed, admitting request", "client", client, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				logger.Info("rate limit exceeded", "client", client, "count", d.Count, "limit", d.Limit)
				h.Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
