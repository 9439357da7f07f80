package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/xresolve/internal/api/handler"
	mw "github.com/iconidentify/xresolve/internal/api/middleware"
)

// RouterConfig holds the router's tunables.
type RouterConfig struct {
	// APIKey guards the resolver when non-empty.
	APIKey string
	// ClientIPHeader names the header the rate limit keys on before RemoteAddr.
	// Leave empty unless a proxy overwrites it.
	ClientIPHeader string
	// TrustProxy applies X-Forwarded-For and X-Real-IP to RemoteAddr.
	TrustProxy bool
	// RequestTimeout bounds each request, upstream retries included.
	RequestTimeout time.Duration
}

// NewRouter creates the HTTP router with all routes configured.
// A nil governor disables rate limiting.
func NewRouter(
	resolveHandler *handler.ResolveHandler,
	healthHandler *handler.HealthHandler,
	governor mw.Admitter,
	cfg RouterConfig,
	logger *slog.Logger,
) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 45 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	// CORS for the in-page script on x.com
	r.Use(mw.CORS)

	// Health endpoints (no auth, no rate limit)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	r.Group(func(r chi.Router) {
		r.Use(mw.APIKeyAuth(cfg.APIKey))

		r.Get("/stats", healthHandler.Stats)

		r.Group(func(r chi.Router) {
			if governor != nil {
				r.Use(mw.RateLimit(governor, cfg.ClientIPHeader, logger))
			}
			r.Get("/", resolveHandler.Resolve)
			r.Get("/resolve", resolveHandler.Resolve)
		})
	})

	return r
}
