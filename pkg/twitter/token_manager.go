package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// TokenSource provides guest tokens for GraphQL calls.
type TokenSource interface {
	// Token returns the cached token, or acquires a new one when none is
	// cached or forceRefresh is set.
	Token(ctx context.Context, forceRefresh bool) (string, error)
}

// StaticTokenSource uses a fixed guest token (no refresh).
type StaticTokenSource struct {
	TokenValue string
}

func (s *StaticTokenSource) Token(ctx context.Context, forceRefresh bool) (string, error) {
	if strings.TrimSpace(s.TokenValue) == "" {
		return "", fmt.Errorf("token is empty")
	}
	return s.TokenValue, nil
}

// GuestTokenSource acquires anonymous guest tokens from the activation
// endpoint and memoizes the last one for the life of the process.
//
// A failed acquisition never clears the cached token; only Invalidate does.
type GuestTokenSource struct {
	cfg    Config
	hc     *http.Client
	logger *slog.Logger

	mu         sync.Mutex
	token      string
	acquiredAt time.Time
}

// NewGuestTokenSource creates a guest token cache. Construct one per process
// and share it between requests.
func NewGuestTokenSource(cfg Config, logger *slog.Logger) *GuestTokenSource {
	cfg = cfg.withDefaults()
	return &GuestTokenSource{
		cfg: cfg,
		hc: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		logger: logger,
	}
}

func (s *GuestTokenSource) Token(ctx context.Context, forceRefresh bool) (string, error) {
	if !forceRefresh {
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()
		if token != "" {
			return token, nil
		}
	}

	token, err := s.activate(ctx)
	if err != nil {
		s.logger.Warn("guest token activation failed", "error", err, "forced", forceRefresh)
		return "", err
	}

	s.mu.Lock()
	s.token = token
	s.acquiredAt = time.Now()
	s.mu.Unlock()

	s.logger.Debug("guest token acquired", "forced", forceRefresh)
	return token, nil
}

// Invalidate drops the cached token so the next Token call activates a new one.
// The resolver refreshes through Token(ctx, true) instead; Invalidate serves
// operators, via SIGHUP in cmd/server, and tests.
func (s *GuestTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.acquiredAt = time.Time{}
	s.mu.Unlock()
}

// AcquiredAt returns when the cached token was obtained, or the zero time.
func (s *GuestTokenSource) AcquiredAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquiredAt
}

type guestTokenResponse struct {
	GuestToken string `json:"guest_token"`
}

func (s *GuestTokenSource) activate(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	s.cfg.setCommonHeaders(req)

	resp, err := s.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("token endpoint error: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var tr guestTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.GuestToken == "" {
		return "", fmt.Errorf("token response missing guest_token")
	}
	return tr.GuestToken, nil
}
