package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Config configures a Governor.
type Config struct {
	// Limit is the number of requests admitted per window.
	Limit int
	// Window is the fixed window length.
	Window time.Duration
	// MinTTL is the shortest expiry written to the store, so a record never
	// expires before its own reset time under store eviction skew.
	MinTTL time.Duration
	// KeyPrefix namespaces counter keys in a shared store.
	KeyPrefix string
	// MaxConflictRetries bounds optimistic update retries on an Updater store.
	MaxConflictRetries int
}

func (c Config) withDefaults() Config {
	if c.Limit <= 0 {
		c.Limit = 100
	}
	if c.Window <= 0 {
		c.Window = 60 * time.Second
	}
	if c.MinTTL <= 0 {
		c.MinTTL = 60 * time.Second
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "rate:"
	}
	if c.MaxConflictRetries <= 0 {
		c.MaxConflictRetries = 3
	}
	return c
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Count     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is the time left in the window, rounded up to whole seconds.
	RetryAfter time.Duration
}

// RetryAfterSeconds returns RetryAfter as whole seconds for the Retry-After header.
func (d Decision) RetryAfterSeconds() int {
	return int(d.RetryAfter / time.Second)
}

// Governor admits or rejects requests per client key using a fixed window.
//
// On a store that implements Updater the count is advanced atomically. On a
// plain Store it is a read-modify-write: concurrent requests from one client
// can read the same count, so the limit is approximate there.
type Governor struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewGovernor creates a governor over store.
func NewGovernor(store Store, cfg Config, logger *slog.Logger) *Governor {
	return &Governor{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// Limit returns the configured ceiling.
func (g *Governor) Limit() int {
	return g.cfg.Limit
}

// Admit counts one request for clientKey and reports whether it is within budget.
func (g *Governor) Admit(ctx context.Context, clientKey string) (Decision, error) {
	key := g.cfg.KeyPrefix + clientKey
	now := g.now()

	var rec Record
	step := func(current string, exists bool) (string, time.Duration, error) {
		rec = g.advance(current, exists, now)
		return encodeRecord(rec), g.ttl(rec, now), nil
	}

	if u, ok := g.store.(Updater); ok {
		var err error
		for attempt := 0; attempt <= g.cfg.MaxConflictRetries; attempt++ {
			err = u.Update(ctx, key, step)
			if !errors.Is(err, ErrConflict) {
				break
			}
			g.logger.Debug("rate counter conflict, retrying", "key", key, "attempt", attempt+1)
		}
		if err != nil {
			return Decision{}, fmt.Errorf("update counter: %w", err)
		}
	} else {
		current, exists, err := g.store.Get(ctx, key)
		if err != nil {
			return Decision{}, fmt.Errorf("read counter: %w", err)
		}
		value, ttl, _ := step(current, exists)
		if err := g.store.Set(ctx, key, value, ttl); err != nil {
			return Decision{}, fmt.Errorf("write counter: %w", err)
		}
	}

	return g.decide(rec, now), nil
}

// advance starts a fresh window when the record is missing, unreadable or
// expired, then counts the request.
func (g *Governor) advance(current string, exists bool, now time.Time) Record {
	rec, ok := Record{}, false
	if exists {
		rec, ok = decodeRecord(current)
	}
	if !ok || now.UnixMilli() > rec.Reset {
		rec = Record{Count: 0, Reset: now.Add(g.cfg.Window).UnixMilli()}
	}
	rec.Count++
	return rec
}

func (g *Governor) ttl(rec Record, now time.Time) time.Duration {
	ttl := ceilSeconds(rec.ResetAt().Sub(now))
	if ttl < g.cfg.MinTTL {
		ttl = g.cfg.MinTTL
	}
	return ttl
}

func (g *Governor) decide(rec Record, now time.Time) Decision {
	d := Decision{
		Allowed: rec.Count <= g.cfg.Limit,
		Limit:   g.cfg.Limit,
		Count:   rec.Count,
		ResetAt: rec.ResetAt(),
	}
	if remaining := g.cfg.Limit - rec.Count; remaining > 0 {
		d.Remaining = remaining
	}
	if !d.Allowed {
		d.RetryAfter = ceilSeconds(rec.ResetAt().Sub(now))
	}
	return d
}

func ceilSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(d.Seconds())) * time.Second
}
