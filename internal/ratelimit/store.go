// Package ratelimit implements a fixed-window request governor on top of a
// shared key/value counter store.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrConflict is returned by an Updater when a concurrent writer changed the
// key and the update could not be applied.
var ErrConflict = errors.New("counter store: concurrent update")

// Store is a key/value store with per-key expiry. Values are opaque strings.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, expiring after ttl.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// UpdateFunc computes the next value for a key from its current value.
type UpdateFunc func(current string, exists bool) (next string, ttl time.Duration, err error)

// Updater is implemented by stores that can apply a read-modify-write
// atomically with respect to other writers of the same key.
type Updater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// Record is the persisted state of one client's window.
type Record struct {
	Count int `json:"count"`
	// Reset is the end of the window in unix milliseconds.
	Reset int64 `json:"reset"`
}

// ResetAt returns the end of the window.
func (r Record) ResetAt() time.Time {
	return time.UnixMilli(r.Reset)
}

func decodeRecord(s string) (Record, bool) {
	var r Record
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return Record{}, false
	}
	return r, true
}

func encodeRecord(r Record) string {
	b, _ := json.Marshal(r)
	return string(b)
}
