package handler

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/iconidentify/xresolve/internal/domain"
	"github.com/iconidentify/xresolve/internal/service"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockResolver is a test implementation of Resolver.
type mockResolver struct {
	res  *service.Resolution
	err  error
	refs []domain.PostReference
}

func (m *mockResolver) Resolve(ctx context.Context, ref domain.PostReference) (*service.Resolution, error) {
	m.refs = append(m.refs, ref)
	if m.err != nil {
		return nil, m.err
	}
	return m.res, nil
}

// mockPinger is a test implementation of Pinger.
type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

type fixedClock time.Time

func (c fixedClock) AcquiredAt() time.Time {
	return time.Time(c)
}
