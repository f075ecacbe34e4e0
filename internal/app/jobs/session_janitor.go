// Package jobs contains background work run alongside the HTTP server.
package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper removes expired sessions.
type Sweeper interface {
	SweepExpiredSessions(ctx context.Context) (int64, error)
}

// SessionJanitor periodically removes expired sessions.
// Lookups already reject expired sessions; the janitor only reclaims storage.
type SessionJanitor struct {
	sweeper  Sweeper
	interval time.Duration
}

// NewSessionJanitor creates a janitor that sweeps every interval.
func NewSessionJanitor(s Sweeper, interval time.Duration) *SessionJanitor {
	return &SessionJanitor{sweeper: s, interval: interval}
}

// RunOnce performs a single sweep.
func (j *SessionJanitor) RunOnce(ctx context.Context) (int64, error) {
	n, err := j.sweeper.SweepExpiredSessions(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("expired sessions removed", "count", n)
	} else {
		slog.Debug("no expired sessions to remove")
	}
	return n, nil
}

// Run sweeps immediately and then on every tick until ctx is done.
// A failed sweep is logged and retried on the next tick.
func (j *SessionJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	if _, err := j.RunOnce(ctx); err != nil {
		slog.Error("session sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil {
				slog.Error("session sweep failed", "error", err)
			}
		}
	}
}
