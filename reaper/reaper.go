// Package reaper deletes session records whose lease expired without a
// clean disconnect.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nicholasgriffintn/aws-hosted-excalidraw/dynamodb"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
)

// DefaultInterval is the pause between sweeps of [Reaper.Run].
const DefaultInterval = 6 * time.Hour

// Store finds and deletes expired sessions.
type Store interface {
	ExpiredSessions(ctx context.Context, now time.Time) ([]dynamodb.SessionKey, error)
	RemoveSession(ctx context.Context, connectionID, boardID string) error
}

// Result summarizes one sweep.
type Result struct {
	Scanned int
	Deleted int
	Failed  int
}

// Reaper sweeps expired sessions.
type Reaper struct {
	store    Store
	logger   types.Logger
	clock    func() time.Time
	interval time.Duration
}

// Option configures a [Reaper].
type Option func(*Reaper)

// WithInterval sets the pause between sweeps of [Reaper.Run].
func WithInterval(d time.Duration) Option {
	return func(r *Reaper) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithClock replaces the time source used to decide expiry.
func WithClock(clock func() time.Time) Option {
	return func(r *Reaper) {
		r.clock = clock
	}
}

func New(store Store, logger types.Logger, opts ...Option) *Reaper {
	r := &Reaper{
		store:    store,
		logger:   logger.WithField("component", "reaper"),
		clock:    time.Now,
		interval: DefaultInterval,
	}

	for _, o := range opts {
		o(r)
	}

	return r
}

// Sweep deletes every session whose ttl is in the past. A failed delete is
// logged and counted; only a failed scan fails the sweep.
func (r *Reaper) Sweep(ctx context.Context) (Result, error) {
	var result Result

	expired, err := r.store.ExpiredSessions(ctx, r.clock())
	if err != nil {
		return result, fmt.Errorf("failed to find expired sessions: %w", err)
	}

	result.Scanned = len(expired)

	for _, key := range expired {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := r.store.RemoveSession(ctx, key.ConnectionID, key.BoardID); err != nil {
			result.Failed++
			r.logger.
				WithField("board_id", key.BoardID).
				WithField("connection_id", key.ConnectionID).
				Errorf("Failed to delete expired session: %v", err)
			continue
		}

		result.Deleted++
	}

	r.logger.
		WithField("scanned", result.Scanned).
		WithField("deleted", result.Deleted).
		WithField("failed", result.Failed).
		Info("Session sweep completed")

	return result, nil
}

// Run sweeps immediately and then once per interval until ctx ends. Sweep
// failures are logged and do not stop the loop.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Errorf("Session sweep failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
