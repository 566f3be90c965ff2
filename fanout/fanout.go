// Package fanout pushes one payload to many websocket sessions with bounded
// concurrency, removing sessions whose connection has gone away.
package fanout

import (
	"context"
	"errors"
	"sync"

	"github.com/nicholasgriffintn/aws-hosted-excalidraw/push"
	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of pushes in flight per call to [Fanout.Send].
const DefaultConcurrency = 16

// SessionRemover deletes the session of a gone connection.
type SessionRemover interface {
	RemoveSession(ctx context.Context, connectionID, boardID string) error
}

// Report counts the outcome of one fan-out.
type Report struct {
	Delivered int
	Gone      int
	Failed    int
	Removed   int
}

// Fanout delivers payloads to sessions. It is safe for concurrent use.
type Fanout struct {
	gateway     push.Gateway
	sessions    SessionRemover
	logger      types.Logger
	concurrency int
}

// Option configures a [Fanout].
type Option func(*Fanout)

// WithConcurrency bounds the number of concurrent pushes. Values below 1
// are ignored.
func WithConcurrency(n int) Option {
	return func(f *Fanout) {
		if n >= 1 {
			f.concurrency = n
		}
	}
}

func New(gateway push.Gateway, sessions SessionRemover, logger types.Logger, opts ...Option) *Fanout {
	f := &Fanout{
		gateway:     gateway,
		sessions:    sessions,
		logger:      logger.WithField("component", "fanout"),
		concurrency: DefaultConcurrency,
	}

	for _, o := range opts {
		o(f)
	}

	return f
}

// Send pushes data to every session except the one bound to
// excludeConnectionID (pass "" to exclude none). A failed push never stops
// delivery to the other sessions: gone connections have their session
// removed, any other failure is logged and the session is kept.
func (f *Fanout) Send(ctx context.Context, sessions []types.Session, data []byte, excludeConnectionID string) Report {
	var (
		mu     sync.Mutex
		report Report
		g      errgroup.Group
	)

	// The group only bounds concurrency; every goroutine returns nil and
	// outcomes are tallied in report.
	g.SetLimit(f.concurrency)

	for _, session := range sessions {
		if excludeConnectionID != "" && session.ConnectionID == excludeConnectionID {
			continue
		}

		session := session
		g.Go(func() error {
			outcome := f.deliver(ctx, session, data)

			mu.Lock()
			defer mu.Unlock()

			switch outcome {
			case delivered:
				report.Delivered++
			case gone:
				report.Gone++
			case goneRemoved:
				report.Gone++
				report.Removed++
			default:
				report.Failed++
			}

			return nil
		})
	}

	_ = g.Wait()

	return report
}

type outcome int

const (
	delivered outcome = iota
	gone
	goneRemoved
	failed
)

func (f *Fanout) deliver(ctx context.Context, session types.Session, data []byte) outcome {
	logger := f.logger.
		WithField("board_id", session.BoardID).
		WithField("connection_id", session.ConnectionID)

	err := f.gateway.Send(ctx, session.ConnectionID, data)
	if err == nil {
		return delivered
	}

	if !errors.Is(err, push.ErrGone) {
		logger.Warnf("Failed to push to connection: %v", err)
		return failed
	}

	if err := f.sessions.RemoveSession(ctx, session.ConnectionID, session.BoardID); err != nil {
		logger.Errorf("Failed to remove session of gone connection: %v", err)
		return gone
	}

	logger.Info("Removed session of gone connection")

	return goneRemoved
}
