package sqs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nicholasgriffintn/aws-hosted-excalidraw/types"
	"golang.org/x/sync/errgroup"
)

// leaseKeeper renews the visibility of in-flight messages until they are
// acked, nacked or reach the maximum extension. Renewal is best-effort: a
// message whose renewal fails is dropped from tracking and may be
// redelivered, so processing must tolerate duplicates.
type leaseKeeper struct {
	leases   map[string]*lease
	count    atomic.Int64
	bytes    atomic.Int64
	opts     *Options
	interval time.Duration
	logger   types.Logger
}

func newLeaseKeeper(opts *Options, logger types.Logger) *leaseKeeper {
	return &leaseKeeper{
		leases:   make(map[string]*lease),
		opts:     opts,
		interval: max(time.Duration(opts.visibilityTimeoutSeconds/3)*time.Second, 5*time.Second),
		logger:   logger,
	}
}

// hasCapacity reports whether another message may be received without
// exceeding the outstanding message and byte limits.
func (k *leaseKeeper) hasCapacity() bool {
	return k.count.Load() < int64(k.opts.maxOutstandingMessages) &&
		k.bytes.Load() < int64(k.opts.maxOutstandingBytes)
}

// run owns the lease map. It exits when ctx ends or source is closed.
func (k *leaseKeeper) run(ctx context.Context, source <-chan *lease) {
	k.logger.Debug("SQS lease keeper started")
	defer k.logger.Debug("SQS lease keeper exited")

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.sweep(ctx)
		case l, ok := <-source:
			if !ok {
				return
			}
			k.add(l)
		}
	}
}

func (k *leaseKeeper) sweep(ctx context.Context) {
	var due []*lease

	for _, l := range k.leases {
		switch {
		case l.done():
			k.remove(l)
		case l.expiresBeyond(k.opts.maxExtension):
			k.logger.WithField("message_id", l.messageID).Error("SQS message reached the maximum visibility extension")
			k.remove(l)
		case l.due():
			due = append(due, l)
		}
	}

	if len(due) == 0 {
		return
	}

	var (
		mu     sync.Mutex
		failed []*lease
		g      errgroup.Group
	)

	g.SetLimit(3)

	for _, l := range due {
		l := l
		g.Go(func() error {
			if err := l.extend(ctx); err != nil && ctx.Err() == nil {
				k.logger.WithField("message_id", l.messageID).Errorf("Failed to extend SQS message visibility: %v", err)

				mu.Lock()
				failed = append(failed, l)
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	for _, l := range failed {
		k.remove(l)
	}
}

func (k *leaseKeeper) add(l *lease) {
	k.count.Add(1)
	k.bytes.Add(l.size)

	k.leases[l.messageID] = l
}

func (k *leaseKeeper) remove(l *lease) {
	if _, ok := k.leases[l.messageID]; !ok {
		return
	}

	k.count.Add(-1)
	k.bytes.Add(-l.size)

	delete(k.leases, l.messageID)
}
