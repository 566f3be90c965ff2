package sqs

import (
	"context"
	"sync"
	"time"
)

// lease is the consumer's hold on one received message. It ends when the
// message is acked or nacked; until then it can be renewed.
type lease struct {
	messageID  string
	size       int64
	receivedAt time.Time
	timeout    time.Duration
	now        func() time.Time

	mu        sync.Mutex
	renewedAt time.Time
	release   func()
	renew     func(ctx context.Context) error
}

func newLease(messageID string, size int, timeout time.Duration, now func() time.Time) *lease {
	t := now()

	return &lease{
		messageID:  messageID,
		size:       int64(size),
		receivedAt: t,
		renewedAt:  t,
		timeout:    timeout,
		now:        now,
	}
}

// Ack releases the lease by deleting the message. Only the first call to Ack
// or Nack has an effect.
func (l *lease) Ack() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.release != nil {
		l.release()
	}

	l.release = nil
	l.renew = nil
}

// Nack drops the lease without deleting the message, which the queue
// redelivers once its visibility timeout expires.
func (l *lease) Nack() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.release = nil
	l.renew = nil
}

func (l *lease) done() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.release == nil
}

// due reports whether half of the visibility timeout has passed since the
// last renewal.
func (l *lease) due() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.renew != nil && l.now().Sub(l.renewedAt) > l.timeout/2
}

// expiresBeyond reports whether one more renewal would keep the message
// hidden past limit after receipt.
func (l *lease) expiresBeyond(limit time.Duration) bool {
	return l.now().Sub(l.receivedAt)+l.timeout >= limit
}

func (l *lease) extend(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.renew == nil {
		return nil
	}

	if err := l.renew(ctx); err != nil {
		return err
	}

	l.renewedAt = l.now()

	return nil
}
