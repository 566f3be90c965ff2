// Package pushtest provides an in-memory push gateway for tests.
package pushtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/nicholasgriffintn/aws-hosted-excalidraw/push"
)

// Gateway records every payload sent through it. Connections marked gone
// fail with [push.ErrGone]; connections given an error fail with it.
type Gateway struct {
	mu     sync.Mutex
	sent   map[string][][]byte
	gone   map[string]bool
	errs   map[string]error
	active int
	peak   int
}

var _ push.Gateway = (*Gateway)(nil)

func NewGateway() *Gateway {
	return &Gateway{
		sent: make(map[string][][]byte),
		gone: make(map[string]bool),
		errs: make(map[string]error),
	}
}

// MarkGone makes sends to the connections fail with [push.ErrGone].
func (g *Gateway) MarkGone(connectionIDs ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range connectionIDs {
		g.gone[id] = true
	}
}

// FailWith makes sends to connectionID fail with err.
func (g *Gateway) FailWith(connectionID string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.errs[connectionID] = err
}

func (g *Gateway) Send(ctx context.Context, connectionID string, data []byte) error {
	g.mu.Lock()
	g.active++
	g.peak = max(g.peak, g.active)
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.active--
		g.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.gone[connectionID] {
		return fmt.Errorf("connection %s: %w", connectionID, push.ErrGone)
	}

	if err := g.errs[connectionID]; err != nil {
		return err
	}

	g.sent[connectionID] = append(g.sent[connectionID], append([]byte(nil), data...))

	return nil
}

// Sent returns the payloads delivered to connectionID, oldest first.
func (g *Gateway) Sent(connectionID string) [][]byte {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([][]byte(nil), g.sent[connectionID]...)
}

// Total returns the number of payloads delivered to any connection.
func (g *Gateway) Total() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, payloads := range g.sent {
		n += len(payloads)
	}

	return n
}

// Peak returns the highest number of concurrent Send calls observed.
func (g *Gateway) Peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.peak
}
