// Package scan rate-limits the provider's expensive availability rescan.
package scan

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Gate blocks rescans for a fixed window after the last one. Seeded from
// the provider's cache timestamp, so the limit holds across restarts.
type Gate struct {
	window time.Duration
	tick   time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu        sync.Mutex
	remaining time.Duration
}

func NewGate(window time.Duration, logger *slog.Logger) *Gate {
	return &Gate{
		window: window,
		tick:   time.Second,
		now:    time.Now,
		logger: logger,
	}
}

// Seed engages the gate from the last known scan time. A zero, stale or
// skewed timestamp leaves the gate open: bad input never locks the user
// out.
func (g *Gate) Seed(lastScan time.Time) {
	if lastScan.IsZero() {
		return
	}
	remaining := g.window - g.now().Sub(lastScan)
	if remaining <= 0 || remaining > g.window {
		g.logger.Debug("cooldown seed out of range, gate disengaged",
			"last_scan", lastScan.Format(time.RFC3339))
		return
	}
	g.mu.Lock()
	g.remaining = remaining
	g.mu.Unlock()
}

// Trigger re-engages the gate at the full window after a successful rescan,
// regardless of what was left.
func (g *Gate) Trigger() {
	g.mu.Lock()
	g.remaining = g.window
	g.mu.Unlock()
}

func (g *Gate) Engaged() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining > 0
}

func (g *Gate) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining
}

// Run decrements the gate once per tick while engaged and disengages at
// zero. The timer stops with the context, so teardown never leaks it.
func (g *Gate) Run(ctx context.Context) {
	t := time.NewTicker(g.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			g.mu.Lock()
			if g.remaining > 0 {
				g.remaining -= g.tick
				if g.remaining <= 0 {
					g.remaining = 0
					g.logger.Debug("rescan cooldown elapsed")
				}
			}
			g.mu.Unlock()
		}
	}
}
