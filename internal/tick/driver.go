// Package tick drives the fixed-rate world simulation step: one logical
// tick every 50ms (20 TPS), fanning out time-of-day advancement,
// keep-alive deadline evaluation, and chunk-unload flushing.
package tick

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Interval is the fixed wall-clock budget for one world tick.
const Interval = 50 * time.Millisecond

// TimeBroadcastPeriod is how often, in ticks, UpdateTime is broadcast to
// observers.
const TimeBroadcastPeriod = 20

// ChunkUnloadIdle is how long a chunk may go unobserved before the driver
// flags it for unload.
const ChunkUnloadIdle = 30 * time.Second

// World is the narrow surface TickDriver needs from the shared world
// state. The driver never acquires container or world locks itself beyond
// what a single World.Tick call does internally, keeping the tick loop
// itself lock-free.
type World interface {
	// Tick advances world state by one logical step and returns a
	// TickReport (keep-alive timeouts, chunks unloaded, players ticked)
	// for metrics.
	Tick(now time.Time) TickReport
}

// TickReport summarizes one world tick for logging/metrics.
type TickReport struct {
	KeepAliveTimeouts int
	ChunksUnloaded    int
	PlayersTicked     int
}

// Driver runs the fixed-rate tick loop. It is a near-direct generalization
// of the AI tick manager's ticker/stopCh/context shape, scaled up to one
// global loop instead of a per-NPC registry.
type Driver struct {
	world World

	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once

	tickCount atomic.Int64
	lagCount  atomic.Int64
}

// NewDriver creates a tick driver bound to world. Start blocks until the
// context is canceled or Stop is called.
func NewDriver(world World) *Driver {
	return &Driver{
		world:  world,
		stopCh: make(chan struct{}),
	}
}

// Start runs the tick loop until ctx is canceled or Stop is called.
func (d *Driver) Start(ctx context.Context) error {
	d.ticker = time.NewTicker(Interval)
	defer d.ticker.Stop()

	slog.Info("tick driver started", "interval", Interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("tick driver stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-d.stopCh:
			slog.Info("tick driver stopped")
			return nil
		case <-d.ticker.C:
			d.runOne()
		}
	}
}

// Stop halts the tick loop.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// TickCount returns the number of ticks executed so far.
func (d *Driver) TickCount() int64 {
	return d.tickCount.Load()
}

// LagCount returns how many ticks have exceeded their 50ms budget.
func (d *Driver) LagCount() int64 {
	return d.lagCount.Load()
}

func (d *Driver) runOne() {
	start := time.Now()

	report := d.world.Tick(start)
	n := d.tickCount.Add(1)

	elapsed := time.Since(start)
	if elapsed > Interval {
		d.lagCount.Add(1)
		slog.Warn("tick exceeded budget",
			"tick", n, "elapsed", elapsed, "budget", Interval)
	}

	if report.KeepAliveTimeouts > 0 || report.ChunksUnloaded > 0 {
		slog.Debug("tick report",
			"tick", n,
			"keepalive_timeouts", report.KeepAliveTimeouts,
			"chunks_unloaded", report.ChunksUnloaded,
			"players", report.PlayersTicked)
	}
}

// IsTimeBroadcastTick reports whether tick n should trigger an UpdateTime
// broadcast. Tick numbers start at 1.
func IsTimeBroadcastTick(n int64) bool {
	return n%TimeBroadcastPeriod == 0
}
