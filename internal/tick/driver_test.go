package tick

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorld struct {
	ticks atomic.Int64
	sleep time.Duration
}

func (w *fakeWorld) Tick(now time.Time) TickReport {
	w.ticks.Add(1)
	if w.sleep > 0 {
		time.Sleep(w.sleep)
	}
	return TickReport{PlayersTicked: 1}
}

func TestDriver_RunsUntilStopped(t *testing.T) {
	w := &fakeWorld{}
	d := NewDriver(w)

	done := make(chan error, 1)
	go func() { done <- d.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		return w.ticks.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond)

	d.Stop()
	err := <-done
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, d.TickCount(), int64(3))
}

func TestDriver_RunsUntilContextCanceled(t *testing.T) {
	w := &fakeWorld{}
	d := NewDriver(w)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	require.Eventually(t, func() bool {
		return w.ticks.Load() >= 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDriver_LagCounterIncrementsOnOverrun(t *testing.T) {
	w := &fakeWorld{sleep: Interval + 20*time.Millisecond}
	d := NewDriver(w)

	go func() { _ = d.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		return d.LagCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	d.Stop()
}

func TestIsTimeBroadcastTick(t *testing.T) {
	assert.False(t, IsTimeBroadcastTick(1))
	assert.False(t, IsTimeBroadcastTick(19))
	assert.True(t, IsTimeBroadcastTick(20))
	assert.True(t, IsTimeBroadcastTick(40))
}
