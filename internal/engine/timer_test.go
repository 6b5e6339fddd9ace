package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerCountsDownAndExpiresOnce(t *testing.T) {
	tm := newTimer(5*time.Millisecond, 0)

	var last atomic.Int64
	var expires atomic.Int32
	done := make(chan struct{})

	tm.Start(3,
		func(remaining int64) { last.Store(remaining) },
		nil,
		func() {
			expires.Add(1)
			close(done)
		},
	)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer never expired")
	}

	assert.Equal(t, int64(0), last.Load())
	assert.Equal(t, int32(1), expires.Load())

	// Stop after expiry is a no-op and never re-fires.
	tm.Stop()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), expires.Load())
}

func TestTimerImmediateExpiry(t *testing.T) {
	tm := newTimer(5*time.Millisecond, 0)

	var expires atomic.Int32
	tm.Start(0, nil, nil, func() { expires.Add(1) })

	// Fires synchronously; no goroutine is started for a spent countdown.
	assert.Equal(t, int32(1), expires.Load())

	tm.Start(-10, nil, nil, func() { expires.Add(1) })
	assert.Equal(t, int32(1), expires.Load())
}

func TestTimerStopPreventsExpiry(t *testing.T) {
	tm := newTimer(5*time.Millisecond, 0)

	var expires atomic.Int32
	tm.Start(100, nil, nil, func() { expires.Add(1) })

	time.Sleep(30 * time.Millisecond)
	tm.Stop()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, int32(0), expires.Load())
}

func TestTimerSnapshotCadence(t *testing.T) {
	tm := newTimer(5*time.Millisecond, 3)
	defer tm.Stop()

	var snapshots atomic.Int32
	tm.Start(1000, nil, func() { snapshots.Add(1) }, func() {})

	// ~20 ticks at a 3-tick cadence should land around 6 snapshots.
	time.Sleep(100 * time.Millisecond)
	tm.Stop()

	got := snapshots.Load()
	assert.GreaterOrEqual(t, got, int32(3))
	assert.LessOrEqual(t, got, int32(10))
}
