package engine

import (
	"sync"
	"time"
)

// Timer drives a single monotonic countdown from a fixed duration to zero.
// It decrements once per tick interval and, on a slower interval, asks the
// owner to persist a snapshot. The expiry callback fires exactly once.
type Timer struct {
	tick          time.Duration
	snapshotTicks int

	stopCh     chan struct{}
	stopOnce   sync.Once
	expireOnce sync.Once
}

// NewTimer creates a countdown timer with the standard 1-second tick and a
// snapshot every snapshotTicks ticks (0 disables snapshots).
func NewTimer(snapshotTicks int) *Timer {
	return newTimer(time.Second, snapshotTicks)
}

func newTimer(tick time.Duration, snapshotTicks int) *Timer {
	return &Timer{
		tick:          tick,
		snapshotTicks: snapshotTicks,
		stopCh:        make(chan struct{}),
	}
}

// Start begins ticking in a new goroutine. onTick receives the new remaining
// seconds after each tick; onSnapshot runs off the tick goroutine so a slow
// save can never stall the countdown; onExpire fires exactly once when the
// countdown reaches zero, and the timer stops itself first so a second expiry
// callback is impossible.
func (t *Timer) Start(initialSeconds int64, onTick func(remaining int64), onSnapshot func(), onExpire func()) {
	if initialSeconds <= 0 {
		t.Stop()
		t.expireOnce.Do(onExpire)
		return
	}

	go func() {
		ticker := time.NewTicker(t.tick)
		defer ticker.Stop()

		remaining := initialSeconds
		sinceSnapshot := 0

		for {
			select {
			case <-t.stopCh:
				return
			case <-ticker.C:
				remaining--
				if remaining < 0 {
					remaining = 0
				}
				if onTick != nil {
					onTick(remaining)
				}

				if remaining == 0 {
					t.Stop()
					t.expireOnce.Do(onExpire)
					return
				}

				sinceSnapshot++
				if t.snapshotTicks > 0 && sinceSnapshot >= t.snapshotTicks {
					sinceSnapshot = 0
					if onSnapshot != nil {
						go onSnapshot()
					}
				}
			}
		}
	}()
}

// Stop halts the countdown. Safe to call multiple times and after expiry.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
}
