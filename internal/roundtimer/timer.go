// Package roundtimer is the countdown that drives a voting round.
package roundtimer

import (
	"sync"
	"time"
)

const defaultTick = time.Second

// Timer is a single deadline-based countdown. Pausing stores the exact remaining
// duration and resuming recomputes the deadline from it, so pause cycles never drift.
type Timer struct {
	clock Clock
	tick  time.Duration

	mu        sync.Mutex
	gen       uint64
	running   bool
	paused    bool
	deadline  time.Time
	remaining time.Duration // valid while paused
	duration  time.Duration
	pending   Stopper
	onTick    func(remaining time.Duration)
	onExpire  func()
}

type Option func(*Timer)

// WithTick sets the interval between onTick calls.
func WithTick(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.tick = d
		}
	}
}

func New(clock Clock, opts ...Option) *Timer {
	if clock == nil {
		clock = Real()
	}
	t := &Timer{clock: clock, tick: defaultTick}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins a new countdown, cancelling any countdown in progress. onExpire runs
// at most once for this cycle.
func (t *Timer) Start(d time.Duration, onTick func(remaining time.Duration), onExpire func()) {
	t.mu.Lock()
	t.cancelLocked()
	t.gen++
	t.running = true
	t.paused = false
	t.duration = d
	t.deadline = t.clock.Now().Add(d)
	t.onTick = onTick
	t.onExpire = onExpire
	t.scheduleLocked()
	t.mu.Unlock()
}

// Pause freezes the remaining time. No-op when not running or already paused.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.paused {
		return
	}
	t.remaining = t.deadline.Sub(t.clock.Now())
	if t.remaining < 0 {
		t.remaining = 0
	}
	t.paused = true
	t.cancelLocked()
	t.gen++
}

func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || !t.paused {
		return
	}
	t.paused = false
	t.deadline = t.clock.Now().Add(t.remaining)
	t.gen++
	t.scheduleLocked()
}

// Stop cancels the countdown without firing onExpire.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.gen++
	t.running = false
	t.paused = false
}

// Extend adds delta to the remaining time. Remaining time is capped at twice the
// started duration and never drops below zero.
func (t *Timer) Extend(delta time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	rem := t.remainingLocked() + delta
	if limit := 2 * t.duration; rem > limit {
		rem = limit
	}
	if rem < 0 {
		rem = 0
	}
	if t.paused {
		t.remaining = rem
		return
	}
	t.cancelLocked()
	t.gen++
	t.deadline = t.clock.Now().Add(rem)
	t.scheduleLocked()
}

// Remaining reports the time left; zero when idle.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0
	}
	return t.remainingLocked()
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Timer) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running && t.paused
}

func (t *Timer) remainingLocked() time.Duration {
	if t.paused {
		return t.remaining
	}
	rem := t.deadline.Sub(t.clock.Now())
	if rem < 0 {
		return 0
	}
	return rem
}

func (t *Timer) cancelLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *Timer) scheduleLocked() {
	gen := t.gen
	wait := t.deadline.Sub(t.clock.Now())
	if wait > t.tick {
		wait = t.tick
	}
	t.pending = t.clock.AfterFunc(wait, func() { t.fire(gen) })
}

func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.running || t.paused {
		t.mu.Unlock()
		return
	}
	rem := t.deadline.Sub(t.clock.Now())
	if rem <= 0 {
		t.running = false
		t.pending = nil
		t.gen++
		cb := t.onExpire
		t.mu.Unlock()
		if cb != nil {
			cb()
		}
		return
	}
	cb := t.onTick
	t.gen++
	t.scheduleLocked()
	t.mu.Unlock()
	if cb != nil {
		cb(rem)
	}
}
