package session

import (
	"sync"
	"time"
)

// LowTimeSeconds is the remaining-time threshold at which the one-time
// low-time warning fires.
const LowTimeSeconds = 300

// Countdown is the single authoritative clock for one session. It
// decrements once per second while running, fires the low-time warning
// exactly once, fires expiry exactly once, and stops cleanly when the
// session leaves the running phase. It is an owned object, not an
// ambient timer: Stop is explicit and idempotent, so a session can
// guarantee no expiry fires after submission has begun.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	warned    bool
	expired   bool
	stopped   bool
	stopCh    chan struct{}

	onLowTime func()
	onExpire  func()
}

// NewCountdown creates a countdown starting at remaining seconds.
// Callbacks may be nil. They are invoked from the countdown's own
// goroutine, outside the countdown lock.
func NewCountdown(remaining int, onLowTime, onExpire func()) *Countdown {
	if remaining < 0 {
		remaining = 0
	}
	return &Countdown{
		remaining: remaining,
		stopCh:    make(chan struct{}),
		onLowTime: onLowTime,
		onExpire:  onExpire,
	}
}

// Start begins ticking in a background goroutine.
func (c *Countdown) Start() {
	go c.run()
}

func (c *Countdown) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if done := c.tick(); done {
				return
			}
		}
	}
}

// tick performs one decrement. It is the only writer of remaining.
// Returns true when the countdown is finished (expired or stopped).
func (c *Countdown) tick() bool {
	c.mu.Lock()
	if c.stopped || c.expired {
		c.mu.Unlock()
		return true
	}

	if c.remaining > 0 {
		c.remaining--
	}
	rem := c.remaining

	var fireWarn, fireExpire bool
	if !c.warned && rem > 0 && rem <= LowTimeSeconds {
		c.warned = true
		fireWarn = true
	}
	if rem == 0 {
		c.expired = true
		fireExpire = true
	}
	c.mu.Unlock()

	// Callbacks run outside the lock so they may call Stop or Remaining.
	if fireWarn && c.onLowTime != nil {
		c.onLowTime()
	}
	if fireExpire && c.onExpire != nil {
		c.onExpire()
	}
	return fireExpire
}

// Stop cancels the countdown. Safe to call multiple times and after
// expiry. Once Stop returns, no further decrement will happen and expiry
// will not fire.
func (c *Countdown) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.stopCh)
	}
	c.mu.Unlock()
}

// Remaining returns the current remaining seconds.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Expired reports whether the countdown has reached zero.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}
