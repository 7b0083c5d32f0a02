package session

import (
	"sync/atomic"
	"testing"
)

func TestCountdownExpiresExactlyOnce(t *testing.T) {
	var warns, expiries atomic.Int32

	c := NewCountdown(1500,
		func() { warns.Add(1) },
		func() { expiries.Add(1) },
	)

	for i := 0; i < 1500; i++ {
		c.tick()
	}

	if got := c.Remaining(); got != 0 {
		t.Fatalf("remaining after 1500 ticks = %d, want 0", got)
	}
	if got := expiries.Load(); got != 1 {
		t.Fatalf("expiry fired %d times, want exactly 1", got)
	}

	// Extra ticks after expiry must not decrement or re-fire.
	for i := 0; i < 10; i++ {
		c.tick()
	}
	if got := expiries.Load(); got != 1 {
		t.Fatalf("expiry re-fired after terminal state: %d", got)
	}
	if got := warns.Load(); got != 1 {
		t.Fatalf("low-time warning fired %d times, want exactly 1", got)
	}
}

func TestCountdownLowTimeWarningFiresOnceAtThreshold(t *testing.T) {
	var warns atomic.Int32
	var warnedAt atomic.Int32

	var c *Countdown
	c = NewCountdown(310,
		func() {
			warns.Add(1)
			warnedAt.Store(int32(c.Remaining()))
		},
		nil,
	)

	for i := 0; i < 50; i++ {
		c.tick()
	}

	if got := warns.Load(); got != 1 {
		t.Fatalf("warning fired %d times, want 1", got)
	}
	if got := warnedAt.Load(); got != LowTimeSeconds {
		t.Fatalf("warning fired at remaining=%d, want %d", got, LowTimeSeconds)
	}
}

func TestCountdownShortExamWarnsImmediately(t *testing.T) {
	// An exam shorter than the threshold never crosses 300 from above;
	// the warning still fires exactly once, on the first tick.
	var warns atomic.Int32
	c := NewCountdown(120, func() { warns.Add(1) }, nil)

	for i := 0; i < 120; i++ {
		c.tick()
	}
	if got := warns.Load(); got != 1 {
		t.Fatalf("warning fired %d times, want 1", got)
	}
}

func TestCountdownStopPreventsExpiry(t *testing.T) {
	var expiries atomic.Int32
	c := NewCountdown(3, nil, func() { expiries.Add(1) })

	c.tick()
	c.Stop()

	// Ticks after Stop are ignored: submission has begun and expiry
	// must not fire behind it.
	for i := 0; i < 10; i++ {
		c.tick()
	}
	if got := expiries.Load(); got != 0 {
		t.Fatalf("expiry fired after Stop: %d", got)
	}
	if got := c.Remaining(); got != 2 {
		t.Fatalf("remaining changed after Stop: %d, want 2", got)
	}

	// Stop is idempotent.
	c.Stop()
}

func TestCountdownNeverGoesNegative(t *testing.T) {
	c := NewCountdown(0, nil, nil)
	c.tick()
	if got := c.Remaining(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
}
