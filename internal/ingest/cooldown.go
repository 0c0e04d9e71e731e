package ingest

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCooldown is the gap between the end of one station's request pair
// and the start of the next, keeping a run under one pair per minute.
const DefaultCooldown = 61 * time.Second

// Cooldown spaces request pairs by a fixed gap measured from when the
// previous pair finished. The first slot is immediate.
//
// The limiter holds a single token. AwaitSlot waits for it without taking it
// and Release takes it, so the refill starts when the requests end.
type Cooldown struct {
	interval time.Duration
	limiter  *rate.Limiter
	clock    Clock
}

// NewCooldown creates a cooldown. A non-positive interval never waits.
func NewCooldown(interval time.Duration, clock Clock) *Cooldown {
	if clock == nil {
		clock = SystemClock{}
	}
	c := &Cooldown{interval: interval, clock: clock}
	if interval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return c
}

// AwaitSlot blocks until interval has passed since the last Release, or ctx
// is done.
func (c *Cooldown) AwaitSlot(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.limiter == nil {
		return nil
	}

	missing := 1 - c.limiter.TokensAt(c.clock.Now())
	if missing <= 0 {
		return nil
	}
	return c.clock.Sleep(ctx, time.Duration(missing*float64(c.interval)))
}

// Release marks the end of a request pair. The next slot opens interval later.
func (c *Cooldown) Release() {
	if c.limiter == nil {
		return
	}
	c.limiter.ReserveN(c.clock.Now(), 1)
}
