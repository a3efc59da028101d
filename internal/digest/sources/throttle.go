package sources

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle keeps a fixed pause between the end of one upstream call and the
// start of the next, whether or not the previous call succeeded. A zero delay
// never blocks.
//
// The limiter holds a single token. Wait blocks until the token is back
// without taking it and Done takes it, so the refill starts when a call
// finishes rather than when it starts.
type Throttle struct {
	limiter *rate.Limiter
	delay   time.Duration
}

// NewThrottle creates a throttle pausing delay after every call.
func NewThrottle(delay time.Duration) *Throttle {
	if delay <= 0 {
		return &Throttle{}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(delay), 1), delay: delay}
}

// Wait blocks until the next call may start or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.limiter == nil {
		return ctx.Err()
	}
	missing := 1 - t.limiter.Tokens()
	if missing <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(missing * float64(t.delay)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Done records that a call has finished.
func (t *Throttle) Done() {
	if t == nil || t.limiter == nil {
		return
	}
	t.limiter.ReserveN(time.Now(), 1)
}
