package retry

import (
	"math/rand"
	"time"
)

// Backoff yields the wait before a given attempt is rerun. Attempt
// numbering starts at 1, so Delay(1) is the wait after the first
// failure.
type Backoff interface {
	Delay(attempt int) time.Duration
}

// Exponential doubles the wait after every failure, up to Cap.
type Exponential struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter bool
}

// NewExponential returns a doubling backoff bounded by cap.
func NewExponential(base, cap time.Duration, jitter bool) *Exponential {
	return &Exponential{Base: base, Cap: cap, Jitter: jitter}
}

func (e *Exponential) Delay(attempt int) time.Duration {
	d := e.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if e.Cap > 0 && d >= e.Cap {
			d = e.Cap
			break
		}
	}
	return jittered(d, e.Jitter)
}

// Fixed waits the same interval after every failure.
type Fixed struct {
	Every  time.Duration
	Jitter bool
}

// NewFixed returns a constant-interval backoff.
func NewFixed(every time.Duration, jitter bool) *Fixed {
	return &Fixed{Every: every, Jitter: jitter}
}

func (f *Fixed) Delay(int) time.Duration {
	return jittered(f.Every, f.Jitter)
}

// jittered widens d to somewhere in [0.75d, 1.25d) so callers that
// failed together do not retry in lockstep.
func jittered(d time.Duration, enabled bool) time.Duration {
	if !enabled || d <= 0 {
		return d
	}
	return time.Duration(float64(d) * (0.75 + rand.Float64()*0.5))
}
