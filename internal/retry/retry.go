// Package retry reruns failed pipeline stages with configurable
// backoff. A stage that keeps failing is handed to the caller's
// give-up hook, typically a dead letter queue.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy says how often a stage may be rerun and how long to wait
// between runs. The zero value runs a stage exactly once.
type Policy struct {
	// MaxAttempts counts the initial run, so 3 means two reruns.
	MaxAttempts int

	// Backoff spaces the reruns. Nil reruns immediately.
	Backoff Backoff

	// RetryIf decides whether an error is worth another run. Nil
	// retries everything. A malformed upload never becomes
	// parseable, so parse failures should return false here.
	RetryIf func(err error) bool

	// OnRetry fires before each wait, with the attempt that failed.
	OnRetry func(attempt int, wait time.Duration, err error)

	// OnGiveUp fires once when the last attempt has failed.
	OnGiveUp func(err error)
}

// NewPolicy returns a policy with the given attempt budget and backoff.
func NewPolicy(maxAttempts int, b Backoff) *Policy {
	return &Policy{MaxAttempts: maxAttempts, Backoff: b}
}

// DefaultPolicy retries twice with a jittered doubling backoff.
func DefaultPolicy() *Policy {
	return NewPolicy(3, NewExponential(1*time.Second, 5*time.Minute, true))
}

// WithRetryIf sets the retryable-error predicate.
func (p *Policy) WithRetryIf(fn func(err error) bool) *Policy {
	p.RetryIf = fn
	return p
}

// WithOnRetry sets the per-rerun hook.
func (p *Policy) WithOnRetry(fn func(attempt int, wait time.Duration, err error)) *Policy {
	p.OnRetry = fn
	return p
}

// WithOnGiveUp sets the exhaustion hook.
func (p *Policy) WithOnGiveUp(fn func(err error)) *Policy {
	p.OnGiveUp = fn
	return p
}

// Do runs fn until it succeeds, the attempt budget runs out, or the
// context ends. Errors the policy marks non-retryable come back
// unchanged so callers can still match them with errors.Is; an
// exhausted budget wraps the last error the same way.
func (p *Policy) Do(ctx context.Context, fn func() error) error {
	budget := max(p.MaxAttempts, 1)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if p.RetryIf != nil && !p.RetryIf(err) {
			return err
		}
		if attempt == budget {
			break
		}

		wait := p.delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("wait for attempt %d interrupted: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
	}

	if p.OnGiveUp != nil {
		p.OnGiveUp(err)
	}
	return fmt.Errorf("gave up after %d attempts: %w", budget, err)
}

func (p *Policy) delay(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff.Delay(attempt)
}
