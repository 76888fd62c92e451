package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Backoff controls how failed calls are repeated.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{Attempts: 3, Base: 500 * time.Millisecond, Cap: 5 * time.Second}
}

type retrying struct {
	next   Provider
	policy Backoff
}

// Retrying repeats unreachable and throttled calls with doubling waits. A
// malformed reply gets one more try. Truncation and context errors end the
// loop at once.
func Retrying(p Provider, b Backoff) Provider {
	if b.Attempts < 1 {
		b.Attempts = 1
	}
	return &retrying{next: p, policy: b}
}

func (r *retrying) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	var err error
	secondChance := true

	for attempt := 0; attempt < r.policy.Attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(r.wait(attempt-1, err))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		var c *Completion
		if c, err = r.next.Complete(ctx, p); err == nil {
			return c, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		switch FailureOf(err) {
		case Truncated:
			return nil, err
		case Malformed:
			if !secondChance {
				return nil, err
			}
			secondChance = false
		}
	}
	return nil, err
}

func (r *retrying) Model() string {
	return r.next.Model()
}

// wait is Base doubled per earlier retry, capped, with 20% jitter either
// way. A throttled call waits as long as the backend asked.
func (r *retrying) wait(retry int, cause error) time.Duration {
	var ce *CallError
	if errors.As(cause, &ce) && ce.Kind == Throttled && ce.RetryAfter > 0 {
		return ce.RetryAfter
	}

	d := r.policy.Base
	for i := 0; i < retry && (r.policy.Cap <= 0 || d < r.policy.Cap); i++ {
		d *= 2
	}
	if r.policy.Cap > 0 && d > r.policy.Cap {
		d = r.policy.Cap
	}
	return time.Duration(float64(d) * (0.8 + 0.4*rand.Float64()))
}
