// Package resilience provides the primitives used when a pipeline stage
// depends on a collaborator: a bounded poller with an injectable clock and
// a circuit breaker for optional backends.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PollResult is the tri-state outcome of a readiness check.
type PollResult int

const (
	PollPending PollResult = iota
	PollReady
	PollTimedOut
)

func (r PollResult) String() string {
	switch r {
	case PollPending:
		return "pending"
	case PollReady:
		return "ready"
	case PollTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Clock abstracts wall time so deadline handling is testable.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadyFunc reports whether the awaited condition holds. An error aborts
// the poll.
type ReadyFunc func(ctx context.Context) (bool, error)

// Poller checks a condition every Interval until Deadline.
type Poller struct {
	Name     string
	Interval time.Duration
	Deadline time.Time
	Clock    Clock
}

// NewPoller builds a poller whose deadline is fixed at start+budget.
func NewPoller(name string, interval time.Duration, start time.Time, budget time.Duration, clock Clock) *Poller {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Poller{
		Name:     name,
		Interval: interval,
		Deadline: start.Add(budget),
		Clock:    clock,
	}
}

// Step performs a single check. It reports PollTimedOut without calling
// ready once the deadline has passed.
func (p *Poller) Step(ctx context.Context, ready ReadyFunc) (PollResult, error) {
	if !p.Clock.Now().Before(p.Deadline) {
		return PollTimedOut, nil
	}
	ok, err := ready(ctx)
	if err != nil {
		return PollPending, fmt.Errorf("%s: readiness check: %w", p.Name, err)
	}
	if ok {
		return PollReady, nil
	}
	return PollPending, nil
}

// Wait repeats Step, sleeping Interval between checks, until the result is
// PollReady or PollTimedOut. A sleep is never extended past the deadline.
func (p *Poller) Wait(ctx context.Context, ready ReadyFunc) (PollResult, error) {
	logger := slog.Default().With("component", "poller", "operation", p.Name)
	attempts := 0
	for {
		attempts++
		result, err := p.Step(ctx, ready)
		if err != nil || result != PollPending {
			if result == PollTimedOut {
				logger.Warn("deadline reached", "attempts", attempts-1)
			}
			return result, err
		}
		remaining := p.Deadline.Sub(p.Clock.Now())
		if remaining <= 0 {
			continue
		}
		delay := p.Interval
		if delay > remaining {
			delay = remaining
		}
		logger.Debug("not ready, waiting", "attempt", attempts, "next_delay", delay)
		if err := p.Clock.Sleep(ctx, delay); err != nil {
			return PollPending, fmt.Errorf("%s: poll aborted: %w", p.Name, err)
		}
	}
}
