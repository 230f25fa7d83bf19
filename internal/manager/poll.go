package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is the wait between status polls.
const DefaultPollInterval = 10 * time.Second

// Clock abstracts time for the poller.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// StatusFunc fetches the current status of the polled item.
type StatusFunc func(ctx context.Context) (Status, error)

// Poller waits for a library item to change status after dispatch.
type Poller struct {
	interval time.Duration
	clock    Clock
	logger   zerolog.Logger
}

// PollerOption is a functional option for configuring the Poller.
type PollerOption func(*Poller)

// WithPollLogger sets the logger.
func WithPollLogger(logger zerolog.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithInterval sets the wait between polls.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		p.interval = d
	}
}

// WithClock replaces the clock.
func WithClock(c Clock) PollerOption {
	return func(p *Poller) {
		p.clock = c
	}
}

// NewPoller creates a Poller.
func NewPoller(opts ...PollerOption) *Poller {
	p := &Poller{
		interval: DefaultPollInterval,
		clock:    realClock{},
		logger:   zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Poll fetches the status until it differs from snapshot at either level or
// until deadline has elapsed. It returns the changed status, or
// ErrPollTimeout without polling past the deadline. Fetch errors are logged
// and count as "no change".
func (p *Poller) Poll(ctx context.Context, snapshot Status, deadline time.Duration, fetch StatusFunc) (Status, error) {
	start := p.clock.Now()
	last := snapshot

	for {
		elapsed := p.clock.Now().Sub(start)
		if elapsed >= deadline {
			break
		}

		current, err := fetch(ctx)
		switch {
		case err != nil:
			p.logger.Warn().Err(err).Msg("status poll failed")
		case current.Changed(snapshot):
			p.logger.Info().
				Str("item_status", current.Item).
				Str("sub_status", current.Sub).
				Dur("elapsed", p.clock.Now().Sub(start)).
				Msg("status changed")
			return current, nil
		default:
			last = current
		}

		if ctx.Err() != nil {
			return last, ctx.Err()
		}

		wait := p.interval
		if remaining := deadline - p.clock.Now().Sub(start); remaining < wait {
			wait = remaining
		}
		if wait <= 0 {
			break
		}
		p.clock.Sleep(ctx, wait)
	}

	p.logger.Warn().Dur("deadline", deadline).Msg("status did not change before deadline")
	return last, ErrPollTimeout
}
