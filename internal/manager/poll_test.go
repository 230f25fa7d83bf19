package manager_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedreap/postreap/internal/manager"
)

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func newPoller(clock *fakeClock) *manager.Poller {
	return manager.NewPoller(manager.WithClock(clock), manager.WithInterval(10*time.Second))
}

// sequence returns a StatusFunc yielding statuses in order, repeating the last.
func sequence(calls *int, statuses ...manager.Status) manager.StatusFunc {
	return func(context.Context) (manager.Status, error) {
		s := statuses[min(*calls, len(statuses)-1)]
		*calls++
		return s, nil
	}
}

func TestPoll(t *testing.T) {
	ctx := context.Background()
	snapshot := manager.Status{Item: "active", Sub: "snatched"}

	t.Run("ChangedOnFirstPoll", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		var calls int

		got, err := newPoller(clock).Poll(ctx, snapshot, 2*time.Minute,
			sequence(&calls, manager.Status{Item: "done", Sub: "snatched"}))
		require.NoError(t, err)

		assert.Equal(t, "done", got.Item)
		assert.Equal(t, 1, calls)
		assert.Empty(t, clock.slept)
	})

	t.Run("TimesOutAtDeadlineWithoutExtraPolls", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		var calls int

		_, err := newPoller(clock).Poll(ctx, snapshot, 35*time.Second, sequence(&calls, snapshot))
		require.ErrorIs(t, err, manager.ErrPollTimeout)

		// polls at 0s, 10s, 20s, 30s; the last sleep is cut to the deadline
		assert.Equal(t, 4, calls)
		assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second, 5 * time.Second}, clock.slept)
		assert.Equal(t, time.Unix(0, 0).Add(35*time.Second), clock.now)
	})

	t.Run("SubStatusChangeIsSuccess", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		var calls int
		initial := manager.Status{Item: "queued", Sub: "pending"}

		got, err := newPoller(clock).Poll(ctx, initial, time.Minute, sequence(&calls,
			initial,
			initial,
			manager.Status{Item: "queued", Sub: "done"},
		))
		require.NoError(t, err)

		assert.Equal(t, "done", got.Sub)
		assert.Equal(t, 3, calls)
	})

	t.Run("EmptyStatusesNeverCount", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		var calls int

		_, err := newPoller(clock).Poll(ctx, manager.Status{}, 20*time.Second,
			sequence(&calls, manager.Status{Item: "done"}))
		require.ErrorIs(t, err, manager.ErrPollTimeout)
	})

	t.Run("FetchErrorsCountAsNoChange", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		var calls int

		got, err := newPoller(clock).Poll(ctx, snapshot, time.Minute, func(context.Context) (manager.Status, error) {
			calls++
			if calls < 3 {
				return manager.Status{}, errors.New("connection refused")
			}
			return manager.Status{Item: "done"}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "done", got.Item)
		assert.Equal(t, 3, calls)
	})

	t.Run("ZeroDeadlineDoesNotPoll", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		var calls int

		_, err := newPoller(clock).Poll(ctx, snapshot, 0, sequence(&calls, snapshot))
		require.ErrorIs(t, err, manager.ErrPollTimeout)
		assert.Zero(t, calls)
	})
}

func TestStatusChanged(t *testing.T) {
	tests := []struct {
		name     string
		prev     manager.Status
		current  manager.Status
		expected bool
	}{
		{name: "same", prev: manager.Status{Item: "a", Sub: "b"}, current: manager.Status{Item: "a", Sub: "b"}},
		{name: "item changed", prev: manager.Status{Item: "a"}, current: manager.Status{Item: "c"}, expected: true},
		{name: "sub changed", prev: manager.Status{Item: "a", Sub: "b"}, current: manager.Status{Item: "a", Sub: "d"}, expected: true},
		{name: "item disappeared", prev: manager.Status{Item: "a"}, current: manager.Status{}},
		{name: "sub appeared", prev: manager.Status{Item: "a"}, current: manager.Status{Item: "a", Sub: "done"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.current.Changed(tt.prev))
		})
	}
}
