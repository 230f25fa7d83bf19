package timeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedreap/postreap/internal/timeline"
)

func TestNewRecorder(t *testing.T) {
	t.Run("creates recorder with defaults", func(t *testing.T) {
		r := timeline.NewRecorder()
		require.NotNil(t, r)

		assert.Empty(t, r.GetByRun("run"))
	})

	t.Run("creates recorder with custom max events", func(t *testing.T) {
		r := timeline.NewRecorder(timeline.WithMaxEvents(5))
		require.NotNil(t, r)

		for range 10 {
			r.Record(timeline.Event{
				RunID:   "run",
				State:   timeline.StateReceived,
				Message: "test",
			})
		}

		assert.Len(t, r.GetByRun("run"), 5)
	})
}

func TestRecorder_Record(t *testing.T) {
	t.Run("records event with generated ID and timestamp", func(t *testing.T) {
		r := timeline.NewRecorder()

		before := time.Now()
		r.Record(timeline.Event{
			RunID:   "run-1",
			State:   timeline.StateReceived,
			Message: "Test message",
		})
		after := time.Now()

		events := r.GetByRun("run-1")
		require.Len(t, events, 1)

		event := events[0]
		assert.Len(t, event.ID, 26, "ULID")
		assert.True(t, event.Timestamp.After(before) || event.Timestamp.Equal(before))
		assert.True(t, event.Timestamp.Before(after) || event.Timestamp.Equal(after))
		assert.Equal(t, timeline.StateReceived, event.State)
		assert.Equal(t, "Test message", event.Message)
	})

	t.Run("preserves provided ID and timestamp", func(t *testing.T) {
		r := timeline.NewRecorder()

		customID := "custom-id"
		customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

		r.Record(timeline.Event{
			ID:        customID,
			RunID:     "run-1",
			Timestamp: customTime,
			State:     timeline.StateLocated,
			Message:   "Custom event",
		})

		events := r.GetByRun("run-1")
		require.Len(t, events, 1)

		event := events[0]
		assert.Equal(t, customID, event.ID)
		assert.Equal(t, customTime, event.Timestamp)
	})

	t.Run("returns events newest first", func(t *testing.T) {
		r := timeline.NewRecorder()

		r.Record(timeline.Event{State: timeline.StateReceived, Message: "first"})
		r.Record(timeline.Event{State: timeline.StateLocated, Message: "second"})
		r.Record(timeline.Event{State: timeline.StateFinalized, Message: "third"})

		events := r.GetByRun("")
		require.Len(t, events, 3)

		assert.Equal(t, "third", events[0].Message)
		assert.Equal(t, "second", events[1].Message)
		assert.Equal(t, "first", events[2].Message)
	})
}

func TestRecorder_GetByRun(t *testing.T) {
	r := timeline.NewRecorder()

	r.Record(timeline.Event{RunID: "run-1", Message: "event 1"})
	r.Record(timeline.Event{RunID: "run-2", Message: "event 2"})
	r.Record(timeline.Event{RunID: "run-1", Message: "event 3"})
	r.Record(timeline.Event{RunID: "run-3", Message: "event 4"})

	events := r.GetByRun("run-1")
	require.Len(t, events, 2)
	assert.Equal(t, "event 3", events[0].Message)
	assert.Equal(t, "event 1", events[1].Message)
}

func TestRecorder_States(t *testing.T) {
	r := timeline.NewRecorder()

	for _, s := range []timeline.State{
		timeline.StateReceived,
		timeline.StateLocated,
		timeline.StateDialectResolved,
		timeline.StateDispatched,
		timeline.StateConfirmed,
		timeline.StateFinalized,
	} {
		r.Record(timeline.Event{RunID: "run", State: s})
	}
	r.Record(timeline.Event{RunID: "other", State: timeline.StateReceived})

	assert.Equal(t, []timeline.State{
		timeline.StateReceived,
		timeline.StateLocated,
		timeline.StateDialectResolved,
		timeline.StateDispatched,
		timeline.StateConfirmed,
		timeline.StateFinalized,
	}, r.States("run"))
}

func TestValid(t *testing.T) {
	tests := []struct {
		from     timeline.State
		to       timeline.State
		expected bool
	}{
		{from: timeline.StateReceived, to: timeline.StateLocated, expected: true},
		{from: timeline.StateLocated, to: timeline.StateExtracted, expected: true},
		{from: timeline.StateLocated, to: timeline.StateDialectResolved, expected: true},
		{from: timeline.StateDispatched, to: timeline.StateTimedOut, expected: true},
		{from: timeline.StateFailureNotified, to: timeline.StateDeletedLocal, expected: true},
		{from: timeline.StateReceived, to: timeline.StateFinalized, expected: true},
		{from: timeline.StateReceived, to: timeline.StateDispatched},
		{from: timeline.StateConfirmed, to: timeline.StateDispatched},
		{from: timeline.StateFinalized, to: timeline.StateFinalized},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, timeline.Valid(tt.from, tt.to))
		})
	}
}
