// Package timeline records the state transitions of each processing run.
package timeline

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// State is a step of the per-request state machine.
type State string

// Request states.
const (
	StateReceived        State = "received"
	StateLocated         State = "located"
	StateExtracted       State = "extracted"
	StateTranscoded      State = "transcoded"
	StateDialectResolved State = "dialect_resolved"
	StateDispatched      State = "dispatched"
	StateConfirmed       State = "confirmed"
	StateTimedOut        State = "timed_out"
	StateRejected        State = "rejected"
	StateFailureNotified State = "failure_notified"
	StateDeletedLocal    State = "deleted_local"
	StateFinalized       State = "finalized"
)

// next lists the states reachable from each state. Any state may go to
// StateFinalized, which ends the run.
//
//nolint:gochecknoglobals // static transition table
var next = map[State][]State{
	StateReceived:        {StateLocated},
	StateLocated:         {StateExtracted, StateTranscoded, StateDialectResolved, StateFailureNotified, StateDeletedLocal},
	StateExtracted:       {StateTranscoded, StateDialectResolved},
	StateTranscoded:      {StateDialectResolved},
	StateDialectResolved: {StateDispatched, StateRejected, StateFailureNotified},
	StateDispatched:      {StateConfirmed, StateTimedOut},
	StateFailureNotified: {StateDeletedLocal},
}

// Valid reports whether a run may move from one state to another.
func Valid(from, to State) bool {
	if to == StateFinalized {
		return from != StateFinalized
	}
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Event is one recorded transition.
type Event struct {
	ID        string         `json:"id"`
	RunID     string         `json:"run_id"`
	State     State          `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Name      string         `json:"name,omitempty"`
	Section   string         `json:"section,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Recorder records and retrieves timeline events.
type Recorder interface {
	// Record adds a new event to the timeline.
	Record(event Event)

	// GetByRun returns events for a specific run, newest first.
	GetByRun(runID string) []Event

	// States returns the states a run went through, oldest first.
	States(runID string) []State
}

// recorder is the default in-memory implementation of Recorder.
type recorder struct {
	events    []Event
	current   map[string]State
	mu        sync.RWMutex
	logger    zerolog.Logger
	maxEvents int
}

// Option is a functional option for configuring the recorder.
type Option func(*recorder)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *recorder) {
		r.logger = logger
	}
}

// WithMaxEvents sets the maximum number of events to retain.
func WithMaxEvents(maxEvents int) Option {
	return func(r *recorder) {
		r.maxEvents = maxEvents
	}
}

// Default configuration values.
const (
	defaultMaxEvents = 1000
)

// NewRecorder creates a new timeline recorder.
func NewRecorder(opts ...Option) Recorder {
	r := &recorder{
		events:    make([]Event, 0),
		current:   make(map[string]State),
		logger:    zerolog.Nop(),
		maxEvents: defaultMaxEvents,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Record adds a new event to the timeline. A transition the state machine does
// not allow is still recorded, and logged as a warning.
func (r *recorder) Record(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == "" {
		event.ID = ulid.Make().String()
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if prev, ok := r.current[event.RunID]; ok && !Valid(prev, event.State) {
		r.logger.Warn().
			Str("run_id", event.RunID).
			Str("from", string(prev)).
			Str("to", string(event.State)).
			Msg("unexpected state transition")
	}
	r.current[event.RunID] = event.State

	// Prepend event (newest first)
	r.events = append([]Event{event}, r.events...)

	if len(r.events) > r.maxEvents {
		r.events = r.events[:r.maxEvents]
	}

	r.logger.Debug().
		Str("run_id", event.RunID).
		Str("state", string(event.State)).
		Str("message", event.Message).
		Msg("state recorded")
}

// GetByRun returns events for a specific run, newest first.
func (r *recorder) GetByRun(runID string) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Event
	for _, e := range r.events {
		if e.RunID == runID {
			result = append(result, e)
		}
	}
	return result
}

// States returns the states a run went through, oldest first.
func (r *recorder) States(runID string) []State {
	events := r.GetByRun(runID)

	states := make([]State, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		states = append(states, events[i].State)
	}
	return states
}
