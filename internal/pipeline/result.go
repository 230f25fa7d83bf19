package pipeline

import (
	"errors"
	"fmt"
)

// Outcome is the overall result of a run, ordered by severity.
type Outcome int

// Run outcomes.
const (
	// Success means the manager accepted, and where possible confirmed, the request.
	Success Outcome = iota
	// Unconfirmed means the request was accepted but no status change was seen
	// before the deadline. Destructive follow-ups are skipped.
	Unconfirmed
	// Failed means the request could not be handed off.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Unconfirmed:
		return "unconfirmed"
	default:
		return "failed"
	}
}

// Worst returns the more severe of two outcomes.
func Worst(a, b Outcome) Outcome {
	return max(a, b)
}

// Step names used in StepResult.
const (
	StepResolve   = "resolve"
	StepStage     = "stage"
	StepNotify    = "notify_failed"
	StepDelete    = "delete_failed"
	StepASCII     = "ascii"
	StepExtract   = "extract"
	StepIsolate   = "isolate"
	StepScan      = "scan"
	StepTranscode = "transcode"
	StepDialect   = "dialect"
	StepDispatch  = "dispatch"
	StepPoll      = "poll"
	StepCleanup   = "cleanup"
	StepRelease   = "release"
)

// StepResult records what happened in one step of a run.
type StepResult struct {
	Step string
	// Err is set when the step failed.
	Err error
	// Note is a short human-readable summary.
	Note string
}

// Result is the outcome of one run.
type Result struct {
	RunID   string
	Section string
	Dir     string
	Outcome Outcome
	Steps   []StepResult
}

// ExitCode maps the outcome to a process exit code.
func (r Result) ExitCode() int {
	if r.Outcome == Success {
		return 0
	}
	return 1
}

// Err joins the errors of every failed step.
func (r Result) Err() error {
	var errs []error
	for _, s := range r.Steps {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Step, s.Err))
		}
	}
	return errors.Join(errs...)
}

// Step returns the first result recorded for step.
func (r Result) Step(step string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Step == step {
			return s, true
		}
	}
	return StepResult{}, false
}

func (r *Result) ok(step, note string) {
	r.Steps = append(r.Steps, StepResult{Step: step, Note: note})
}

// fail records a failed step and raises the outcome to at least o.
func (r *Result) fail(step string, err error, o Outcome) {
	r.Steps = append(r.Steps, StepResult{Step: step, Err: err})
	r.Outcome = Worst(r.Outcome, o)
}
