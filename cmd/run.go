package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/seedreap/postreap/internal/pipeline"
	"github.com/seedreap/postreap/internal/timeline"
)

const (
	lockFileName   = "postreap.lock"
	lockRetryDelay = time.Second
)

// errLockNotAcquired is returned when the run lock could not be taken.
var errLockNotAcquired = errors.New("another postreap run holds the lock")

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withRunLock runs fn while holding the process-wide run lock, waiting for
// other runs to finish first.
func withRunLock(ctx context.Context, fn func() error) error {
	path := filepath.Join(os.TempDir(), lockFileName)
	lock := flock.New(path)

	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire run lock %s: %w", path, err)
	}
	if !locked {
		return errLockNotAcquired
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to release run lock")
		}
	}()

	log.Debug().Str("path", path).Msg("run lock acquired")
	return fn()
}

func newOrchestrator() (*pipeline.Orchestrator, error) {
	o, err := pipeline.FromConfig(&appConfig, log.With().Str("component", "pipeline").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to set up pipeline: %w", err)
	}
	return o, nil
}

// processRequest runs req through a new orchestrator under the run lock.
func processRequest(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	o, err := newOrchestrator()
	if err != nil {
		return pipeline.Result{}, err
	}

	var res pipeline.Result
	err = withRunLock(ctx, func() error {
		res = o.Process(ctx, req)
		return nil
	})
	if err == nil {
		logTimeline(o.Timeline(), res.RunID)
	}
	return res, err
}

// logTimeline writes the states a run went through as one line.
func logTimeline(rec timeline.Recorder, runID string) {
	states := rec.States(runID)
	names := make([]string, 0, len(states))
	for _, s := range states {
		names = append(names, string(s))
	}
	log.Info().Str("run_id", runID).Strs("states", names).Msg("run timeline")
}

// outcomeError maps a run outcome to the command's error.
func outcomeError(outcome pipeline.Outcome, err error) error {
	if outcome == pipeline.Success {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("processing finished with outcome %s", outcome)
	}
	return &exitError{code: 1, err: err}
}
