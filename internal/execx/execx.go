// Package execx runs external tools (extractors, encoders) synchronously.
package execx

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	shellquote "github.com/Hellseher/go-shellquote"
	"github.com/rs/zerolog"
)

// Command describes one invocation of an external tool.
type Command struct {
	// Name is the binary to execute (resolved through PATH if not absolute).
	Name string
	// Args are passed to the binary in order.
	Args []string
	// Dir is the working directory for the process. Empty means the caller's.
	Dir string
}

// String returns the command line quoted for a POSIX shell, suitable for logs.
func (c Command) String() string {
	return shellquote.Join(append([]string{c.Name}, c.Args...)...)
}

// Runner executes a Command and reports its exit code.
//
// A non-zero exit is not an error: err is only set when the process could not
// be started or did not exit normally.
type Runner interface {
	Run(ctx context.Context, cmd Command) (int, error)
}

// LookPathFunc resolves a binary name to a path. exec.LookPath satisfies it.
type LookPathFunc func(file string) (string, error)

// OSRunner runs commands with os/exec.
type OSRunner struct {
	logger zerolog.Logger
}

// NewOSRunner creates a runner backed by os/exec.
func NewOSRunner(logger zerolog.Logger) *OSRunner {
	return &OSRunner{logger: logger}
}

// Run starts the command and waits for it to exit.
func (r *OSRunner) Run(ctx context.Context, c Command) (int, error) {
	r.logger.Debug().
		Str("dir", c.Dir).
		Str("cmd", c.String()).
		Msg("running external command")

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode(), nil
	}

	return -1, fmt.Errorf("run %s: %w", c.Name, err)
}
