// Package archive detects archive files by suffix and extracts them with
// external tools, retrying with candidate passwords when needed.
package archive

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/seedreap/postreap/internal/execx"
)

// Result describes a finished extraction.
type Result struct {
	// Tool is the binary that performed the extraction.
	Tool string
	// Attempts is the total number of tool invocations, including the
	// password-less first attempt.
	Attempts int
	// PasswordAttempts is the number of password candidates tried.
	PasswordAttempts int
	// UsedPassword reports whether a password candidate succeeded.
	UsedPassword bool
}

// Workdir switches the process working directory.
type Workdir interface {
	Getwd() (string, error)
	Chdir(dir string) error
}

type osWorkdir struct{}

func (osWorkdir) Getwd() (string, error) { return os.Getwd() }
func (osWorkdir) Chdir(dir string) error { return os.Chdir(dir) }

// The working directory is process-wide, so extractions never overlap.
//
//nolint:gochecknoglobals // guards process state
var workdirMu sync.Mutex

// Extractor runs archive extraction.
type Extractor struct {
	registry  *Registry
	runner    execx.Runner
	fs        afero.Fs
	workdir   Workdir
	passwords []string
	logger    zerolog.Logger
}

// Option is a functional option for configuring the Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithFs sets the filesystem used to create destinations.
func WithFs(fs afero.Fs) Option {
	return func(e *Extractor) {
		e.fs = fs
	}
}

// WithWorkdir replaces the working-directory switcher.
func WithWorkdir(w Workdir) Option {
	return func(e *Extractor) {
		e.workdir = w
	}
}

// WithPasswords sets the password candidates tried after a failed password-less run.
func WithPasswords(passwords []string) Option {
	return func(e *Extractor) {
		e.passwords = passwords
	}
}

// NewExtractor creates an Extractor using the tools in registry.
func NewExtractor(registry *Registry, runner execx.Runner, opts ...Option) *Extractor {
	e := &Extractor{
		registry: registry,
		runner:   runner,
		fs:       afero.NewOsFs(),
		workdir:  osWorkdir{},
		logger:   zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// IsArchive reports whether path has a suffix with an available tool.
func (e *Extractor) IsArchive(path string) bool {
	_, ok := e.registry.Lookup(path)
	return ok
}

// Extract extracts path into destination.
//
// Unknown suffixes return ErrNotSupported before anything is written. When all
// attempts fail, ErrExtractionFailed is returned and destination is left as is.
func (e *Extractor) Extract(ctx context.Context, path, destination string) (Result, error) {
	tool, ok := e.registry.Lookup(path)
	if !ok {
		suffix, _ := Suffix(path)
		e.logger.Debug().Str("path", path).Str("suffix", suffix).Msg("unknown archive type")
		return Result{}, fmt.Errorf("%w: %q", ErrNotSupported, suffix)
	}

	if err := e.fs.MkdirAll(destination, 0750); err != nil {
		return Result{}, fmt.Errorf("create destination: %w", err)
	}

	result := Result{Tool: tool.Binary}

	restore, err := e.enter(destination)
	if err != nil {
		return result, err
	}
	defer restore()

	e.logger.Info().
		Str("path", path).
		Str("destination", destination).
		Str("tool", tool.Binary).
		Msg("extracting archive")

	result.Attempts++
	if e.run(ctx, tool.Command(path, destination, "")) {
		e.logger.Info().Str("path", path).Msg("extraction successful")
		return result, nil
	}

	if !tool.SupportsPasswords() || len(e.passwords) == 0 {
		return result, fmt.Errorf("%w: %s", ErrExtractionFailed, path)
	}

	e.logger.Info().Int("candidates", len(e.passwords)).Msg("attempting extraction with passwords")

	for _, password := range e.passwords {
		if strings.TrimSpace(password) == "" {
			continue
		}

		result.Attempts++
		result.PasswordAttempts++

		if e.run(ctx, tool.Command(path, destination, password)) {
			result.UsedPassword = true
			e.logger.Info().
				Str("path", path).
				Int("password_attempts", result.PasswordAttempts).
				Msg("extraction successful with password")
			return result, nil
		}
	}

	e.logger.Error().
		Str("path", path).
		Int("attempts", result.Attempts).
		Msg("extraction failed, password candidates exhausted")

	return result, fmt.Errorf("%w: %s", ErrExtractionFailed, path)
}

func (e *Extractor) run(ctx context.Context, cmd execx.Command) bool {
	code, err := e.runner.Run(ctx, cmd)
	if err != nil {
		e.logger.Error().Err(err).Str("tool", cmd.Name).Msg("could not run extraction tool")
		return false
	}
	if code != 0 {
		e.logger.Debug().Str("tool", cmd.Name).Int("exit_code", code).Msg("extraction attempt failed")
		return false
	}
	return true
}

// enter switches into dir and returns a function that switches back and
// releases the working-directory lock.
func (e *Extractor) enter(dir string) (func(), error) {
	workdirMu.Lock()

	prev, err := e.workdir.Getwd()
	if err != nil {
		workdirMu.Unlock()
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	if err := e.workdir.Chdir(dir); err != nil {
		workdirMu.Unlock()
		return nil, fmt.Errorf("change to destination: %w", err)
	}

	return func() {
		if err := e.workdir.Chdir(prev); err != nil {
			e.logger.Error().Err(err).Str("dir", prev).Msg("failed to restore working directory")
		}
		workdirMu.Unlock()
	}, nil
}

// LoadPasswords reads newline-delimited password candidates from path,
// skipping blank lines. An empty path yields no candidates.
func LoadPasswords(fs afero.Fs, path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open password file: %w", err)
	}
	defer f.Close()

	var passwords []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		passwords = append(passwords, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read password file: %w", err)
	}

	return passwords, nil
}
