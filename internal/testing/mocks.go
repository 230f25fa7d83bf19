// Package testing provides mock implementations for use in tests.
// This package should only be imported by test files (*_test.go).
package testing

import (
	"context"
	"errors"
	"net"
	"net/url"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/seedreap/postreap/internal/execx"
)

var errNotInPath = errors.New("executable file not found in $PATH")

// MockRunner is a mock implementation of execx.Runner for testing.
// By default every command exits 0.
type MockRunner struct {
	mu    sync.RWMutex
	calls []execx.Command

	// ExitCodes maps a binary base name to the exit code it returns.
	ExitCodes map[string]int

	// Hooks for custom behavior
	OnRun func(ctx context.Context, cmd execx.Command) (int, error)
}

// NewMockRunner creates a new mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{ExitCodes: make(map[string]int)}
}

// Run records the command and returns the scripted exit code.
func (m *MockRunner) Run(ctx context.Context, cmd execx.Command) (int, error) {
	m.mu.Lock()
	m.calls = append(m.calls, cmd)
	m.mu.Unlock()

	if m.OnRun != nil {
		return m.OnRun(ctx, cmd)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ExitCodes[filepath.Base(cmd.Name)], nil
}

// Calls returns the recorded commands.
func (m *MockRunner) Calls() []execx.Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.calls)
}

// PasswordRunner returns an OnRun hook that only succeeds when one of the
// command's arguments equals passwordArg.
func PasswordRunner(passwordArg string) func(context.Context, execx.Command) (int, error) {
	return func(_ context.Context, cmd execx.Command) (int, error) {
		if slices.Contains(cmd.Args, passwordArg) {
			return 0, nil
		}
		return 1, nil
	}
}

// LookPathFor returns a LookPathFunc that only finds the given binaries.
func LookPathFor(binaries ...string) execx.LookPathFunc {
	return func(file string) (string, error) {
		if slices.Contains(binaries, file) {
			return "/usr/bin/" + file, nil
		}
		return "", errNotInPath
	}
}

// HostPort splits the host and port of a test server URL.
func HostPort(rawURL string) (string, int) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		return u.Host, 0
	}
	n, _ := strconv.Atoi(port)
	return host, n
}

// MockWorkdir is an in-memory working directory for archive.Extractor.
type MockWorkdir struct {
	mu      sync.Mutex
	current string
	history []string
}

// NewMockWorkdir creates a MockWorkdir starting in dir.
func NewMockWorkdir(dir string) *MockWorkdir {
	return &MockWorkdir{current: dir}
}

// Getwd returns the current directory.
func (w *MockWorkdir) Getwd() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current, nil
}

// Chdir records the change and switches to dir.
func (w *MockWorkdir) Chdir(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = dir
	w.history = append(w.history, dir)
	return nil
}

// Current returns the current directory.
func (w *MockWorkdir) Current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// History returns every directory switched to, in order.
func (w *MockWorkdir) History() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.history)
}
