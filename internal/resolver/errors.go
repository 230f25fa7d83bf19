package resolver

import "errors"

// ErrNotFound is returned when no known category matches the input.
var ErrNotFound = errors.New("no category found")
