package manager

import "errors"

var (
	// ErrUnknownKind is returned for a section whose kind has no implementation.
	ErrUnknownKind = errors.New("unknown manager kind")

	// ErrConnection wraps transport failures (refused, timeout, DNS).
	ErrConnection = errors.New("manager connection failed")

	// ErrRejected is returned when the manager answered but did not accept the request.
	ErrRejected = errors.New("manager rejected request")

	// ErrUnsupported is returned when the manager kind or dialect cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by manager")

	// ErrNotFound is returned when the library item for a request cannot be identified.
	ErrNotFound = errors.New("library item not found")

	// ErrPollTimeout is returned when no status change was seen before the deadline.
	ErrPollTimeout = errors.New("no status change before deadline")
)
