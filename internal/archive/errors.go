package archive

import "errors"

// Sentinel errors for the archive package.
var (
	// ErrNotSupported is returned when no extraction tool handles the file's suffix.
	ErrNotSupported = errors.New("archive type not supported")

	// ErrExtractionFailed is returned when the tool failed without a password and
	// with every password candidate.
	ErrExtractionFailed = errors.New("extraction failed")
)
