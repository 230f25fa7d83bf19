package pipeline

import "errors"

// Sentinel errors for the pipeline package.
var (
	// ErrNoSection is returned when no enabled section handles the resolved category.
	ErrNoSection = errors.New("no section for category")

	// ErrNoMedia is returned when an automatic run finds no media files to hand off.
	ErrNoMedia = errors.New("no media files found")

	// ErrTranscode is returned when at least one file failed to encode.
	ErrTranscode = errors.New("transcoding failed")

	// ErrUnsafeDelete is returned when a directory is too close to the root to be removed.
	ErrUnsafeDelete = errors.New("refusing to delete directory")
)
