package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrUnsupported indicates an audio format or operation is not supported
	ErrUnsupported = errors.New("unsupported")

	// ErrCorrupt indicates a response or file is corrupt or unreadable
	ErrCorrupt = errors.New("corrupt data")

	// ErrConflict indicates a destination file conflict
	ErrConflict = errors.New("destination conflict")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrRateLimited indicates the remote service asked us to slow down
	ErrRateLimited = errors.New("rate limited")

	// ErrPermission indicates a permission error
	ErrPermission = errors.New("permission denied")

	// ErrDiskFull indicates insufficient disk space
	ErrDiskFull = errors.New("disk full")
)
