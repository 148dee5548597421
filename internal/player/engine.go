package player

import (
	"context"
	"time"
)

// Engine is the minimal contract a playback backend provides. Position
// and Duration may read as zero while a stream is still buffering.
type Engine interface {
	// Load prepares a URL for playback, replacing whatever was loaded
	Load(ctx context.Context, url string) error
	Play() error
	Pause() error
	Stop() error
	Seek(pos time.Duration) error

	// SetVolume takes 0.0 to 1.0
	SetVolume(v float64) error
	Volume() (float64, error)

	Position() (time.Duration, error)
	Duration() (time.Duration, error)
	State() State

	// Close releases the backend. The engine is unusable afterwards.
	Close() error
}
