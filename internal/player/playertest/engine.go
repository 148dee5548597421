// Package playertest provides a scripted playback engine for exercising
// the watchdog without a real media process.
package playertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/franz/deadstream/internal/player"
)

var errScriptedFailure = errors.New("scripted failure")

// Engine fakes a playback backend. Position advances by a fixed step per
// read while playing; flipping the stall switch freezes it, which is
// exactly what a dying stream looks like to the watchdog.
type Engine struct {
	mu sync.Mutex

	state    player.State
	pos      time.Duration
	duration time.Duration
	volume   float64

	step     time.Duration
	stalled  bool
	failLoad bool
	failPlay bool

	loads     int
	plays     int
	stops     int
	seeks     []time.Duration
	loadedURL string
}

// New builds an engine whose position advances by step on every read
// while playing
func New(step time.Duration) *Engine {
	return &Engine{
		step:     step,
		duration: time.Hour,
		volume:   1.0,
	}
}

func (e *Engine) Load(_ context.Context, url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.loads++
	if e.failLoad {
		return errScriptedFailure
	}
	e.loadedURL = url
	e.pos = 0
	e.state = player.StateBuffering
	return nil
}

func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.plays++
	if e.failPlay {
		return errScriptedFailure
	}
	e.state = player.StatePlaying
	return nil
}

func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = player.StatePaused
	return nil
}

func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stops++
	e.state = player.StateStopped
	e.pos = 0
	return nil
}

func (e *Engine) Seek(pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seeks = append(e.seeks, pos)
	e.pos = pos
	return nil
}

func (e *Engine) SetVolume(v float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.volume = v
	return nil
}

func (e *Engine) Volume() (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume, nil
}

// Position advances the scripted clock, then reports it
func (e *Engine) Position() (time.Duration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == player.StatePlaying && !e.stalled {
		e.pos += e.step
	}
	return e.pos, nil
}

func (e *Engine) Duration() (time.Duration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration, nil
}

func (e *Engine) State() player.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = player.StateStopped
	return nil
}

// SetStalled freezes or thaws the position clock
func (e *Engine) SetStalled(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stalled = v
}

// SetFailLoad makes subsequent Load calls fail
func (e *Engine) SetFailLoad(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failLoad = v
}

// SetFailPlay makes subsequent Play calls fail
func (e *Engine) SetFailPlay(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failPlay = v
}

// EndPlayback simulates the stream reaching its natural end
func (e *Engine) EndPlayback() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = player.StateStopped
}

func (e *Engine) Loads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads
}

func (e *Engine) Plays() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plays
}

func (e *Engine) Stops() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stops
}

func (e *Engine) Seeks() []time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]time.Duration, len(e.seeks))
	copy(out, e.seeks)
	return out
}

func (e *Engine) LoadedURL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadedURL
}

var _ player.Engine = (*Engine)(nil)
