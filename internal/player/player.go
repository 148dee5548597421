package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/franz/deadstream/internal/report"
	"github.com/franz/deadstream/internal/util"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultStallPolls   = 3
	DefaultMaxRestarts  = 3
)

// Config holds player configuration
type Config struct {
	Engine       Engine
	PollInterval time.Duration // how often the watchdog samples position
	StallPolls   int           // consecutive unchanged samples that count as a stall
	MaxRestarts  int           // restarts before giving up on the stream
	Logger       *report.EventLogger
}

// Player wraps an engine with a stall watchdog. Streams from the archive
// drop mid-track often enough that unattended playback needs one: the
// watchdog samples the position on a ticker and when a playing stream
// stops advancing it reloads the URL and seeks back to where it was.
type Player struct {
	engine       Engine
	pollInterval time.Duration
	stallPolls   int
	maxRestarts  int
	logger       *report.EventLogger

	mu            sync.Mutex
	url           string
	identifier    string
	state         State
	lastPos       time.Duration
	stalledPolls  int
	restarts      int
	running       bool
	stop          chan struct{}
	onStateChange func(State)
	onTrackEnd    func()

	watchdogWg sync.WaitGroup
}

// New builds a player around an engine. Zero config values fall back to
// the defaults.
func New(cfg *Config) (*Player, error) {
	if cfg == nil || cfg.Engine == nil {
		return nil, fmt.Errorf("player needs an engine")
	}

	p := &Player{
		engine:       cfg.Engine,
		pollInterval: cfg.PollInterval,
		stallPolls:   cfg.StallPolls,
		maxRestarts:  cfg.MaxRestarts,
		logger:       cfg.Logger,
		stop:         make(chan struct{}),
	}
	if p.pollInterval <= 0 {
		p.pollInterval = DefaultPollInterval
	}
	if p.stallPolls <= 0 {
		p.stallPolls = DefaultStallPolls
	}
	if p.maxRestarts <= 0 {
		p.maxRestarts = DefaultMaxRestarts
	}
	return p, nil
}

// OnStateChange registers a callback fired whenever the published state
// changes. The callback runs on the watchdog goroutine, keep it short.
func (p *Player) OnStateChange(fn func(State)) {
	p.mu.Lock()
	p.onStateChange = fn
	p.mu.Unlock()
}

// OnTrackEnd registers a callback fired when a stream plays to its end
func (p *Player) OnTrackEnd(fn func()) {
	p.mu.Lock()
	p.onTrackEnd = fn
	p.mu.Unlock()
}

// Play loads a stream, starts playback and attaches the watchdog.
// Whatever was playing before is stopped first.
func (p *Player) Play(ctx context.Context, identifier, url string) error {
	p.stopWatchdog()

	p.mu.Lock()
	p.url = url
	p.identifier = identifier
	p.restarts = 0
	p.stalledPolls = 0
	p.lastPos = -1
	p.mu.Unlock()

	if err := p.engine.Load(ctx, url); err != nil {
		return fmt.Errorf("failed to load stream: %w", err)
	}
	if err := p.engine.Play(); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	p.logger.LogPlay(identifier, "start")
	p.setState(StatePlaying)
	p.startWatchdog(ctx)
	return nil
}

// Pause pauses playback. The watchdog keeps running but a paused stream
// never counts as stalled.
func (p *Player) Pause() error {
	if err := p.engine.Pause(); err != nil {
		return err
	}
	p.setState(StatePaused)
	return nil
}

// Resume continues paused playback
func (p *Player) Resume() error {
	if err := p.engine.Play(); err != nil {
		return err
	}
	p.setState(StatePlaying)
	return nil
}

// Stop halts playback and shuts the watchdog down
func (p *Player) Stop() error {
	p.stopWatchdog()
	err := p.engine.Stop()
	p.setState(StateStopped)
	return err
}

// Seek jumps to a position in the current stream
func (p *Player) Seek(pos time.Duration) error {
	err := p.engine.Seek(pos)
	if err == nil {
		p.mu.Lock()
		// Keep the watchdog from reading the jump as a stall or progress
		p.lastPos = -1
		p.stalledPolls = 0
		p.mu.Unlock()
	}
	return err
}

func (p *Player) SetVolume(v float64) error {
	return p.engine.SetVolume(v)
}

func (p *Player) Volume() (float64, error) {
	return p.engine.Volume()
}

func (p *Player) Position() (time.Duration, error) {
	return p.engine.Position()
}

func (p *Player) Duration() (time.Duration, error) {
	return p.engine.Duration()
}

// State reports the published state, which tracks the engine but adds
// StateError once the restart budget runs out
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Restarts reports how many times the current stream has been restarted
func (p *Player) Restarts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restarts
}

// Close stops playback and releases the engine
func (p *Player) Close() error {
	p.stopWatchdog()
	p.engine.Stop()
	return p.engine.Close()
}

func (p *Player) setState(s State) {
	p.mu.Lock()
	if p.state == s {
		p.mu.Unlock()
		return
	}
	p.state = s
	cb := p.onStateChange
	p.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}

func (p *Player) startWatchdog(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	stop := p.stop
	p.mu.Unlock()

	p.watchdogWg.Add(1)
	go func() {
		defer func() {
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
			p.watchdogWg.Done()
		}()

		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !p.poll(ctx, stop) {
					return
				}
			}
		}
	}()
}

// stopWatchdog signals the watchdog and waits for it to exit. Safe to
// call when none is running.
func (p *Player) stopWatchdog() {
	p.mu.Lock()
	select {
	case <-p.stop:
		// already signalled
	default:
		close(p.stop)
	}
	p.mu.Unlock()

	p.watchdogWg.Wait()
}

// poll takes one watchdog sample. Returning false retires the watchdog.
func (p *Player) poll(ctx context.Context, stop chan struct{}) bool {
	switch p.engine.State() {
	case StateStopped:
		// The stream played to its end
		p.logger.LogPlay(p.identifierSnapshot(), "end")
		p.setState(StateStopped)

		p.mu.Lock()
		cb := p.onTrackEnd
		p.mu.Unlock()
		if cb != nil {
			// Off the watchdog goroutine so the callback can start the
			// next track without waiting on this watchdog to exit
			go cb()
		}
		return false

	case StatePaused:
		p.mu.Lock()
		p.stalledPolls = 0
		p.mu.Unlock()
		return true

	case StateError:
		return p.restart(ctx, stop)
	}

	pos, err := p.engine.Position()
	if err != nil {
		util.WarnLog("Could not read playback position: %v", err)
		return true
	}

	p.mu.Lock()
	stalled := p.lastPos >= 0 && pos == p.lastPos
	if stalled {
		p.stalledPolls++
	} else {
		p.stalledPolls = 0
		// Only genuine movement earns the restart budget back. The
		// first sample after a restart is a baseline, not progress.
		if p.lastPos >= 0 && pos != p.lastPos {
			p.restarts = 0
		}
	}
	p.lastPos = pos
	hitThreshold := p.stalledPolls >= p.stallPolls
	p.mu.Unlock()

	if hitThreshold {
		return p.restart(ctx, stop)
	}
	return true
}

// restart runs the recovery sequence: remember the position, tear the
// stream down, reload, seek back, play. Each attempt waits a little
// longer than the one before. Returns false once the budget is spent.
func (p *Player) restart(ctx context.Context, stop chan struct{}) bool {
	for {
		p.mu.Lock()
		p.restarts++
		attempt := p.restarts
		budget := p.maxRestarts
		url := p.url
		identifier := p.identifier
		savedPos := p.lastPos
		p.stalledPolls = 0
		p.mu.Unlock()

		if savedPos < 0 {
			savedPos = 0
		}

		if attempt > budget {
			util.ErrorLog("Playback of %s stalled %d times, giving up", identifier, budget)
			p.logger.LogPlay(identifier, "gave up")
			p.setState(StateError)
			return false
		}

		util.WarnLog("Playback stalled at %s, restarting (attempt %d of %d)",
			savedPos.Round(time.Second), attempt, budget)
		p.logger.LogPlay(identifier, "restart")

		select {
		case <-time.After(time.Duration(attempt) * p.pollInterval):
		case <-ctx.Done():
			return false
		case <-stop:
			return false
		}

		if err := p.engine.Stop(); err != nil {
			util.DebugLog("Stop before restart failed: %v", err)
		}
		if err := p.engine.Load(ctx, url); err != nil {
			util.WarnLog("Reload failed: %v", err)
			continue
		}
		if savedPos > 0 {
			if err := p.engine.Seek(savedPos); err != nil {
				util.DebugLog("Seek back to %s failed: %v", savedPos.Round(time.Second), err)
			}
		}
		if err := p.engine.Play(); err != nil {
			util.WarnLog("Play after reload failed: %v", err)
			continue
		}

		p.mu.Lock()
		p.lastPos = -1
		p.mu.Unlock()
		p.setState(StatePlaying)
		return true
	}
}

func (p *Player) identifierSnapshot() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.identifier
}
