package player_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/franz/deadstream/internal/player"
	"github.com/franz/deadstream/internal/player/playertest"
)

// Short intervals keep the watchdog cycles well under a second
func testPlayer(t *testing.T, engine *playertest.Engine, maxRestarts int) *player.Player {
	t.Helper()

	p, err := player.New(&player.Config{
		Engine:       engine,
		PollInterval: 10 * time.Millisecond,
		StallPolls:   2,
		MaxRestarts:  maxRestarts,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewRequiresEngine(t *testing.T) {
	if _, err := player.New(nil); err == nil {
		t.Error("New(nil) should fail")
	}
	if _, err := player.New(&player.Config{}); err == nil {
		t.Error("New() without an engine should fail")
	}
}

func TestPlayStartsEngine(t *testing.T) {
	engine := playertest.New(100 * time.Millisecond)
	p := testPlayer(t, engine, 3)

	err := p.Play(context.Background(), "gd1977-05-08.sbd.hicks", "http://example.org/d1t01.mp3")
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	if engine.Loads() != 1 {
		t.Errorf("Loads() = %d, want 1", engine.Loads())
	}
	if engine.LoadedURL() != "http://example.org/d1t01.mp3" {
		t.Errorf("LoadedURL() = %q", engine.LoadedURL())
	}
	if got := p.State(); got != player.StatePlaying {
		t.Errorf("State() = %s, want playing", got)
	}
}

func TestPlayReportsLoadFailure(t *testing.T) {
	engine := playertest.New(100 * time.Millisecond)
	engine.SetFailLoad(true)
	p := testPlayer(t, engine, 3)

	if err := p.Play(context.Background(), "x", "http://example.org/a.mp3"); err == nil {
		t.Error("Play() with failing load should return an error")
	}
}

func TestWatchdogRestartsStalledStream(t *testing.T) {
	engine := playertest.New(100 * time.Millisecond)
	p := testPlayer(t, engine, 3)

	if err := p.Play(context.Background(), "x", "http://example.org/a.mp3"); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	// Let it make some progress, then freeze the stream
	waitFor(t, time.Second, "initial progress", func() bool {
		pos, _ := p.Position()
		return pos > 0
	})
	engine.SetStalled(true)

	waitFor(t, 2*time.Second, "restart after stall", func() bool {
		return engine.Loads() >= 2
	})

	if engine.Stops() < 1 {
		t.Errorf("Stops() = %d, want at least 1 before reloading", engine.Stops())
	}

	seeks := engine.Seeks()
	if len(seeks) == 0 {
		t.Fatal("expected a seek back to the stalled position")
	}
	if seeks[0] <= 0 {
		t.Errorf("restart seek = %v, want the saved position", seeks[0])
	}

	// Thawed stream plays on and the player stays in the playing state
	engine.SetStalled(false)
	waitFor(t, time.Second, "progress after restart", func() bool {
		pos, _ := p.Position()
		return p.State() == player.StatePlaying && pos > seeks[0]
	})
}

func TestWatchdogGivesUpAfterMaxRestarts(t *testing.T) {
	engine := playertest.New(100 * time.Millisecond)
	engine.SetStalled(true)
	p := testPlayer(t, engine, 2)

	states := make(chan player.State, 16)
	p.OnStateChange(func(s player.State) { states <- s })

	if err := p.Play(context.Background(), "x", "http://example.org/a.mp3"); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	waitFor(t, 5*time.Second, "give-up state", func() bool {
		return p.State() == player.StateError
	})

	// One initial load plus one per restart attempt
	if got := engine.Loads(); got != 3 {
		t.Errorf("Loads() = %d, want 3", got)
	}
	if got := p.Restarts(); got != 3 {
		t.Errorf("Restarts() = %d, want 3 (two within budget, one over)", got)
	}

	sawError := false
	for len(states) > 0 {
		if <-states == player.StateError {
			sawError = true
		}
	}
	if !sawError {
		t.Error("OnStateChange never reported the error state")
	}
}

func TestWatchdogFiresTrackEnd(t *testing.T) {
	engine := playertest.New(100 * time.Millisecond)
	p := testPlayer(t, engine, 3)

	ended := make(chan struct{}, 1)
	p.OnTrackEnd(func() { ended <- struct{}{} })

	if err := p.Play(context.Background(), "x", "http://example.org/a.mp3"); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	waitFor(t, time.Second, "initial progress", func() bool {
		pos, _ := p.Position()
		return pos > 0
	})
	engine.EndPlayback()

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("OnTrackEnd never fired")
	}

	waitFor(t, time.Second, "stopped state", func() bool {
		return p.State() == player.StateStopped
	})
	if engine.Loads() != 1 {
		t.Errorf("Loads() = %d, a finished track must not be restarted", engine.Loads())
	}
}

func TestPausedStreamIsNotAStall(t *testing.T) {
	engine := playertest.New(100 * time.Millisecond)
	p := testPlayer(t, engine, 3)

	if err := p.Play(context.Background(), "x", "http://example.org/a.mp3"); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if err := p.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}

	// Far longer than the stall threshold
	time.Sleep(100 * time.Millisecond)

	if got := engine.Loads(); got != 1 {
		t.Errorf("Loads() = %d, pause must not trigger a restart", got)
	}
	if got := p.State(); got != player.StatePaused {
		t.Errorf("State() = %s, want paused", got)
	}

	if err := p.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	waitFor(t, time.Second, "progress after resume", func() bool {
		pos, _ := p.Position()
		return pos > 0
	})
}

func TestStopThenPlayAgain(t *testing.T) {
	engine := playertest.New(100 * time.Millisecond)
	p := testPlayer(t, engine, 3)

	if err := p.Play(context.Background(), "x", "http://example.org/a.mp3"); err != nil {
		t.Fatalf("first Play() error = %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := p.State(); got != player.StateStopped {
		t.Errorf("State() after Stop = %s, want stopped", got)
	}

	if err := p.Play(context.Background(), "y", "http://example.org/b.mp3"); err != nil {
		t.Fatalf("second Play() error = %v", err)
	}
	if engine.Loads() != 2 {
		t.Errorf("Loads() = %d, want 2", engine.Loads())
	}
	waitFor(t, time.Second, "second stream playing", func() bool {
		pos, _ := p.Position()
		return pos > 0
	})
}

func TestConcurrentStateReads(t *testing.T) {
	engine := playertest.New(100 * time.Millisecond)
	p := testPlayer(t, engine, 3)

	if err := p.Play(context.Background(), "x", "http://example.org/a.mp3"); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				p.State()
				p.Position()
				p.Restarts()
			}
		}()
	}
	wg.Wait()
}
