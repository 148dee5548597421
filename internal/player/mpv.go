package player

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/franz/deadstream/internal/util"
)

const (
	mpvBinary       = "mpv"
	mpvStartTimeout = 5 * time.Second
	mpvIPCTimeout   = 2 * time.Second
)

// LookPath reports where the mpv binary lives, for environment checks
func LookPath() (string, error) {
	return exec.LookPath(mpvBinary)
}

// MPV drives an external mpv process over its JSON IPC socket. One
// MPV value owns one mpv process; Close tears both down.
type MPV struct {
	mu         sync.Mutex
	cmd        *exec.Cmd
	conn       net.Conn
	reader     *bufio.Reader
	socketPath string
	requestID  int
	loaded     bool
	state      State
}

type mpvResponse struct {
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	RequestID int             `json:"request_id"`
	Event     string          `json:"event"`
}

// NewMPV starts an idle audio-only mpv process and connects to its
// control socket
func NewMPV(ctx context.Context) (*MPV, error) {
	if _, err := LookPath(); err != nil {
		return nil, fmt.Errorf("mpv not found in PATH: %w", err)
	}

	socketPath := filepath.Join(os.TempDir(), fmt.Sprintf("dsc-mpv-%d.sock", os.Getpid()))

	cmd := exec.Command(mpvBinary,
		"--no-video",
		"--idle=yes",
		"--really-quiet",
		"--no-terminal",
		"--input-ipc-server="+socketPath,
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start mpv: %w", err)
	}

	util.DebugLog("Started mpv (pid %d), socket %s", cmd.Process.Pid, socketPath)

	// The socket appears once mpv finishes starting up
	conn, err := waitForSocket(ctx, socketPath)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		os.Remove(socketPath)
		return nil, err
	}

	return &MPV{
		cmd:        cmd,
		conn:       conn,
		reader:     bufio.NewReader(conn),
		socketPath: socketPath,
		state:      StateStopped,
	}, nil
}

func waitForSocket(ctx context.Context, path string) (net.Conn, error) {
	deadline := time.Now().Add(mpvStartTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		conn, err := net.Dial("unix", path)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("mpv control socket never appeared at %s", path)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// command sends one IPC command and waits for its reply, skipping the
// async event notifications mpv interleaves on the same socket
func (m *MPV) command(args ...any) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commandLocked(args...)
}

func (m *MPV) commandLocked(args ...any) (json.RawMessage, error) {
	if m.conn == nil {
		return nil, fmt.Errorf("mpv connection closed")
	}

	m.requestID++
	payload, err := json.Marshal(map[string]any{
		"command":    args,
		"request_id": m.requestID,
	})
	if err != nil {
		return nil, err
	}

	m.conn.SetDeadline(time.Now().Add(mpvIPCTimeout))
	if _, err := m.conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("mpv write failed: %w", err)
	}

	for {
		line, err := m.reader.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("mpv read failed: %w", err)
		}

		var resp mpvResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		if resp.Event != "" || resp.RequestID != m.requestID {
			continue
		}
		if resp.Error != "success" {
			return nil, fmt.Errorf("mpv: %s", resp.Error)
		}
		return resp.Data, nil
	}
}

func (m *MPV) getFloat(name string) (float64, error) {
	data, err := m.command("get_property", name)
	if err != nil {
		return 0, err
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("unexpected %s payload: %w", name, err)
	}
	return v, nil
}

func (m *MPV) setProperty(name string, value any) error {
	_, err := m.command("set_property", name, value)
	return err
}

// Load replaces the current stream. mpv begins playing a loaded file on
// its own, so Load leaves the engine in the buffering state and Play
// only has to clear the pause flag.
func (m *MPV) Load(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.commandLocked("loadfile", url, "replace"); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	m.loaded = true
	m.state = StateBuffering
	return nil
}

func (m *MPV) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return fmt.Errorf("nothing loaded")
	}
	if _, err := m.commandLocked("set_property", "pause", false); err != nil {
		return err
	}
	m.state = StatePlaying
	return nil
}

func (m *MPV) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.commandLocked("set_property", "pause", true); err != nil {
		return err
	}
	m.state = StatePaused
	return nil
}

func (m *MPV) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.commandLocked("stop"); err != nil {
		return err
	}
	m.loaded = false
	m.state = StateStopped
	return nil
}

func (m *MPV) Seek(pos time.Duration) error {
	_, err := m.command("seek", pos.Seconds(), "absolute")
	return err
}

func (m *MPV) SetVolume(v float64) error {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return m.setProperty("volume", v*100)
}

func (m *MPV) Volume() (float64, error) {
	v, err := m.getFloat("volume")
	if err != nil {
		return 0, err
	}
	return v / 100, nil
}

// Position reads the playback position. The property is unavailable
// until the stream actually starts, which reads as zero.
func (m *MPV) Position() (time.Duration, error) {
	v, err := m.getFloat("time-pos")
	if err != nil {
		if isPropertyUnavailable(err) {
			return 0, nil
		}
		return 0, err
	}
	return time.Duration(v * float64(time.Second)), nil
}

func (m *MPV) Duration() (time.Duration, error) {
	v, err := m.getFloat("duration")
	if err != nil {
		if isPropertyUnavailable(err) {
			return 0, nil
		}
		return 0, err
	}
	return time.Duration(v * float64(time.Second)), nil
}

func isPropertyUnavailable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "property unavailable")
}

// State reports the tracked state, checking whether mpv dropped back to
// idle, which is how the end of a stream shows up
func (m *MPV) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return StateStopped
	}
	if !m.loaded || m.state == StateError {
		return m.state
	}

	if data, err := m.commandLocked("get_property", "idle-active"); err == nil {
		var idle bool
		if json.Unmarshal(data, &idle) == nil && idle {
			m.loaded = false
			m.state = StateStopped
			return m.state
		}
	}

	// Buffering resolves itself once playback advances
	if m.state == StateBuffering {
		if data, err := m.commandLocked("get_property", "paused-for-cache"); err == nil {
			var waiting bool
			if json.Unmarshal(data, &waiting) == nil && !waiting {
				m.state = StatePlaying
			}
		}
	}

	return m.state
}

// Close asks mpv to quit, then reaps the process. A process that will
// not quit within the IPC timeout gets killed.
func (m *MPV) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		m.commandLocked("quit")
		m.conn.Close()
		m.conn = nil
	}

	if m.cmd != nil && m.cmd.Process != nil {
		done := make(chan error, 1)
		go func() { done <- m.cmd.Wait() }()

		select {
		case <-done:
		case <-time.After(mpvIPCTimeout):
			util.WarnLog("mpv did not quit, killing pid %d", m.cmd.Process.Pid)
			m.cmd.Process.Kill()
			<-done
		}
		m.cmd = nil
	}

	os.Remove(m.socketPath)
	m.loaded = false
	m.state = StateStopped
	return nil
}
