package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventSearch   EventType = "search"
	EventFetch    EventType = "fetch"
	EventInsert   EventType = "insert"
	EventSkip     EventType = "skip"
	EventUpdate   EventType = "update"
	EventValidate EventType = "validate"
	EventScore    EventType = "score"
	EventDownload EventType = "download"
	EventPlay     EventType = "play"
	EventError    EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single event in a run
type Event struct {
	Timestamp  time.Time         `json:"ts"`
	RunID      string            `json:"run_id,omitempty"`
	Level      EventLevel        `json:"level"`
	Event      EventType         `json:"event"`
	Identifier string            `json:"identifier,omitempty"`
	Date       string            `json:"date,omitempty"`
	Page       int               `json:"page,omitempty"`
	Score      float64           `json:"score,omitempty"`
	Action     string            `json:"action,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Bytes      int64             `json:"bytes,omitempty"`
	Duration   int64             `json:"duration_ms,omitempty"`
	Error      string            `json:"error,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file. Every run gets a fresh
// file and a unique run ID stamped on each event.
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	runID    string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level.
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug).
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		runID:    uuid.New().String(),
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.RunID = l.runID

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogSearch logs one search page fetch
func (l *EventLogger) LogSearch(page, docs int, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventSearch,
		Page:     page,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
		Extra: map[string]string{
			"docs": fmt.Sprintf("%d", docs),
		},
	})
}

// LogFetch logs a metadata fetch for one item
func (l *EventLogger) LogFetch(identifier string, duration time.Duration, err error) error {
	level := LevelDebug
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:      level,
		Event:      EventFetch,
		Identifier: identifier,
		Duration:   duration.Milliseconds(),
		Error:      errMsg,
	})
}

// LogInsert logs a newly stored recording
func (l *EventLogger) LogInsert(identifier, date string) error {
	return l.Log(&Event{
		Level:      LevelDebug,
		Event:      EventInsert,
		Identifier: identifier,
		Date:       date,
	})
}

// LogSkip logs a recording left alone, with the reason
func (l *EventLogger) LogSkip(identifier, reason string) error {
	return l.Log(&Event{
		Level:      LevelDebug,
		Event:      EventSkip,
		Identifier: identifier,
		Reason:     reason,
	})
}

// LogUpdate logs a refreshed recording
func (l *EventLogger) LogUpdate(identifier, date string) error {
	return l.Log(&Event{
		Level:      LevelInfo,
		Event:      EventUpdate,
		Identifier: identifier,
		Date:       date,
	})
}

// LogValidate logs one validation finding
func (l *EventLogger) LogValidate(check string, level EventLevel, detail string) error {
	return l.Log(&Event{
		Level:  level,
		Event:  EventValidate,
		Action: check,
		Reason: detail,
	})
}

// LogScore logs a scored recording. Winners log at info, the rest at debug.
func (l *EventLogger) LogScore(identifier string, score float64, best bool) error {
	level := LevelDebug
	if best {
		level = LevelInfo
	}

	return l.Log(&Event{
		Level:      level,
		Event:      EventScore,
		Identifier: identifier,
		Score:      score,
		Extra: map[string]string{
			"best": fmt.Sprintf("%t", best),
		},
	})
}

// LogDownload logs one downloaded file
func (l *EventLogger) LogDownload(identifier, filename string, bytes int64, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:      level,
		Event:      EventDownload,
		Identifier: identifier,
		Action:     filename,
		Bytes:      bytes,
		Duration:   duration.Milliseconds(),
		Error:      errMsg,
	})
}

// LogPlay logs a playback lifecycle action (play, pause, stall, restart)
func (l *EventLogger) LogPlay(identifier, action string) error {
	level := LevelInfo
	if action == "stall" || action == "restart" {
		level = LevelWarning
	}

	return l.Log(&Event{
		Level:      level,
		Event:      EventPlay,
		Identifier: identifier,
		Action:     action,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, identifier string, err error) error {
	return l.Log(&Event{
		Level:      LevelError,
		Event:      event,
		Identifier: identifier,
		Error:      err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID returns the unique identifier of this run
func (l *EventLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
