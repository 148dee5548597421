package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// readEvents parses every line of a JSONL event log
func readEvents(t *testing.T, path string) []Event {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read event log: %v", err)
	}

	var events []Event
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("failed to parse event line %q: %v", line, err)
		}
		events = append(events, event)
	}

	return events
}

func TestEventLogger(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewEventLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	if logger.RunID() == "" {
		t.Error("expected a run ID")
	}
	if !strings.HasPrefix(filepath.Base(logger.Path()), "events-") {
		t.Errorf("unexpected log filename %s", logger.Path())
	}
	if !strings.HasSuffix(logger.Path(), ".jsonl") {
		t.Errorf("log file should be JSONL: %s", logger.Path())
	}

	logger.LogSearch(3, 100, 420*time.Millisecond, nil)
	logger.LogInsert("gd1977-05-08.sbd.hicks", "1977-05-08")
	logger.LogSkip("gd1977-05-08.aud.wagner", "already present")
	logger.LogScore("gd1977-05-08.sbd.hicks", 97.6, true)
	logger.LogDownload("gd1977-05-08.sbd.hicks", "d1t01.flac", 29876543, 3*time.Second, nil)
	logger.LogPlay("gd1977-05-08.sbd.hicks", "stall")
	logger.LogError(EventFetch, "gd1977-05-09.missing", errors.New("item not found"))

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	events := readEvents(t, logger.Path())
	if len(events) != 7 {
		t.Fatalf("got %d events, expected 7", len(events))
	}

	for i, event := range events {
		if event.RunID != logger.RunID() {
			t.Errorf("event %d run_id = %q, expected %q", i, event.RunID, logger.RunID())
		}
		if event.Timestamp.IsZero() {
			t.Errorf("event %d has no timestamp", i)
		}
	}

	search := events[0]
	if search.Event != EventSearch || search.Page != 3 || search.Duration != 420 {
		t.Errorf("search event fields wrong: %+v", search)
	}

	score := events[3]
	if score.Event != EventScore || score.Score != 97.6 || score.Extra["best"] != "true" {
		t.Errorf("score event fields wrong: %+v", score)
	}

	download := events[4]
	if download.Bytes != 29876543 || download.Duration != 3000 {
		t.Errorf("download event fields wrong: %+v", download)
	}

	stall := events[5]
	if stall.Level != LevelWarning || stall.Action != "stall" {
		t.Errorf("stall event should warn: %+v", stall)
	}

	failure := events[6]
	if failure.Level != LevelError || failure.Error != "item not found" {
		t.Errorf("error event fields wrong: %+v", failure)
	}
}

func TestEventLoggerLevelFiltering(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelInfo)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	logger.LogInsert("gd1972-05-03.sbd", "1972-05-03")   // debug, filtered
	logger.LogFetch("gd1972-05-03.sbd", time.Second, nil) // debug, filtered
	logger.LogUpdate("gd1972-05-03.sbd", "1972-05-03")    // info, kept

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	events := readEvents(t, logger.Path())
	if len(events) != 1 {
		t.Fatalf("got %d events, expected only the info event", len(events))
	}
	if events[0].Event != EventUpdate {
		t.Errorf("surviving event = %s, expected update", events[0].Event)
	}
}

func TestNullLoggerSafe(t *testing.T) {
	logger := NullLogger()

	// Every method must be a safe no-op on the nil logger
	if err := logger.LogSearch(1, 0, 0, nil); err != nil {
		t.Errorf("LogSearch on null logger: %v", err)
	}
	if err := logger.LogInsert("x", "1977-05-08"); err != nil {
		t.Errorf("LogInsert on null logger: %v", err)
	}
	if err := logger.LogError(EventError, "x", errors.New("boom")); err != nil {
		t.Errorf("LogError on null logger: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close on null logger: %v", err)
	}
	if logger.Path() != "" || logger.RunID() != "" {
		t.Error("null logger should report empty path and run ID")
	}
}
