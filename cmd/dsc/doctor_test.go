package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/deadstream/internal/store"
	"github.com/spf13/viper"
)

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	if result.error {
		t.Errorf("SQLite check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected version information in message")
	}
}

func TestCheckDatabase_NonExistent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nonexistent.db")

	result := checkDatabase(dbPath)

	// Missing database is only a warning; 'dsc init' creates it
	if result.error {
		t.Errorf("non-existent database check should not error: %s", result.message)
	}
	if !result.warning {
		t.Error("expected warning pointing at dsc init")
	}
}

func TestCheckDatabase_Existing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	show := &store.Show{
		Identifier: "gd1977-05-08.sbd.hicks.4982.sbeok.shnf",
		Date:       "1977-05-08",
		Venue:      "Barton Hall, Cornell University",
	}
	if _, err := db.InsertShow(show); err != nil {
		t.Fatalf("failed to insert test show: %v", err)
	}
	db.Close()

	result := checkDatabase(dbPath)

	if result.error {
		t.Errorf("database check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected message with database info")
	}
}

func TestCheckDatabase_Empty(t *testing.T) {
	result := checkDatabase("")

	if !result.warning {
		t.Error("expected warning for empty database path")
	}
}

func TestCheckMPV(t *testing.T) {
	result := checkMPV()

	// mpv is only needed for playback, absence is a warning at most
	if result.error {
		t.Errorf("mpv check should not error: %s", result.message)
	}
}

func TestCheckVLC(t *testing.T) {
	result := checkVLC()

	if result.error || result.warning {
		t.Errorf("vlc check is informational only, got error=%v warning=%v", result.error, result.warning)
	}
}

func TestCheckWeights_Default(t *testing.T) {
	result := checkWeights()

	if result.error {
		t.Errorf("default weights should validate: %s", result.message)
	}
}

func TestCheckWeights_BadSum(t *testing.T) {
	viper.Set("weights.source", 0.9)
	t.Cleanup(func() { viper.Set("weights.source", 0.35) })

	result := checkWeights()

	if !result.error {
		t.Error("expected error for weights summing past 1.0")
	}
}

func TestCheckDestination_Valid(t *testing.T) {
	dir := t.TempDir()

	result := checkDestination(dir)

	if result.error {
		t.Errorf("destination check failed: %s", result.message)
	}
}

func TestCheckDestination_NonExistent(t *testing.T) {
	result := checkDestination(filepath.Join(t.TempDir(), "not-yet"))

	// Created on first download, so absence is fine
	if result.error || result.warning {
		t.Errorf("missing destination should pass, got error=%v warning=%v", result.error, result.warning)
	}
}

func TestCheckDestination_File(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "file.txt")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := checkDestination(filePath)

	if !result.error {
		t.Error("expected error when path is a file, not a directory")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()

	result := checkDiskSpace(dir)

	if result.error {
		t.Errorf("disk space check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected message with disk space info")
	}
}

func TestCheckDiskSpace_NonExistent(t *testing.T) {
	result := checkDiskSpace("/nonexistent/path")

	if !result.warning {
		t.Error("expected warning for non-existent path")
	}
}
