package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/franz/deadstream/internal/archive"
	"github.com/franz/deadstream/internal/player"
	"github.com/franz/deadstream/internal/score"
	"github.com/franz/deadstream/internal/store"
	"github.com/franz/deadstream/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure dsc can operate correctly.

This command checks:
- SQLite availability and database integrity
- archive.org reachability
- mpv (required for streaming playback)
- Download destination and disk space
- Scoring weights in the configuration

Use this command to troubleshoot issues before running dsc operations.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().String("dest", "", "download destination to check (optional)")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== DSC Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{}

	// 1. Check SQLite
	results = append(results, checkSQLite())

	// 2. Check database file
	dbPath := viper.GetString("db")
	results = append(results, checkDatabase(dbPath))

	// 3. Check archive.org reachability
	results = append(results, checkArchiveReachable())

	// 4. Check players
	results = append(results, checkMPV())
	results = append(results, checkVLC())

	// 5. Check scoring weights
	results = append(results, checkWeights())

	// 6. Check download destination
	destPath, _ := cmd.Flags().GetString("dest")
	if destPath == "" {
		destPath = viper.GetString("download.dest")
	}
	if destPath != "" {
		results = append(results, checkDestination(destPath))
		results = append(results, checkDiskSpace(destPath))
	}

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	// Summary
	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running dsc.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! System is ready for dsc operations.")
	}

	return nil
}

// checkSQLite verifies the embedded SQLite build
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies database file accessibility
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				warning: true,
				message: fmt.Sprintf("%s not found (run 'dsc init' to create it)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	count, _ := db.CountShows()
	size := util.FormatBytes(info.Size())

	return checkResult{
		name:    "Database",
		message: fmt.Sprintf("%s (%s, %d shows)", dbPath, size, count),
	}
}

// checkArchiveReachable verifies archive.org answers
func checkArchiveReachable() checkResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, archive.BaseURL, nil)
	if err != nil {
		return checkResult{
			name:    "archive.org",
			error:   true,
			message: err.Error(),
		}
	}
	req.Header.Set("User-Agent", archive.UserAgent)

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return checkResult{
			name:    "archive.org",
			error:   true,
			message: fmt.Sprintf("not reachable: %v", err),
		}
	}
	resp.Body.Close()

	return checkResult{
		name:    "archive.org",
		message: fmt.Sprintf("reachable (%v)", time.Since(start).Round(time.Millisecond)),
	}
}

// checkMPV verifies mpv is on PATH
func checkMPV() checkResult {
	path, err := player.LookPath()
	if err != nil {
		return checkResult{
			name:    "mpv",
			warning: true,
			message: "not found (required only for 'dsc play')",
		}
	}

	return checkResult{
		name:    "mpv",
		message: path,
	}
}

// checkVLC reports whether vlc is around as an alternative player
func checkVLC() checkResult {
	path, err := exec.LookPath("vlc")
	if err != nil {
		return checkResult{
			name:    "vlc (optional)",
			message: "not found (dsc streams through mpv)",
		}
	}

	return checkResult{
		name:    "vlc (optional)",
		message: path,
	}
}

// checkWeights validates the configured scoring weights
func checkWeights() checkResult {
	weights := configWeights()
	if _, err := score.New(weights); err != nil {
		return checkResult{
			name:    "Scoring weights",
			error:   true,
			message: err.Error(),
		}
	}

	return checkResult{
		name: "Scoring weights",
		message: fmt.Sprintf("source %.2f, format %.2f, rating %.2f, lineage %.2f, taper %.2f",
			weights[score.ComponentSource], weights[score.ComponentFormat],
			weights[score.ComponentRating], weights[score.ComponentLineage],
			weights[score.ComponentTaper]),
	}
}

// checkDestination verifies the download destination is writable
func checkDestination(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Download destination",
				message: fmt.Sprintf("%s (will be created on first download)", path),
			}
		}
		return checkResult{
			name:    "Download destination",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Download destination",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	// Check write permission by creating a temp file
	testFile := filepath.Join(path, ".dsc_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{
			name:    "Download destination",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", path, err),
		}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{
		name:    "Download destination",
		message: fmt.Sprintf("%s (writable)", path),
	}
}

// checkDiskSpace verifies available disk space at the destination
func checkDiskSpace(path string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    "Disk space",
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	usedBytes := totalBytes - (stat.Bfree * uint64(stat.Bsize))

	availGB := float64(availBytes) / (1024 * 1024 * 1024)
	usedPercent := float64(usedBytes) / float64(totalBytes) * 100

	// A full FLAC show runs 1-2 GB
	warning := false
	warningMsg := ""
	if availGB < 5 {
		warning = true
		warningMsg = " (low space!)"
	} else if usedPercent > 90 {
		warning = true
		warningMsg = " (>90% used)"
	}

	return checkResult{
		name:    "Disk space",
		warning: warning,
		message: fmt.Sprintf("%.1f GB available%s", availGB, warningMsg),
	}
}
