package util

import (
	"fmt"
)

// TransferTuning holds download settings tuned for the destination filesystem
type TransferTuning struct {
	Concurrency   int
	BufferSize    int
	RetryAttempts int
	TimeoutSec    int
	IsNASMode     bool
	DetectedInfo  *NetworkInfo
}

// AutoTuneForDest detects if the download destination is on network storage
// and returns tuned transfer settings. If nasMode is explicitly set
// (true/false via pointer), it overrides auto-detection.
func AutoTuneForDest(destPath string, nasMode *bool, baseConcurrency int) (*TransferTuning, error) {
	cfg := &TransferTuning{
		Concurrency:   baseConcurrency,
		BufferSize:    128 * 1024, // Default 128KB
		RetryAttempts: 3,
		TimeoutSec:    30,
		IsNASMode:     false,
	}

	// Check if NAS mode is explicitly set via flag/config
	if nasMode != nil {
		cfg.IsNASMode = *nasMode
		if cfg.IsNASMode {
			applyNASOptimizations(cfg)
			InfoLog("NAS mode: explicitly enabled via config/flag")
		} else {
			InfoLog("NAS mode: explicitly disabled via config/flag")
		}
		return cfg, nil
	}

	// Auto-detect network filesystem under the destination
	if destPath != "" {
		destInfo, err := DetectNetworkFilesystem(destPath)
		if err != nil {
			WarnLog("Failed to detect filesystem for destination (%s): %v", destPath, err)
		} else if destInfo.IsNetwork {
			cfg.IsNASMode = true
			cfg.DetectedInfo = destInfo
			applyNASOptimizations(cfg)

			InfoLog("Network filesystem detected: destination is on %s (%s)",
				destInfo.Protocol, destInfo.MountPath)
			InfoLog("Auto-tuned: %d workers, %dKB buffers, %d retries, %ds timeout",
				cfg.Concurrency, cfg.BufferSize/1024, cfg.RetryAttempts, cfg.TimeoutSec)
			InfoLog("TIP: Use --nas-mode=false to disable auto-tuning")
		}
	}

	return cfg, nil
}

// applyNASOptimizations applies NAS-specific optimizations to config
func applyNASOptimizations(cfg *TransferTuning) {
	// Reduce concurrency to avoid overwhelming network connections
	// NAS devices often have limited concurrent connection capacity
	if cfg.Concurrency > 4 {
		cfg.Concurrency = 4
	} else if cfg.Concurrency == 0 {
		cfg.Concurrency = 2 // Minimum for NAS
	}

	// Larger buffers reduce round-trips over network
	cfg.BufferSize = 256 * 1024 // 256KB for network

	cfg.RetryAttempts = 5
	cfg.TimeoutSec = 60
}

// FormatTuning returns a human-readable string of the active settings
func (cfg *TransferTuning) FormatTuning() string {
	if !cfg.IsNASMode {
		return "transfer tuning: standard (local filesystem)"
	}

	protocol := "unknown"
	mountPath := "unknown"
	if cfg.DetectedInfo != nil {
		protocol = cfg.DetectedInfo.Protocol
		mountPath = cfg.DetectedInfo.MountPath
	}

	return fmt.Sprintf(`transfer tuning: NAS mode
  Protocol: %s
  Mount: %s
  Concurrency: %d workers
  Buffer: %dKB
  Retries: %d
  Timeout: %ds`,
		protocol, mountPath,
		cfg.Concurrency, cfg.BufferSize/1024,
		cfg.RetryAttempts, cfg.TimeoutSec)
}
