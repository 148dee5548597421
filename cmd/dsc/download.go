package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/franz/deadstream/internal/archive"
	"github.com/franz/deadstream/internal/download"
	"github.com/franz/deadstream/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var downloadCmd = &cobra.Command{
	Use:   "download DATE|IDENTIFIER",
	Short: "Download a recording for offline listening",
	Long: `Download every audio file of a recording into
<dest>/<date>/<identifier>/. A DATE picks the highest-scoring recording
of that show; an identifier downloads exactly that recording.

Files already present with the right size are skipped, so an
interrupted download can simply be run again. Transfers are verified
against the archive's metadata (--verify none|size|hash).

Destinations on network storage are detected and the transfer settings
tuned for them; --nas-mode overrides the detection.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().String("dest", "", "destination directory (default: ./downloads)")
	downloadCmd.Flags().String("verify", "", "transfer verification: none, size or hash")
	downloadCmd.Flags().String("format", "", "audio format to fetch (default: best available)")
	downloadCmd.Flags().Bool("inspect", false, "read the embedded tags of finished files")
	downloadCmd.Flags().Int("concurrency", 0, "parallel file transfers")
	downloadCmd.Flags().Bool("nas-mode", false, "force network-storage tuning on or off")
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	dest, _ := cmd.Flags().GetString("dest")
	if dest == "" {
		dest = GetConfigString("download.dest", "downloads")
	}
	verify, _ := cmd.Flags().GetString("verify")
	if verify == "" {
		verify = GetConfigString("download.verify", "size")
	}
	format, _ := cmd.Flags().GetString("format")
	inspect, _ := cmd.Flags().GetBool("inspect")

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = GetConfigInt("download.concurrency", 4)
	}

	// Tune for the destination filesystem. The flag forces NAS mode
	// either way; unset means auto-detect.
	var nasMode *bool
	if cmd.Flags().Changed("nas-mode") {
		v, _ := cmd.Flags().GetBool("nas-mode")
		nasMode = &v
	}

	tuning, err := util.AutoTuneForDest(dest, nasMode, concurrency)
	if err != nil {
		return fmt.Errorf("failed to inspect destination: %w", err)
	}

	client := archive.NewClient()
	defer client.Close()
	attachMetadataCache(client)

	logger := newEventLogger()
	defer logger.Close()

	identifier, err := resolveRecording(ctx, client, args[0])
	if err != nil {
		return err
	}

	dl, err := download.New(&download.Config{
		Client:      client,
		DestDir:     dest,
		Concurrency: tuning.Concurrency,
		VerifyMode:  verify,
		Format:      format,
		Inspect:     inspect,
		BufferSize:  tuning.BufferSize,
		RetryConfig: &util.RetryConfig{
			MaxAttempts: tuning.RetryAttempts,
			InitialWait: time.Second,
			MaxWait:     time.Duration(tuning.TimeoutSec) * time.Second,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	startTime := time.Now()

	result, err := dl.Fetch(ctx, identifier)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	util.InfoLog("")
	util.SuccessLog("=== Download Summary ===")
	util.InfoLog("Recording: %s (%s)", result.Identifier, result.Format)
	util.InfoLog("Location: %s", result.Dir)
	util.InfoLog("Time: %v", time.Since(startTime).Round(time.Second))
	util.InfoLog("Files: %d downloaded (%s), %d already present",
		result.Downloaded, util.FormatBytes(result.BytesWritten), result.Skipped)

	if result.Failed > 0 {
		util.WarnLog("Failed: %d files", result.Failed)
		for _, e := range result.Errors {
			util.ErrorLog("  %v", e)
		}
		return fmt.Errorf("%d of %d files failed", result.Failed, result.Files)
	}

	return nil
}
