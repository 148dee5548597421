package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/franz/deadstream/internal/archive"
	"github.com/franz/deadstream/internal/player"
	"github.com/franz/deadstream/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var playCmd = &cobra.Command{
	Use:   "play DATE|IDENTIFIER",
	Short: "Stream a show through mpv",
	Long: `Stream a recording from the archive. A DATE (YYYY-MM-DD) picks the
highest-scoring recording of that show; an identifier plays exactly
that recording.

Playback runs through mpv with a stall watchdog: when the stream stops
advancing it is reloaded and resumed from the last position. Ctrl-C
stops playback.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().String("format", "", "preferred audio format (e.g. flac, \"vbr mp3\")")
	playCmd.Flags().Int("volume", 0, "startup volume 1-100")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = viper.GetString("play.format")
	}
	volume, _ := cmd.Flags().GetInt("volume")
	if volume == 0 {
		volume = viper.GetInt("play.volume")
	}

	if _, err := player.LookPath(); err != nil {
		return fmt.Errorf("mpv is required for playback: %w", err)
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

	item, err := client.GetMetadata(ctx, identifier)
	if err != nil {
		return fmt.Errorf("failed to fetch metadata for %s: %w", identifier, err)
	}

	files := archive.BestPlayableFiles(item, format)
	if len(files) == 0 {
		return fmt.Errorf("%s has no streamable audio files", identifier)
	}

	tracks := make([]player.Track, 0, len(files))
	for _, f := range files {
		title := f.Title.String()
		if title == "" {
			title = f.Name
		}
		tracks = append(tracks, player.Track{
			Title:  title,
			URL:    client.DownloadURL(identifier, f.Name),
			Length: time.Duration(f.LengthSeconds() * float64(time.Second)),
		})
	}
	queue := player.NewQueue(tracks)

	util.InfoLog("")
	util.InfoLog("%s", item.Title())
	if venue := item.Venue(); venue != "" {
		util.InfoLog("%s, %s", venue, item.Coverage())
	}
	util.InfoLog("%d tracks (%s)", queue.Len(), files[0].Format)
	util.InfoLog("")

	engine, err := player.NewMPV(ctx)
	if err != nil {
		return fmt.Errorf("failed to start mpv: %w", err)
	}

	p, err := player.New(&player.Config{
		Engine: engine,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer p.Close()

	if volume > 0 {
		if volume > 100 {
			volume = 100
		}
		if err := p.SetVolume(float64(volume) / 100); err != nil {
			util.WarnLog("Failed to set volume: %v", err)
		}
	}

	done := make(chan struct{})
	var doneOnce sync.Once
	finish := func() { doneOnce.Do(func() { close(done) }) }

	playCurrent := func() {
		track, ok := queue.Current()
		if !ok {
			finish()
			return
		}

		length := ""
		if track.Length > 0 {
			length = fmt.Sprintf(" [%s]", util.FormatDuration(track.Length))
		}
		util.InfoLog("▶ %d/%d  %s%s", queue.Index()+1, queue.Len(), track.Title, length)

		if err := p.Play(ctx, identifier, track.URL); err != nil {
			util.ErrorLog("Playback failed: %v", err)
			finish()
		}
	}

	p.OnStateChange(func(s player.State) {
		switch s {
		case player.StateBuffering:
			util.DebugLog("Buffering...")
		case player.StateError:
			util.ErrorLog("Stream gave out after %d restarts", p.Restarts())
			finish()
		}
	})

	p.OnTrackEnd(func() {
		if _, ok := queue.Next(); !ok {
			finish()
			return
		}
		playCurrent()
	})

	playCurrent()

	select {
	case <-ctx.Done():
		util.InfoLog("")
		util.InfoLog("Stopping playback")
	case <-done:
	}

	p.Stop()

	if restarts := p.Restarts(); restarts > 0 {
		util.InfoLog("Stream was restarted %d times", restarts)
	}

	return nil
}
