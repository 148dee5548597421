package main

import (
	"fmt"
	"time"

	"github.com/franz/deadstream/internal/archive"
	"github.com/franz/deadstream/internal/store"
	"github.com/franz/deadstream/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the metadata response cache",
	Long: `Inspect or clear the cached archive.org metadata responses.

The cache lives in the shows database and answers repeat 'best', 'play'
and 'download' runs without hitting the archive. Entries expire after
24 hours on their own; clearing is only needed to force fresh metadata.`,
	RunE: runCache,
}

func init() {
	rootCmd.AddCommand(cacheCmd)

	cacheCmd.Flags().Bool("stats", false, "show cache statistics (default)")
	cacheCmd.Flags().Bool("clear", false, "drop every cached response")
	cacheCmd.Flags().Duration("clear-older-than", 0, "drop entries older than a duration, e.g. 48h")
}

func runCache(cmd *cobra.Command, args []string) error {
	clearAll, _ := cmd.Flags().GetBool("clear")
	olderThan, _ := cmd.Flags().GetDuration("clear-older-than")

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	if clearAll && olderThan > 0 {
		return fmt.Errorf("choose one of --clear or --clear-older-than")
	}

	dbPath := viper.GetString("db")
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	cache := archive.NewCache(db.DB(), archive.DefaultCacheTTL)
	if err := cache.EnsureSchema(); err != nil {
		return fmt.Errorf("failed to prepare cache table: %w", err)
	}

	switch {
	case clearAll:
		if err := cache.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		util.SuccessLog("Metadata cache cleared")

	case olderThan > 0:
		removed, err := cache.ClearOldEntries(olderThan)
		if err != nil {
			return fmt.Errorf("failed to clear old entries: %w", err)
		}
		util.SuccessLog("Removed %d entries older than %v", removed, olderThan)

	default:
		entries, hits, err := cache.Stats()
		if err != nil {
			return fmt.Errorf("failed to read cache stats: %w", err)
		}

		util.InfoLog("=== Metadata Cache ===")
		util.InfoLog("Database: %s", dbPath)
		util.InfoLog("Entries: %d", entries)
		util.InfoLog("Cache hits served: %d", hits)
		util.InfoLog("Entry lifetime: %v", archive.DefaultCacheTTL)

		if entries > 0 {
			saved := time.Duration(hits) * archive.RateLimit
			util.InfoLog("Archive requests avoided: %d (roughly %v of rate-limit waiting)",
				hits, saved.Round(time.Second))
		}
	}

	return nil
}
