package main

import (
	"fmt"

	"github.com/franz/deadstream/internal/archive"
	"github.com/franz/deadstream/internal/store"
	"github.com/franz/deadstream/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or migrate the shows database",
	Long: `Create the shows database, or migrate an existing one to the current
schema. Also prepares the metadata response cache table.

Safe to run repeatedly; an up-to-date database is left untouched.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dbPath := viper.GetString("db")

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	util.InfoLog("Initializing database: %s", dbPath)

	// Network shares need gentler pragmas
	opts := &store.OpenOptions{}
	if info, err := util.DetectNetworkFilesystem(dbPath); err == nil && info.IsNetwork {
		util.InfoLog("Database is on a %s mount, applying network pragmas", info.Protocol)
		opts.NetworkOptimized = true
	}

	db, err := store.OpenWithOptions(dbPath, opts)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}

	cache := archive.NewCache(db.DB(), archive.DefaultCacheTTL)
	if err := cache.EnsureSchema(); err != nil {
		return fmt.Errorf("failed to prepare metadata cache: %w", err)
	}

	count, err := db.CountShows()
	if err != nil {
		return fmt.Errorf("failed to count shows: %w", err)
	}

	util.SuccessLog("Database ready (SQLite %s)", store.SQLiteVersion())
	util.InfoLog("  Path: %s", dbPath)
	util.InfoLog("  Shows cataloged: %d", count)

	util.InfoLog("")
	if count == 0 {
		util.InfoLog("Next step: dsc populate --test (or --full for the entire catalog)")
	} else {
		util.InfoLog("Next step: dsc update (fetch recordings added since the last run)")
	}

	return nil
}
