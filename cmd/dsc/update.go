package main

import (
	"context"
	"fmt"
	"regexp"

	"github.com/franz/deadstream/internal/archive"
	"github.com/franz/deadstream/internal/populate"
	"github.com/franz/deadstream/internal/store"
	"github.com/franz/deadstream/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Catalog recordings published since the last run",
	Long: `Check the archive for recordings published after a cutoff date and
add the ones missing from the catalog.

Without --since the last month is checked. Use --dry-run to see what
would be added without writing anything.`,
	RunE: runUpdate,
}

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().String("since", "", "cutoff date YYYY-MM-DD (default: one month back)")
	updateCmd.Flags().Bool("dry-run", false, "report additions without writing them")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	since, _ := cmd.Flags().GetString("since")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	if since != "" && !isoDate.MatchString(since) {
		return fmt.Errorf("invalid --since date %q, want YYYY-MM-DD", since)
	}

	dbPath := viper.GetString("db")
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := newEventLogger()
	defer logger.Close()

	client := archive.NewClient()
	defer client.Close()

	result, err := populate.Update(ctx, &populate.UpdateConfig{
		Store:  db,
		Client: client,
		Logger: logger,
		Since:  since,
		DryRun: dryRun,
	})
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	if dryRun && result.Inserted > 0 {
		util.InfoLog("")
		util.InfoLog("Run again without --dry-run to add these recordings")
	}

	return nil
}
