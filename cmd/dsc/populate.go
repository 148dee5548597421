package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/franz/deadstream/internal/archive"
	"github.com/franz/deadstream/internal/populate"
	"github.com/franz/deadstream/internal/report"
	"github.com/franz/deadstream/internal/store"
	"github.com/franz/deadstream/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Fill the catalog from the archive.org search index",
	Long: `Page through the Internet Archive's Grateful Dead collection and
catalog every recording in the local database.

Choose a scope:
  --test        two pages, enough to try the tool out
  --full        the entire collection (roughly 18,000 recordings)
  --years A-B   only shows from years A through B

Progress is saved per page. An interrupted run continues where it left
off when started again with --resume and the same scope.`,
	RunE: runPopulate,
}

func init() {
	rootCmd.AddCommand(populateCmd)

	populateCmd.Flags().Bool("test", false, "fetch two pages only")
	populateCmd.Flags().Bool("full", false, "fetch the entire collection")
	populateCmd.Flags().String("years", "", "fetch a year range, e.g. 1972-1977")
	populateCmd.Flags().Bool("resume", false, "continue a previously interrupted run")
	populateCmd.Flags().Int("page-size", 0, "search results per page")
}

func runPopulate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	testMode, _ := cmd.Flags().GetBool("test")
	fullMode, _ := cmd.Flags().GetBool("full")
	yearsArg, _ := cmd.Flags().GetString("years")
	resume, _ := cmd.Flags().GetBool("resume")

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	modes := 0
	for _, set := range []bool{testMode, fullMode, yearsArg != ""} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return fmt.Errorf("choose one of --test, --full or --years")
	}
	if modes == 0 && !resume {
		return fmt.Errorf("choose a scope: --test (two pages), --full (entire collection) or --years A-B")
	}

	query := archive.GratefulDeadQuery
	maxPages := 0

	switch {
	case testMode:
		maxPages = 2
	case yearsArg != "":
		yearFrom, yearTo, err := parseYearRange(yearsArg)
		if err != nil {
			return err
		}
		query = archive.BuildQuery(yearFrom, yearTo, "")
	}

	dbPath := viper.GetString("db")
	util.InfoLog("Opening database: %s", dbPath)

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if !resume {
		if interrupted, err := db.HasInProgressPopulate(); err == nil && interrupted {
			util.WarnLog("A previous populate run was interrupted; add --resume to continue it")
		}
	}

	logger := newEventLogger()
	defer logger.Close()

	client := archive.NewClient()
	defer client.Close()

	pageSize, _ := cmd.Flags().GetInt("page-size")
	if pageSize <= 0 {
		pageSize = GetConfigInt("populate.page_size", 0)
	}

	startTime := time.Now()

	result, err := populate.Run(ctx, &populate.Config{
		Store:    db,
		Client:   client,
		Logger:   logger,
		Query:    query,
		PageSize: pageSize,
		MaxPages: maxPages,
		Resume:   resume,
	})
	if err != nil {
		return fmt.Errorf("populate failed: %w", err)
	}

	util.InfoLog("")
	util.SuccessLog("=== Populate Summary ===")
	util.InfoLog("Time: %v", time.Since(startTime).Round(time.Millisecond))
	util.InfoLog("Pages fetched: %d", result.PagesFetched)
	util.InfoLog("Recordings seen: %d", result.DocsSeen)
	util.InfoLog("  New: %d", result.Inserted)
	util.InfoLog("  Already cataloged: %d", result.Skipped)
	if result.Malformed > 0 {
		util.WarnLog("  Malformed: %d", result.Malformed)
	}
	if len(result.Errors) > 0 {
		util.WarnLog("  Errors: %d", len(result.Errors))
	}

	total, _ := db.CountShows()
	util.InfoLog("Catalog now holds %d recordings", total)

	util.InfoLog("")
	util.InfoLog("Next step: dsc validate --quick")

	return nil
}

// parseYearRange parses "A-B" into a pair of years. A single year "A"
// means the range A-A.
func parseYearRange(arg string) (int, int, error) {
	parts := strings.SplitN(arg, "-", 2)

	from, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year range %q, want e.g. 1972-1977", arg)
	}

	to := from
	if len(parts) == 2 {
		to, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid year range %q, want e.g. 1972-1977", arg)
		}
	}

	if from < 1900 || to > 2100 || from > to {
		return 0, 0, fmt.Errorf("year range %d-%d is out of order or implausible", from, to)
	}

	return from, to, nil
}

// newEventLogger builds the JSONL event logger, degrading to a null
// logger when the artifacts directory cannot be written
func newEventLogger() *report.EventLogger {
	logLevel := report.LevelInfo
	if viper.GetBool("quiet") {
		logLevel = report.LevelWarning
	} else if viper.GetBool("verbose") {
		logLevel = report.LevelDebug
	}

	logger, err := report.NewEventLogger("artifacts", logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}

	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}
	return logger
}
