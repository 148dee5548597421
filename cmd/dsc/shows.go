package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/franz/deadstream/internal/store"
	"github.com/franz/deadstream/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var showsCmd = &cobra.Command{
	Use:   "shows",
	Short: "Query the local show catalog",
	Long: `List cataloged recordings by date, year, venue, state or rating.

Examples:
  dsc shows --date 05-08        every May 8th across all years
  dsc shows --year 1977         the year of the legendary spring tour
  dsc shows --venue "Fillmore"  venue name substring match
  dsc shows --state NY          two-letter state code
  dsc shows --top 25            highest rated, at least 5 reviews`,
	RunE: runShows,
}

func init() {
	rootCmd.AddCommand(showsCmd)

	showsCmd.Flags().String("date", "", "month and day MM-DD, matched across all years")
	showsCmd.Flags().Int("year", 0, "calendar year")
	showsCmd.Flags().String("venue", "", "venue name substring")
	showsCmd.Flags().String("state", "", "two-letter state code")
	showsCmd.Flags().Int("top", 0, "N highest-rated recordings")
	showsCmd.Flags().Int("min-reviews", 5, "review floor for --top")
}

func runShows(cmd *cobra.Command, args []string) error {
	dateArg, _ := cmd.Flags().GetString("date")
	year, _ := cmd.Flags().GetInt("year")
	venue, _ := cmd.Flags().GetString("venue")
	state, _ := cmd.Flags().GetString("state")
	top, _ := cmd.Flags().GetInt("top")
	minReviews, _ := cmd.Flags().GetInt("min-reviews")

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	selectors := 0
	for _, set := range []bool{dateArg != "", year != 0, venue != "", state != "", top != 0} {
		if set {
			selectors++
		}
	}
	if selectors != 1 {
		return fmt.Errorf("choose exactly one of --date, --year, --venue, --state or --top")
	}

	dbPath := viper.GetString("db")
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var shows []*store.Show
	var what string

	switch {
	case dateArg != "":
		month, day, err := parseMonthDay(dateArg)
		if err != nil {
			return err
		}
		shows, err = db.ShowsOnDate(month, day)
		if err != nil {
			return fmt.Errorf("failed to query shows: %w", err)
		}
		what = fmt.Sprintf("shows on %02d-%02d", month, day)
	case year != 0:
		shows, err = db.ShowsByYear(year)
		if err != nil {
			return fmt.Errorf("failed to query shows: %w", err)
		}
		what = fmt.Sprintf("shows in %d", year)
	case venue != "":
		shows, err = db.ShowsByVenue(venue)
		if err != nil {
			return fmt.Errorf("failed to query shows: %w", err)
		}
		what = fmt.Sprintf("shows at venues matching %q", venue)
	case state != "":
		shows, err = db.ShowsByState(state)
		if err != nil {
			return fmt.Errorf("failed to query shows: %w", err)
		}
		what = fmt.Sprintf("shows in %s", strings.ToUpper(state))
	default:
		shows, err = db.TopRated(top, minReviews)
		if err != nil {
			return fmt.Errorf("failed to query shows: %w", err)
		}
		what = fmt.Sprintf("top rated (>= %d reviews)", minReviews)
	}

	if len(shows) == 0 {
		util.WarnLog("No %s in the catalog", what)
		util.InfoLog("The catalog fills with: dsc populate --full")
		return nil
	}

	for _, show := range shows {
		fmt.Println(formatShowLine(show))
	}

	fmt.Println()
	util.InfoLog("%d %s", len(shows), what)
	util.InfoLog("Stream one with: dsc play <date or identifier>")

	return nil
}

// parseMonthDay parses MM-DD
func parseMonthDay(arg string) (int, int, error) {
	parts := strings.SplitN(arg, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid date %q, want MM-DD", arg)
	}

	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, fmt.Errorf("invalid date %q, want MM-DD", arg)
	}

	return month, day, nil
}

// formatShowLine renders one catalog row for terminal listing
func formatShowLine(show *store.Show) string {
	rating := "     -"
	if show.NumReviews > 0 {
		rating = fmt.Sprintf("%.2f★", show.AvgRating)
	}

	place := show.Venue
	if show.City != "" {
		place += ", " + show.City
	}
	if show.State != "" {
		place += ", " + show.State
	}
	if len(place) > 44 {
		place = place[:41] + "..."
	}

	source := show.SourceType
	if source == "" {
		source = "unknown"
	}

	return fmt.Sprintf("%-10s  %6s %4d  %-44s  %-10s  %s",
		show.Date, rating, show.NumReviews, place, source, show.Identifier)
}
