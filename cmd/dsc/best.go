package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/franz/deadstream/internal/archive"
	"github.com/franz/deadstream/internal/score"
	"github.com/franz/deadstream/internal/store"
	"github.com/franz/deadstream/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var bestCmd = &cobra.Command{
	Use:   "best DATE",
	Short: "Rank the recordings of one show by quality",
	Long: `Fetch every recording of the show on DATE (YYYY-MM-DD) from the
archive, score each by source type, audio format, community rating,
lineage and taper reputation, and print them best first.

The first run fetches metadata for every candidate; later runs answer
from the metadata cache.`,
	Args: cobra.ExactArgs(1),
	RunE: runBest,
}

func init() {
	rootCmd.AddCommand(bestCmd)

	bestCmd.Flags().Bool("json", false, "emit the ranking as JSON")
}

// rankedRecording is the JSON shape of one scored candidate
type rankedRecording struct {
	Rank       int                `json:"rank"`
	Identifier string             `json:"identifier"`
	Total      float64            `json:"total"`
	Components map[string]float64 `json:"components"`
	Venue      string             `json:"venue,omitempty"`
	Source     string             `json:"source,omitempty"`
	AvgRating  float64            `json:"avg_rating,omitempty"`
	NumReviews int                `json:"num_reviews,omitempty"`
	URL        string             `json:"url"`
}

func runBest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	date := args[0]
	asJSON, _ := cmd.Flags().GetBool("json")

	util.SetVerbose(viper.GetBool("verbose"))
	if asJSON {
		// Keep stdout clean for the JSON document
		util.SetQuiet(true)
	} else {
		util.SetQuiet(viper.GetBool("quiet"))
	}

	if !isoDate.MatchString(date) {
		return fmt.Errorf("invalid date %q, want YYYY-MM-DD", date)
	}

	scorer, err := score.New(configWeights())
	if err != nil {
		return fmt.Errorf("bad scoring weights: %w", err)
	}

	client := archive.NewClient()
	defer client.Close()
	attachMetadataCache(client)

	logger := newEventLogger()
	defer logger.Close()

	docs, err := client.Recordings(ctx, date)
	if err != nil {
		return fmt.Errorf("failed to search recordings: %w", err)
	}
	if len(docs) == 0 {
		util.WarnLog("No recordings found for %s", date)
		util.InfoLog("The Dead played roughly 2,300 shows; not every date has one")
		return nil
	}

	util.InfoLog("Scoring %d candidate recordings...", len(docs))

	candidates, docByID := gatherCandidates(ctx, client, docs)

	results := scorer.Rank(candidates)
	for i, r := range results {
		logger.LogScore(r.Identifier, r.Total, i == 0)
	}

	if asJSON {
		return printRankingJSON(results, docByID)
	}

	printRankingTable(date, results, docByID)

	util.InfoLog("")
	util.InfoLog("Next step: dsc play %s", date)

	return nil
}

func printRankingJSON(results []score.Result, docByID map[string]archive.SearchDoc) error {
	ranked := make([]rankedRecording, 0, len(results))
	for i, r := range results {
		doc := docByID[r.Identifier]
		ranked = append(ranked, rankedRecording{
			Rank:       i + 1,
			Identifier: r.Identifier,
			Total:      r.Total,
			Components: r.Breakdown(),
			Venue:      doc.Venue.String(),
			Source:     doc.Source.String(),
			AvgRating:  doc.AvgRating.Float(),
			NumReviews: doc.NumReviews.Int(),
			URL:        archive.DetailsURL(r.Identifier),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(ranked)
}

func printRankingTable(date string, results []score.Result, docByID map[string]archive.SearchDoc) {
	fmt.Println()
	fmt.Printf("Recordings of %s, best first:\n", date)
	fmt.Println()

	for i, r := range results {
		marker := "  "
		if i == 0 {
			marker = "★ "
		}
		fmt.Printf("%s#%-2d %6.2f  %s\n", marker, i+1, r.Total, r.Identifier)
		fmt.Printf("        source %.0f · format %.0f · rating %.1f · lineage %.0f · taper %.0f\n",
			r.Source, r.Format, r.Rating, r.Lineage, r.Taper)

		doc := docByID[r.Identifier]
		if src := doc.Source.String(); src != "" {
			detail := src
			if doc.NumReviews.Int() > 0 {
				detail += fmt.Sprintf(" | %.2f★ (%d reviews)", doc.AvgRating.Float(), doc.NumReviews.Int())
			}
			fmt.Printf("        %s\n", detail)
		}
		fmt.Printf("        %s\n", archive.DetailsURL(r.Identifier))
	}
}

// gatherCandidates turns search docs into scorable recordings. Format,
// lineage and taper live only in the per-item metadata, so each
// candidate costs one metadata fetch on an uncached run.
func gatherCandidates(ctx context.Context, client *archive.Client, docs []archive.SearchDoc) ([]score.Recording, map[string]archive.SearchDoc) {
	candidates := make([]score.Recording, 0, len(docs))
	docByID := make(map[string]archive.SearchDoc, len(docs))

	for _, doc := range docs {
		identifier := doc.Identifier.String()
		if identifier == "" {
			continue
		}
		docByID[identifier] = doc

		rec := score.Recording{
			Identifier: identifier,
			Source:     doc.Source.String(),
			AvgRating:  doc.AvgRating.Float(),
			NumReviews: doc.NumReviews.Int(),
		}

		item, err := client.GetMetadata(ctx, identifier)
		if err != nil {
			util.WarnLog("No metadata for %s, scoring on search fields only: %v", identifier, err)
		} else {
			rec.Format = archive.BestAudioFormat(item)
			rec.Lineage = item.Lineage()
			rec.Taper = item.Taper()
			if src := item.Source(); src != "" {
				rec.Source = src
			}
		}

		candidates = append(candidates, rec)
	}

	return candidates, docByID
}

// resolveRecording turns a date or identifier argument into a concrete
// recording identifier. Dates pick the highest-scoring recording of
// that show.
func resolveRecording(ctx context.Context, client *archive.Client, arg string) (string, error) {
	if !isoDate.MatchString(arg) {
		// Already an identifier
		return arg, nil
	}

	scorer, err := score.New(configWeights())
	if err != nil {
		return "", fmt.Errorf("bad scoring weights: %w", err)
	}

	docs, err := client.Recordings(ctx, arg)
	if err != nil {
		return "", fmt.Errorf("failed to search recordings: %w", err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("no recordings found for %s", arg)
	}

	util.InfoLog("Picking the best of %d recordings...", len(docs))

	candidates, _ := gatherCandidates(ctx, client, docs)
	best, ok := scorer.Best(candidates)
	if !ok {
		return "", fmt.Errorf("no scorable recordings for %s", arg)
	}

	util.InfoLog("Best recording: %s (score %.2f)", best.Identifier, best.Total)

	return best.Identifier, nil
}

// attachMetadataCache wires the SQLite-backed metadata cache into an
// archive client. Failures only cost cache hits, never the command.
func attachMetadataCache(client *archive.Client) {
	if !util.GetCacheEnabled() {
		util.DebugLog("Metadata cache disabled by flag")
		return
	}

	db, err := store.Open(viper.GetString("db"))
	if err != nil {
		util.DebugLog("Metadata cache unavailable: %v", err)
		return
	}

	cache := archive.NewCache(db.DB(), archive.DefaultCacheTTL)
	if err := cache.EnsureSchema(); err != nil {
		util.DebugLog("Metadata cache unavailable: %v", err)
		db.Close()
		return
	}

	client.AttachCache(cache)
	cobra.OnFinalize(func() { db.Close() })
}
