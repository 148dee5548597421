package score

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/franz/deadstream/internal/util"
)

// Weights maps score component names to their share of the total.
// The five keys must be present and sum to 1.0 within tolerance.
type Weights map[string]float64

// Component names, also the keys of a Weights map
const (
	ComponentSource  = "source"
	ComponentFormat  = "format"
	ComponentRating  = "rating"
	ComponentLineage = "lineage"
	ComponentTaper   = "taper"
)

var componentKeys = []string{
	ComponentSource,
	ComponentFormat,
	ComponentRating,
	ComponentLineage,
	ComponentTaper,
}

// DefaultWeights returns the standard component weighting
func DefaultWeights() Weights {
	return Weights{
		ComponentSource:  0.35,
		ComponentFormat:  0.25,
		ComponentRating:  0.20,
		ComponentLineage: 0.10,
		ComponentTaper:   0.10,
	}
}

// Recording holds the attributes of one candidate recording of a show.
// Every field is optional; missing values degrade to neutral defaults.
type Recording struct {
	Identifier string
	Source     string
	Format     string
	Lineage    string
	Taper      string
	AvgRating  float64
	NumReviews int
}

// Result holds the component scores and weighted total for one recording
type Result struct {
	Identifier string
	Source     float64
	Format     float64
	Rating     float64
	Lineage    float64
	Taper      float64
	Total      float64
}

// Breakdown returns the component scores keyed by component name
func (r Result) Breakdown() map[string]float64 {
	return map[string]float64{
		ComponentSource:  r.Source,
		ComponentFormat:  r.Format,
		ComponentRating:  r.Rating,
		ComponentLineage: r.Lineage,
		ComponentTaper:   r.Taper,
	}
}

// Scorer ranks recordings of the same show by weighted attribute scores
type Scorer struct {
	weights Weights
}

// New creates a Scorer after validating the supplied weights.
// Validation is eager: a wrong key set, a weight outside [0,1] or a sum
// outside [0.99, 1.01] fails construction with an error naming the problem.
func New(weights Weights) (*Scorer, error) {
	if err := validateWeights(weights); err != nil {
		return nil, err
	}

	// Copy so later caller mutation cannot skew scoring
	owned := make(Weights, len(weights))
	for k, v := range weights {
		owned[k] = v
	}

	return &Scorer{weights: owned}, nil
}

// validateWeights checks the key set, the per-weight range and the sum
func validateWeights(weights Weights) error {
	var missing []string
	for _, key := range componentKeys {
		if _, ok := weights[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing weight keys: %s",
			util.ErrInvalidConfig, strings.Join(missing, ", "))
	}

	var extra []string
	for key := range weights {
		known := false
		for _, k := range componentKeys {
			if key == k {
				known = true
				break
			}
		}
		if !known {
			extra = append(extra, key)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return fmt.Errorf("%w: unknown weight keys: %s",
			util.ErrInvalidConfig, strings.Join(extra, ", "))
	}

	sum := 0.0
	for _, key := range componentKeys {
		w := weights[key]
		if w < 0 || w > 1 {
			return fmt.Errorf("%w: weight %q is %v, must be in [0, 1]",
				util.ErrInvalidConfig, key, w)
		}
		sum += w
	}

	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("%w: weights sum to %.4f, must be 1.0 within 0.01",
			util.ErrInvalidConfig, sum)
	}

	return nil
}

// Score calculates component scores and the weighted total for one
// recording. Pure function: identical input yields identical output,
// and missing attributes never fail.
func (s *Scorer) Score(rec Recording) Result {
	result := Result{
		Identifier: rec.Identifier,
		Source:     getSourceScore(rec.Source),
		Format:     getFormatScore(rec.Format),
		Rating:     getRatingScore(rec.AvgRating, rec.NumReviews),
		Lineage:    getLineageScore(rec.Lineage),
		Taper:      getTaperScore(rec.Taper),
	}

	total := result.Source*s.weights[ComponentSource] +
		result.Format*s.weights[ComponentFormat] +
		result.Rating*s.weights[ComponentRating] +
		result.Lineage*s.weights[ComponentLineage] +
		result.Taper*s.weights[ComponentTaper]

	result.Total = math.Round(total*100) / 100

	return result
}

// Rank scores all recordings and orders them best first.
// Equal totals break by source component, then rating component,
// then identifier, so the order is deterministic.
func (s *Scorer) Rank(recs []Recording) []Result {
	results := make([]Result, 0, len(recs))
	for _, rec := range recs {
		results = append(results, s.Score(rec))
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Total != results[j].Total {
			return results[i].Total > results[j].Total
		}
		if results[i].Source != results[j].Source {
			return results[i].Source > results[j].Source
		}
		if results[i].Rating != results[j].Rating {
			return results[i].Rating > results[j].Rating
		}
		return results[i].Identifier < results[j].Identifier
	})

	return results
}

// Best returns the top-ranked recording.
// The second return is false when recs is empty.
func (s *Scorer) Best(recs []Recording) (Result, bool) {
	if len(recs) == 0 {
		return Result{}, false
	}
	return s.Rank(recs)[0], true
}

// getSourceScore scores the recording source type.
// Soundboards beat matrixes beat audience tapes.
func getSourceScore(source string) float64 {
	s := strings.ToLower(source)

	switch {
	case strings.Contains(s, "soundboard") || strings.Contains(s, "sbd"):
		return 100
	case strings.Contains(s, "matrix"):
		return 75
	case strings.Contains(s, "audience") || strings.Contains(s, "aud"):
		return 50
	default:
		return 25
	}
}

// getFormatScore scores the audio format. Lossless formats top the
// table; MP3 is bucketed by the bitrate embedded in the format string.
func getFormatScore(format string) float64 {
	f := strings.ToLower(format)

	switch {
	case strings.Contains(f, "flac"):
		return 100
	case strings.Contains(f, "shorten") || strings.Contains(f, "shn"):
		return 95
	case strings.Contains(f, "mp3"):
		switch {
		case strings.Contains(f, "320"):
			return 80
		case strings.Contains(f, "vbr"):
			return 75
		case strings.Contains(f, "256"):
			return 70
		case strings.Contains(f, "192"):
			return 60
		case strings.Contains(f, "160"):
			return 50
		case strings.Contains(f, "128"):
			return 40
		case strings.Contains(f, "64") || strings.Contains(f, "96"):
			return 30
		default:
			return 60
		}
	default:
		return 20
	}
}

// getRatingScore normalizes a 0-5 community rating to 0-100, then blends
// toward a neutral 50 by a confidence factor derived from the review count.
// Few reviews pull the score toward 50; none at all score a flat 50.
func getRatingScore(avgRating float64, numReviews int) float64 {
	if numReviews <= 0 {
		return 50
	}

	base := avgRating / 5.0 * 100.0
	if base < 0 {
		base = 0
	}
	if base > 100 {
		base = 100
	}

	var confidence float64
	switch {
	case numReviews >= 20:
		confidence = 1.00
	case numReviews >= 10:
		confidence = 0.90
	case numReviews >= 5:
		confidence = 0.85
	case numReviews >= 2:
		confidence = 0.75
	default:
		confidence = 0.70
	}

	return 50 + (base-50)*confidence
}

// getLineageScore scores the copy chain. Each ">" in the lineage text
// marks one generation of copying. Master-sourced chains start at 100,
// others at 90, both losing 10 per generation with a floor of 20.
// No lineage information at all is neutral.
func getLineageScore(lineage string) float64 {
	if strings.TrimSpace(lineage) == "" {
		return 50
	}

	generations := strings.Count(lineage, ">")

	var score float64
	if strings.Contains(strings.ToLower(lineage), "master") {
		score = 100 - 10*float64(generations)
	} else {
		score = 90 - 10*float64(generations)
	}

	if score < 20 {
		score = 20
	}

	return score
}

// Known tapers whose recordings the community treats as a quality signal
var taperScores = []struct {
	name  string
	score float64
}{
	{"charlie miller", 100},
	{"betty cantor", 100},
	{"rob eaton", 95},
	{"dan healy", 95},
	{"jerry moore", 90},
	{"bob menke", 90},
}

// getTaperScore scores the taper by reputation. Unknown or blank is neutral.
func getTaperScore(taper string) float64 {
	t := strings.ToLower(strings.TrimSpace(taper))
	if t == "" {
		return 50
	}

	for _, known := range taperScores {
		if strings.Contains(t, known.name) {
			return known.score
		}
	}

	return 50
}
