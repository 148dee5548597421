package populate

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/deadstream/internal/archive"
	"github.com/franz/deadstream/internal/meta"
	"github.com/franz/deadstream/internal/report"
	"github.com/franz/deadstream/internal/store"
	"github.com/franz/deadstream/internal/util"
)

// updatePageSize is smaller than a full populate page since incremental
// runs usually find only a handful of new items
const updatePageSize = 50

// UpdateConfig holds incremental update configuration
type UpdateConfig struct {
	Store  *store.Store
	Client *archive.Client
	Logger *report.EventLogger
	Since  string // YYYY-MM-DD, defaults to one month back
	DryRun bool
}

// Update fetches items published to the archive since a cutoff date and
// inserts the ones the catalog does not have yet. Updates are row at a
// time so each new show can be reported as it lands.
func Update(ctx context.Context, cfg *UpdateConfig) (*Result, error) {
	if cfg.Store == nil || cfg.Client == nil {
		return nil, fmt.Errorf("update needs a store and a client")
	}

	since := cfg.Since
	if since == "" {
		since = time.Now().AddDate(0, -1, 0).Format("2006-01-02")
		util.InfoLog("No cutoff given, checking items published since %s", since)
	} else {
		util.InfoLog("Checking items published since %s", since)
	}
	query := archive.BuildQuery(0, 0, since)

	result := &Result{
		Errors: make([]error, 0),
	}

	totalPages := 0
	page := 1

	for {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, err)
			break
		}

		fetchStart := time.Now()
		resp, err := util.RetryWithBackoff(util.HTTPRetryConfig(), func() (*archive.SearchResponse, error) {
			return cfg.Client.SearchShows(ctx, query, page, updatePageSize)
		}, fmt.Sprintf("update page %d", page))
		elapsed := time.Since(fetchStart)

		if err != nil {
			cfg.Logger.LogSearch(page, 0, elapsed, err)
			result.Errors = append(result.Errors, fmt.Errorf("page %d: %w", page, err))
			break
		}

		docs := resp.Response.Docs
		cfg.Logger.LogSearch(page, len(docs), elapsed, nil)

		if totalPages == 0 {
			numFound := resp.Response.NumFound
			totalPages = (numFound + updatePageSize - 1) / updatePageSize
			if numFound > 0 {
				util.InfoLog("%d recently published items to check", numFound)
			}
		}

		result.PagesFetched++

		for _, doc := range docs {
			result.DocsSeen++

			show := meta.ShowFromDoc(doc)
			if show == nil {
				result.Malformed++
				cfg.Logger.LogSkip(doc.Identifier.String(), "unparseable document")
				continue
			}

			if cfg.DryRun {
				existing, err := cfg.Store.GetShow(show.Identifier)
				if err != nil {
					result.Errors = append(result.Errors, fmt.Errorf("lookup %s: %w", show.Identifier, err))
					continue
				}
				if existing == nil {
					result.Inserted++
					util.InfoLog("Would add %s (%s)", show.Identifier, show.Date)
				} else {
					result.Skipped++
				}
				continue
			}

			isNew, err := cfg.Store.InsertShow(show)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("insert %s: %w", show.Identifier, err))
				continue
			}
			if isNew {
				result.Inserted++
				cfg.Logger.LogInsert(show.Identifier, show.Date)
				util.InfoLog("Added %s (%s)", show.Identifier, show.Date)
			} else {
				result.Skipped++
				cfg.Logger.LogSkip(show.Identifier, "already present")
			}
		}

		if page >= totalPages || len(docs) == 0 {
			break
		}
		page++
	}

	if cfg.DryRun {
		util.SuccessLog("Update dry-run: %d would be added, %d already present",
			result.Inserted, result.Skipped)
	} else {
		util.SuccessLog("Update complete: %d new shows, %d already present",
			result.Inserted, result.Skipped)
	}

	return result, nil
}
