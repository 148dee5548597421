package populate

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/franz/deadstream/internal/archive"
	"github.com/franz/deadstream/internal/meta"
	"github.com/franz/deadstream/internal/report"
	"github.com/franz/deadstream/internal/store"
	"github.com/franz/deadstream/internal/util"
	"github.com/schollz/progressbar/v3"
)

const (
	// defaultPageSize is how many docs one search request fetches
	defaultPageSize = 100

	// batchSize is how many shows the writer inserts per transaction
	batchSize = 500
)

// Config holds populate configuration
type Config struct {
	Store    *store.Store
	Client   *archive.Client
	Logger   *report.EventLogger
	Query    string // search query, defaults to the full collection
	PageSize int
	MaxPages int  // 0 fetches every page
	Resume   bool // continue from saved progress
}

// Result represents a populate run
type Result struct {
	PagesFetched int
	DocsSeen     int
	Inserted     int
	Skipped      int
	Malformed    int
	Errors       []error
}

// Run pages through the archive search index and fills the local show
// catalog. Inserts are batched through a writer goroutine; per-page
// progress is saved so an interrupted run can resume.
func Run(ctx context.Context, cfg *Config) (*Result, error) {
	if cfg.Store == nil || cfg.Client == nil {
		return nil, fmt.Errorf("populate needs a store and a client")
	}
	if cfg.Query == "" {
		cfg.Query = archive.GratefulDeadQuery
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}

	util.InfoLog("Populating show catalog from archive.org...")

	result := &Result{
		Errors: make([]error, 0),
	}

	startPage := 1
	if cfg.Resume {
		progress, err := cfg.Store.GetPopulateProgress()
		if err != nil {
			util.WarnLog("Could not read populate progress: %v", err)
		} else if progress != nil {
			if progress.Query == cfg.Query {
				startPage = progress.LastPage + 1
				util.InfoLog("Resuming populate at page %d of %d", startPage, progress.TotalPages)
			} else {
				util.WarnLog("Saved progress used a different query, starting over")
				if err := cfg.Store.ClearPopulateProgress(); err != nil {
					util.WarnLog("Could not clear stale progress: %v", err)
				}
			}
		}
	}

	// Counters shared with the writer and progress goroutines
	var docsSeen atomic.Int64
	var inserted atomic.Int64
	var skipped atomic.Int64
	var malformed atomic.Int64

	// Channel for parsed shows awaiting insert
	newShows := make(chan *store.Show, 1000)

	// Progress bar when stdout is a terminal
	isTTY := util.IsTerminal(os.Stdout.Fd())
	var bar *progressbar.ProgressBar
	if isTTY && !util.IsQuiet() {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Populating"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("shows"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-progressCtx.Done():
				return
			case <-ticker.C:
				seen := docsSeen.Load()
				if seen == 0 {
					continue
				}
				if bar != nil {
					bar.Describe(fmt.Sprintf("Populating | %d new | %d cached",
						inserted.Load(), skipped.Load()))
					bar.Set64(seen)
				} else {
					util.InfoLog("Progress: %d shows seen (new: %d, cached: %d)",
						seen, inserted.Load(), skipped.Load())
				}
			}
		}
	}()

	// Batch writer goroutine. Owns writerErrs until Wait returns.
	var writerWg sync.WaitGroup
	var writerErrs []error
	writerWg.Add(1)
	go func() {
		defer writerWg.Done()
		batch := make([]*store.Show, 0, batchSize)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		flush := func() {
			if len(batch) == 0 {
				return
			}
			n, err := cfg.Store.InsertShows(batch)
			if err != nil {
				util.ErrorLog("Failed to batch insert shows: %v", err)
				writerErrs = append(writerErrs, err)
			} else {
				inserted.Add(int64(n))
				skipped.Add(int64(len(batch) - n))
			}
			batch = batch[:0]
		}

		for {
			select {
			case show, ok := <-newShows:
				if !ok {
					flush()
					return
				}
				batch = append(batch, show)
				if len(batch) >= batchSize {
					flush()
				}
			case <-ticker.C:
				flush()
			}
		}
	}()

	totalPages := 0
	completed := false
	page := startPage

fetchLoop:
	for {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, err)
			break
		}

		fetchStart := time.Now()
		resp, err := util.RetryWithBackoff(util.HTTPRetryConfig(), func() (*archive.SearchResponse, error) {
			return cfg.Client.SearchShows(ctx, cfg.Query, page, cfg.PageSize)
		}, fmt.Sprintf("search page %d", page))
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
			totalPages = (numFound + cfg.PageSize - 1) / cfg.PageSize
			util.InfoLog("Catalog holds %d recordings across %d pages", numFound, totalPages)

			if bar != nil {
				expected := int64(numFound) - int64(startPage-1)*int64(cfg.PageSize)
				if cfg.MaxPages > 0 {
					if capDocs := int64(cfg.MaxPages) * int64(cfg.PageSize); capDocs < expected {
						expected = capDocs
					}
				}
				if expected > 0 {
					bar.ChangeMax64(expected)
				}
			}
		}

		result.PagesFetched++

		for _, doc := range docs {
			docsSeen.Add(1)

			show := meta.ShowFromDoc(doc)
			if show == nil {
				malformed.Add(1)
				cfg.Logger.LogSkip(doc.Identifier.String(), "unparseable document")
				continue
			}

			select {
			case newShows <- show:
			case <-ctx.Done():
				result.Errors = append(result.Errors, ctx.Err())
				break fetchLoop
			}
		}

		if err := cfg.Store.SavePopulateProgress(page, totalPages, int(inserted.Load()), cfg.Query); err != nil {
			util.WarnLog("Could not save populate progress: %v", err)
		}

		if page >= totalPages || len(docs) == 0 {
			completed = true
			break
		}
		if cfg.MaxPages > 0 && result.PagesFetched >= cfg.MaxPages {
			break
		}
		page++
	}

	// Drain the pipeline before reading final counts
	close(newShows)
	writerWg.Wait()
	cancelProgress()

	if bar != nil {
		bar.Finish()
	}

	result.Errors = append(result.Errors, writerErrs...)
	result.DocsSeen = int(docsSeen.Load())
	result.Inserted = int(inserted.Load())
	result.Skipped = int(skipped.Load())
	result.Malformed = int(malformed.Load())

	if completed {
		if err := cfg.Store.ClearPopulateProgress(); err != nil {
			util.WarnLog("Could not clear populate progress: %v", err)
		}
		util.SuccessLog("Populate complete: %d new shows, %d already present, %d malformed",
			result.Inserted, result.Skipped, result.Malformed)
	} else {
		util.InfoLog("Populate stopped after page %d; run with --resume to continue", page)
	}

	return result, nil
}
