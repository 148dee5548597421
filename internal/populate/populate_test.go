package populate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/franz/deadstream/internal/archive"
	"github.com/franz/deadstream/internal/store"
)

// searchDoc builds one well-formed search result document
func searchDoc(i int) map[string]any {
	day := i%27 + 1
	return map[string]any{
		"identifier":  fmt.Sprintf("gd1977-05-%02d.sbd.test%d.flac16", day, i),
		"date":        fmt.Sprintf("1977-05-%02dT00:00:00Z", day),
		"title":       fmt.Sprintf("Grateful Dead Live at Barton Hall on 1977-05-%02d", day),
		"venue":       "Barton Hall",
		"coverage":    "Ithaca, NY",
		"source":      "SBD > MR > FLAC",
		"avg_rating":  "4.5",
		"num_reviews": 10,
	}
}

func docPage(from, to int) []map[string]any {
	docs := make([]map[string]any, 0, to-from)
	for i := from; i < to; i++ {
		docs = append(docs, searchDoc(i))
	}
	return docs
}

// searchServer serves canned search pages keyed by the page parameter.
// Page numbers outside the slice come back empty.
func searchServer(t *testing.T, pages [][]map[string]any, numFound int) (*archive.Client, *atomic.Int32) {
	t.Helper()

	var requests atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/advancedsearch.php", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		docs := []map[string]any{}
		if page-1 < len(pages) {
			docs = pages[page-1]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{
				"numFound": numFound,
				"start":    (page - 1) * 100,
				"docs":     docs,
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := archive.NewClientWithBaseURL(srv.URL)
	t.Cleanup(func() { client.Close() })

	return client, &requests
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "shows.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunFetchesAllPages(t *testing.T) {
	pages := [][]map[string]any{
		docPage(0, 100),
		docPage(100, 120),
	}
	client, requests := searchServer(t, pages, 120)
	db := openTestStore(t)

	result, err := Run(context.Background(), &Config{
		Store:    db,
		Client:   client,
		PageSize: 100,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Errors) != 0 {
		t.Fatalf("Run() errors = %v", result.Errors)
	}
	if result.PagesFetched != 2 {
		t.Errorf("PagesFetched = %d, want 2", result.PagesFetched)
	}
	if result.DocsSeen != 120 {
		t.Errorf("DocsSeen = %d, want 120", result.DocsSeen)
	}
	if result.Inserted != 120 {
		t.Errorf("Inserted = %d, want 120", result.Inserted)
	}
	if result.Skipped != 0 || result.Malformed != 0 {
		t.Errorf("Skipped = %d, Malformed = %d, want 0, 0", result.Skipped, result.Malformed)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("server saw %d requests, want 2", got)
	}

	count, err := db.CountShows()
	if err != nil {
		t.Fatalf("CountShows() error = %v", err)
	}
	if count != 120 {
		t.Errorf("CountShows() = %d, want 120", count)
	}

	// A finished run leaves no saved progress behind
	progress, err := db.GetPopulateProgress()
	if err != nil {
		t.Fatalf("GetPopulateProgress() error = %v", err)
	}
	if progress != nil {
		t.Errorf("progress still saved after completion: %+v", progress)
	}
}

func TestRunSecondPassSkipsExisting(t *testing.T) {
	pages := [][]map[string]any{docPage(0, 20)}
	client, _ := searchServer(t, pages, 20)
	db := openTestStore(t)

	first, err := Run(context.Background(), &Config{Store: db, Client: client})
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if first.Inserted != 20 {
		t.Fatalf("first Inserted = %d, want 20", first.Inserted)
	}

	second, err := Run(context.Background(), &Config{Store: db, Client: client})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second.Inserted != 0 {
		t.Errorf("second Inserted = %d, want 0", second.Inserted)
	}
	if second.Skipped != 20 {
		t.Errorf("second Skipped = %d, want 20", second.Skipped)
	}

	count, _ := db.CountShows()
	if count != 20 {
		t.Errorf("CountShows() = %d, want 20", count)
	}
}

func TestRunResumesFromSavedPage(t *testing.T) {
	pages := [][]map[string]any{
		docPage(0, 100),
		docPage(100, 120),
	}
	client, _ := searchServer(t, pages, 120)
	db := openTestStore(t)

	if err := db.SavePopulateProgress(1, 2, 100, archive.GratefulDeadQuery); err != nil {
		t.Fatalf("SavePopulateProgress() error = %v", err)
	}

	result, err := Run(context.Background(), &Config{
		Store:    db,
		Client:   client,
		PageSize: 100,
		Resume:   true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.PagesFetched != 1 {
		t.Errorf("PagesFetched = %d, want 1", result.PagesFetched)
	}
	if result.DocsSeen != 20 {
		t.Errorf("DocsSeen = %d, want 20", result.DocsSeen)
	}
	if result.Inserted != 20 {
		t.Errorf("Inserted = %d, want 20", result.Inserted)
	}

	progress, err := db.GetPopulateProgress()
	if err != nil {
		t.Fatalf("GetPopulateProgress() error = %v", err)
	}
	if progress != nil {
		t.Errorf("progress still saved after completion: %+v", progress)
	}
}

func TestRunResumeIgnoresDifferentQuery(t *testing.T) {
	pages := [][]map[string]any{docPage(0, 10)}
	client, _ := searchServer(t, pages, 10)
	db := openTestStore(t)

	if err := db.SavePopulateProgress(5, 9, 480, "collection:SomethingElse"); err != nil {
		t.Fatalf("SavePopulateProgress() error = %v", err)
	}

	result, err := Run(context.Background(), &Config{
		Store:  db,
		Client: client,
		Resume: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Mismatched query means the run starts over at page 1
	if result.DocsSeen != 10 {
		t.Errorf("DocsSeen = %d, want 10", result.DocsSeen)
	}
	if result.Inserted != 10 {
		t.Errorf("Inserted = %d, want 10", result.Inserted)
	}
}

func TestRunMaxPagesLeavesProgress(t *testing.T) {
	pages := [][]map[string]any{
		docPage(0, 100),
		docPage(100, 120),
	}
	client, requests := searchServer(t, pages, 120)
	db := openTestStore(t)

	result, err := Run(context.Background(), &Config{
		Store:    db,
		Client:   client,
		PageSize: 100,
		MaxPages: 1,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.PagesFetched != 1 {
		t.Errorf("PagesFetched = %d, want 1", result.PagesFetched)
	}
	if result.DocsSeen != 100 {
		t.Errorf("DocsSeen = %d, want 100", result.DocsSeen)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}

	inProgress, err := db.HasInProgressPopulate()
	if err != nil {
		t.Fatalf("HasInProgressPopulate() error = %v", err)
	}
	if !inProgress {
		t.Error("expected saved progress after a capped run")
	}

	progress, err := db.GetPopulateProgress()
	if err != nil {
		t.Fatalf("GetPopulateProgress() error = %v", err)
	}
	if progress == nil || progress.LastPage != 1 {
		t.Errorf("progress = %+v, want LastPage 1", progress)
	}
}

func TestRunCountsMalformedDocs(t *testing.T) {
	pages := [][]map[string]any{
		{
			searchDoc(0),
			{
				// No identifier at all
				"date":  "1977-05-08T00:00:00Z",
				"venue": "Barton Hall",
			},
			{
				// Neither the date field nor the identifier parse
				"identifier": "weird-item-42",
				"date":       "sometime in may",
			},
		},
	}
	client, _ := searchServer(t, pages, 3)
	db := openTestStore(t)

	result, err := Run(context.Background(), &Config{Store: db, Client: client})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.DocsSeen != 3 {
		t.Errorf("DocsSeen = %d, want 3", result.DocsSeen)
	}
	if result.Malformed != 2 {
		t.Errorf("Malformed = %d, want 2", result.Malformed)
	}
	if result.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", result.Inserted)
	}
}

func TestRunRequiresStoreAndClient(t *testing.T) {
	if _, err := Run(context.Background(), &Config{}); err == nil {
		t.Error("Run() with empty config should fail")
	}
}

func TestUpdateInsertsOnlyNewShows(t *testing.T) {
	pages := [][]map[string]any{docPage(0, 2)}
	client, _ := searchServer(t, pages, 2)
	db := openTestStore(t)

	// Pre-seed the catalog with the first served doc
	existing := searchDoc(0)
	if _, err := db.InsertShow(&store.Show{
		Identifier: existing["identifier"].(string),
		Date:       "1977-05-01",
		Venue:      "Barton Hall",
	}); err != nil {
		t.Fatalf("InsertShow() error = %v", err)
	}

	result, err := Update(context.Background(), &UpdateConfig{
		Store:  db,
		Client: client,
		Since:  "2026-07-01",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if result.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", result.Inserted)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}

	count, _ := db.CountShows()
	if count != 2 {
		t.Errorf("CountShows() = %d, want 2", count)
	}
}

func TestUpdateDryRunWritesNothing(t *testing.T) {
	pages := [][]map[string]any{docPage(0, 2)}
	client, _ := searchServer(t, pages, 2)
	db := openTestStore(t)

	existing := searchDoc(0)
	if _, err := db.InsertShow(&store.Show{
		Identifier: existing["identifier"].(string),
		Date:       "1977-05-01",
		Venue:      "Barton Hall",
	}); err != nil {
		t.Fatalf("InsertShow() error = %v", err)
	}

	result, err := Update(context.Background(), &UpdateConfig{
		Store:  db,
		Client: client,
		Since:  "2026-07-01",
		DryRun: true,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if result.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", result.Inserted)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}

	count, _ := db.CountShows()
	if count != 1 {
		t.Errorf("CountShows() = %d after dry run, want 1", count)
	}
}

func TestUpdateQuerySentToServer(t *testing.T) {
	var sawPublicdate atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/advancedsearch.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q != "" && containsAll(q, "publicdate:[2026-07-01 TO null]", "collection:GratefulDead") {
			sawPublicdate.Store(true)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{"numFound": 0, "start": 0, "docs": []map[string]any{}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := archive.NewClientWithBaseURL(srv.URL)
	t.Cleanup(func() { client.Close() })
	db := openTestStore(t)

	if _, err := Update(context.Background(), &UpdateConfig{
		Store:  db,
		Client: client,
		Since:  "2026-07-01",
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if !sawPublicdate.Load() {
		t.Error("server never saw the publicdate cutoff in the query")
	}
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
