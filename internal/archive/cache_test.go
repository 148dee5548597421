package archive

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// openCacheDB opens a throwaway SQLite database for cache tests
func openCacheDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("failed to open cache database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	return db
}

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()

	cache := NewCache(openCacheDB(t), ttl)
	if err := cache.EnsureSchema(); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	return cache
}

func TestCacheStoreAndGet(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	if _, ok := cache.Get("gd1977-05-08.sbd.hicks"); ok {
		t.Error("expected miss on empty cache")
	}

	payload := []byte(`{"metadata":{"identifier":"gd1977-05-08.sbd.hicks"}}`)
	if err := cache.Store("gd1977-05-08.sbd.hicks", payload); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, ok := cache.Get("gd1977-05-08.sbd.hicks")
	if !ok {
		t.Fatal("expected hit after store")
	}
	if string(got) != string(payload) {
		t.Errorf("cached payload = %q, expected %q", got, payload)
	}

	entries, hits, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if entries != 1 {
		t.Errorf("entries = %d, expected 1", entries)
	}
	if hits != 1 {
		t.Errorf("hits = %d, expected 1", hits)
	}
}

func TestCacheReplacePreservesHitCount(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	if err := cache.Store("gd1972-05-03.sbd", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	// Two hits, then a refresh of the same identifier
	cache.Get("gd1972-05-03.sbd")
	cache.Get("gd1972-05-03.sbd")

	if err := cache.Store("gd1972-05-03.sbd", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("replacing Store failed: %v", err)
	}

	got, ok := cache.Get("gd1972-05-03.sbd")
	if !ok {
		t.Fatal("expected hit after replace")
	}
	if string(got) != `{"v":2}` {
		t.Errorf("payload after replace = %q", got)
	}

	_, hits, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if hits != 3 {
		t.Errorf("hits = %d, expected replace to keep the prior count", hits)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := newTestCache(t, 100*time.Millisecond)

	if err := cache.Store("gd1969-11-08.sbd", []byte(`{}`)); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if _, ok := cache.Get("gd1969-11-08.sbd"); !ok {
		t.Error("expected hit before expiry")
	}

	time.Sleep(150 * time.Millisecond)

	if _, ok := cache.Get("gd1969-11-08.sbd"); ok {
		t.Error("expected miss after TTL elapsed")
	}
}

func TestCacheClear(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	for _, id := range []string{"gd1977-05-08.a", "gd1977-05-08.b"} {
		if err := cache.Store(id, []byte(`{}`)); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	entries, _, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if entries != 0 {
		t.Errorf("entries after clear = %d, expected 0", entries)
	}
}

func TestCacheClearOldEntries(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	if err := cache.Store("gd1977-05-08.old", []byte(`{}`)); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := cache.Store("gd1977-05-08.new", []byte(`{}`)); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	// Age one entry two days into the past
	stale := time.Now().UTC().Add(-48 * time.Hour)
	if _, err := cache.db.Exec(
		`UPDATE metadata_cache SET fetched_at = ? WHERE identifier = ?`,
		stale, "gd1977-05-08.old"); err != nil {
		t.Fatalf("failed to age entry: %v", err)
	}

	removed, err := cache.ClearOldEntries(24 * time.Hour)
	if err != nil {
		t.Fatalf("ClearOldEntries failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, expected 1", removed)
	}

	if _, ok := cache.Get("gd1977-05-08.new"); !ok {
		t.Error("fresh entry should survive")
	}
	if _, ok := cache.Get("gd1977-05-08.old"); ok {
		t.Error("stale entry should be gone")
	}
}
