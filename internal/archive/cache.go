package archive

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/deadstream/internal/util"
)

// DefaultCacheTTL is how long a cached metadata response stays fresh.
// Item metadata changes rarely; a day keeps repeat lookups free.
const DefaultCacheTTL = 24 * time.Hour

// Cache provides database-backed caching for metadata responses
type Cache struct {
	db  *sql.DB
	ttl time.Duration
}

// NewCache creates a cache instance. A non-positive TTL selects the default.
func NewCache(db *sql.DB, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		db:  db,
		ttl: ttl,
	}
}

// EnsureSchema creates the cache table if it doesn't exist
func (c *Cache) EnsureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS metadata_cache (
		identifier TEXT PRIMARY KEY,
		response BLOB NOT NULL,
		fetched_at DATETIME NOT NULL,
		hit_count INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_cache_fetched ON metadata_cache(fetched_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create metadata_cache table: %w", err)
	}

	return nil
}

// Get returns the cached raw response for an identifier. A miss, an
// expired entry or a read error all report ok=false.
func (c *Cache) Get(identifier string) (response []byte, ok bool) {
	query := `SELECT response, fetched_at FROM metadata_cache WHERE identifier = ?`

	var raw []byte
	var fetchedAt time.Time

	err := c.db.QueryRow(query, identifier).Scan(&raw, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		util.DebugLog("Cache read failed for %s: %v", identifier, err)
		return nil, false
	}

	if time.Since(fetchedAt) > c.ttl {
		util.DebugLog("Cache entry for %s expired (fetched %s)", identifier, fetchedAt.Format(time.RFC3339))
		return nil, false
	}

	c.incrementHitCount(identifier)

	return raw, true
}

// Store saves a raw response, preserving the hit counter on replace
func (c *Cache) Store(identifier string, response []byte) error {
	query := `
		INSERT OR REPLACE INTO metadata_cache
		(identifier, response, fetched_at, hit_count)
		VALUES (?, ?, ?, COALESCE((SELECT hit_count FROM metadata_cache WHERE identifier = ?), 0))
	`

	_, err := c.db.Exec(query, identifier, response, time.Now().UTC(), identifier)
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}

	return nil
}

// incrementHitCount increments the cache hit counter
func (c *Cache) incrementHitCount(identifier string) {
	query := `UPDATE metadata_cache SET hit_count = hit_count + 1 WHERE identifier = ?`
	_, err := c.db.Exec(query, identifier)
	if err != nil {
		util.DebugLog("Failed to increment hit count: %v", err)
	}
}

// Stats returns cache entry and cumulative hit counts
func (c *Cache) Stats() (entries int, totalHits int64, err error) {
	query := `SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM metadata_cache`
	err = c.db.QueryRow(query).Scan(&entries, &totalHits)
	return
}

// Clear removes all cached entries
func (c *Cache) Clear() error {
	_, err := c.db.Exec("DELETE FROM metadata_cache")
	return err
}

// ClearOldEntries removes cache entries older than the specified duration
func (c *Cache) ClearOldEntries(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := c.db.Exec("DELETE FROM metadata_cache WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, err
	}

	rows, _ := result.RowsAffected()
	return int(rows), nil
}
