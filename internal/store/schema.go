package store

// Schema v1 - Show catalog
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per archived recording
CREATE TABLE IF NOT EXISTS shows (
  identifier TEXT PRIMARY KEY,
  date TEXT NOT NULL,
  venue TEXT,
  city TEXT,
  state TEXT,
  avg_rating REAL,
  num_reviews INTEGER,
  source_type TEXT,
  taper TEXT,
  last_updated TEXT
);

CREATE INDEX IF NOT EXISTS idx_shows_date ON shows(date);
CREATE INDEX IF NOT EXISTS idx_shows_venue ON shows(venue);
CREATE INDEX IF NOT EXISTS idx_shows_rating ON shows(avg_rating);
CREATE INDEX IF NOT EXISTS idx_shows_year ON shows(substr(date,1,4));
CREATE INDEX IF NOT EXISTS idx_shows_state ON shows(state);
CREATE INDEX IF NOT EXISTS idx_shows_date_rating ON shows(date, avg_rating);
`

// Schema v2 - Resumable population state
const schemaV2 = `
-- Single-row resume state for interrupted population runs
CREATE TABLE IF NOT EXISTS populate_progress (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  last_page INTEGER NOT NULL,
  total_pages INTEGER NOT NULL,
  rows_inserted INTEGER NOT NULL DEFAULT 0,
  query TEXT,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
