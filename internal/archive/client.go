package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/franz/deadstream/internal/util"
)

const (
	// BaseURL is the Internet Archive base URL
	BaseURL = "https://archive.org"

	// UserAgent identifies this application to archive.org
	UserAgent = "dsc/0.3.0 (+https://github.com/franz/deadstream)"

	// RateLimit spaces requests at 4 per second, well inside what
	// archive.org tolerates for unauthenticated clients
	RateLimit = 250 * time.Millisecond

	// GratefulDeadQuery selects the Grateful Dead live recording collection
	GratefulDeadQuery = "collection:GratefulDead AND mediatype:etree"

	// searchPageSize is the rows-per-page default for multi-page fetches
	searchPageSize = 100
)

// searchFields is the field list requested from the search endpoint
var searchFields = []string{
	"identifier",
	"date",
	"venue",
	"coverage",
	"avg_rating",
	"num_reviews",
	"source",
	"title",
	"publicdate",
}

// Client handles Internet Archive API requests with rate limiting
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	rateLimiter *time.Ticker
	cache       *Cache
}

// NewClient creates a new Internet Archive API client
func NewClient() *Client {
	return NewClientWithBaseURL(BaseURL)
}

// NewClientWithBaseURL creates a client against a non-default base URL.
// Used by tests to point at a local server.
func NewClientWithBaseURL(base string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     strings.TrimRight(base, "/"),
		userAgent:   UserAgent,
		rateLimiter: time.NewTicker(RateLimit),
	}
}

// AttachCache enables database-backed caching of metadata responses
func (c *Client) AttachCache(cache *Cache) {
	c.cache = cache
}

// Close releases resources used by the client
func (c *Client) Close() {
	if c.rateLimiter != nil {
		c.rateLimiter.Stop()
	}
}

// FlexString decodes fields that archive.org returns inconsistently:
// a plain string for most items, an array of strings or a bare number
// for others. Arrays keep their first element.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		if len(arr) > 0 {
			*f = FlexString(arr[0])
		} else {
			*f = ""
		}
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}

	return fmt.Errorf("unsupported field shape: %s", string(data))
}

func (f FlexString) String() string {
	return string(f)
}

// Float parses the value as a float, 0 when absent or malformed
func (f FlexString) Float() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(f)), 64)
	if err != nil {
		return 0
	}
	return v
}

// Int parses the value as an integer, 0 when absent or malformed
func (f FlexString) Int() int {
	v, err := strconv.Atoi(strings.TrimSpace(string(f)))
	if err != nil {
		return 0
	}
	return v
}

// SearchDoc is one item from the advancedsearch endpoint
type SearchDoc struct {
	Identifier FlexString `json:"identifier"`
	Date       FlexString `json:"date"`
	Venue      FlexString `json:"venue"`
	Coverage   FlexString `json:"coverage"`
	AvgRating  FlexString `json:"avg_rating"`
	NumReviews FlexString `json:"num_reviews"`
	Source     FlexString `json:"source"`
	Title      FlexString `json:"title"`
	PublicDate FlexString `json:"publicdate"`
}

// SearchResponse is the advancedsearch payload
type SearchResponse struct {
	Response struct {
		NumFound int         `json:"numFound"`
		Start    int         `json:"start"`
		Docs     []SearchDoc `json:"docs"`
	} `json:"response"`
}

// BuildQuery composes the collection query with optional year-range and
// publicdate clauses. Zero values leave the clause off.
func BuildQuery(yearFrom, yearTo int, since string) string {
	query := GratefulDeadQuery
	if yearFrom > 0 && yearTo > 0 {
		query += fmt.Sprintf(" AND date:[%d-01-01 TO %d-12-31]", yearFrom, yearTo)
	}
	if since != "" {
		query += fmt.Sprintf(" AND publicdate:[%s TO null]", since)
	}
	return query
}

// SearchShows queries the advancedsearch endpoint for one page of items.
// Pages are 1-based. Sorted by date so paging stays stable across requests.
func (c *Client) SearchShows(ctx context.Context, query string, page, rows int) (*SearchResponse, error) {
	if query == "" {
		query = GratefulDeadQuery
	}
	if page < 1 {
		page = 1
	}
	if rows < 1 {
		rows = searchPageSize
	}

	c.waitForRateLimit()

	params := url.Values{}
	params.Set("q", query)
	for _, field := range searchFields {
		params.Add("fl[]", field)
	}
	params.Add("sort[]", "date asc")
	params.Set("rows", strconv.Itoa(rows))
	params.Set("page", strconv.Itoa(page))
	params.Set("output", "json")

	urlStr := fmt.Sprintf("%s/advancedsearch.php?%s", c.baseURL, params.Encode())

	util.DebugLog("archive: searching page %d (%d rows): %s", page, rows, query)

	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("%w: archive.org returned %d", util.ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var result SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	util.DebugLog("archive: page %d returned %d of %d docs",
		page, len(result.Response.Docs), result.Response.NumFound)

	return &result, nil
}

// File describes one file of an archive item. Numeric fields arrive as
// strings from the metadata endpoint.
type File struct {
	Name   string     `json:"name"`
	Format string     `json:"format"`
	Title  FlexString `json:"title"`
	Track  FlexString `json:"track"`
	Length FlexString `json:"length"`
	Size   FlexString `json:"size"`
	MD5    string     `json:"md5"`
}

// SizeBytes returns the file size, 0 when unreported
func (f File) SizeBytes() int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(string(f.Size)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// TrackNumber returns the track number, handling "3" and "3/9" forms
func (f File) TrackNumber() int {
	s := strings.TrimSpace(string(f.Track))
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

// LengthSeconds returns the duration in seconds, handling both the
// "mm:ss" and plain seconds forms archive.org uses
func (f File) LengthSeconds() float64 {
	s := strings.TrimSpace(string(f.Length))
	if s == "" {
		return 0
	}

	if strings.Contains(s, ":") {
		total := 0.0
		for _, part := range strings.Split(s, ":") {
			v, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return 0
			}
			total = total*60 + v
		}
		return total
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// ItemMetadata is the full metadata record of one archive item
type ItemMetadata struct {
	Metadata map[string]FlexString `json:"metadata"`
	Files    []File                `json:"files"`
	Server   string                `json:"server"`
	Dir      string                `json:"dir"`
}

// Field returns one metadata field, trimmed, "" when absent
func (m *ItemMetadata) Field(key string) string {
	if m == nil || m.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(string(m.Metadata[key]))
}

// Identifier returns the item identifier
func (m *ItemMetadata) Identifier() string { return m.Field("identifier") }

// Date returns the raw date field
func (m *ItemMetadata) Date() string { return m.Field("date") }

// Venue returns the venue field
func (m *ItemMetadata) Venue() string { return m.Field("venue") }

// Coverage returns the coverage field, usually "City, ST"
func (m *ItemMetadata) Coverage() string { return m.Field("coverage") }

// Title returns the item title
func (m *ItemMetadata) Title() string { return m.Field("title") }

// Source returns the free-text source description
func (m *ItemMetadata) Source() string { return m.Field("source") }

// Lineage returns the transfer lineage chain
func (m *ItemMetadata) Lineage() string { return m.Field("lineage") }

// Taper returns the taper credit
func (m *ItemMetadata) Taper() string { return m.Field("taper") }

// GetMetadata fetches the full metadata record for one item. Responses
// are served from the attached cache when present and fresh.
func (c *Client) GetMetadata(ctx context.Context, identifier string) (*ItemMetadata, error) {
	if identifier == "" {
		return nil, fmt.Errorf("identifier cannot be empty")
	}

	if c.cache != nil {
		if raw, ok := c.cache.Get(identifier); ok {
			var meta ItemMetadata
			if err := json.Unmarshal(raw, &meta); err == nil {
				util.DebugLog("archive: metadata cache hit for %s", identifier)
				return &meta, nil
			}
			util.DebugLog("archive: discarding unreadable cache entry for %s", identifier)
		}
	}

	c.waitForRateLimit()

	urlStr := fmt.Sprintf("%s/metadata/%s", c.baseURL, url.PathEscape(identifier))

	util.DebugLog("archive: fetching metadata for %s", identifier)

	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: item %s", util.ErrNotFound, identifier)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("%w: archive.org returned %d", util.ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var meta ItemMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	// The metadata endpoint answers 200 with an empty object for
	// identifiers that do not exist
	if len(meta.Metadata) == 0 && len(meta.Files) == 0 {
		return nil, fmt.Errorf("%w: no metadata for item %s", util.ErrNotFound, identifier)
	}

	if c.cache != nil {
		if err := c.cache.Store(identifier, body); err != nil {
			util.WarnLog("Failed to cache metadata for %s: %v", identifier, err)
		}
	}

	return &meta, nil
}

// Recordings returns every recording of one show date
func (c *Client) Recordings(ctx context.Context, date string) ([]SearchDoc, error) {
	if date == "" {
		return nil, fmt.Errorf("date cannot be empty")
	}

	query := fmt.Sprintf("%s AND date:%s", GratefulDeadQuery, date)

	var docs []SearchDoc
	page := 1
	for {
		resp, err := c.SearchShows(ctx, query, page, searchPageSize)
		if err != nil {
			return nil, err
		}

		docs = append(docs, resp.Response.Docs...)

		if len(resp.Response.Docs) == 0 || len(docs) >= resp.Response.NumFound {
			break
		}
		page++
	}

	util.DebugLog("archive: found %d recordings for %s", len(docs), date)

	return docs, nil
}

// DownloadURL builds the direct download URL for one file of an item
func (c *Client) DownloadURL(identifier, filename string) string {
	segments := strings.Split(filename, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/download/%s/%s",
		c.baseURL, url.PathEscape(identifier), strings.Join(segments, "/"))
}

// DetailsURL returns the human-facing item page on archive.org
func DetailsURL(identifier string) string {
	return fmt.Sprintf("%s/details/%s", BaseURL, url.PathEscape(identifier))
}

// waitForRateLimit spaces requests to stay inside the rate limit
func (c *Client) waitForRateLimit() {
	<-c.rateLimiter.C
}
