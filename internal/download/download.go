package download

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dhowden/tag"
	"github.com/dustin/go-humanize"
	"github.com/franz/deadstream/internal/archive"
	"github.com/franz/deadstream/internal/meta"
	"github.com/franz/deadstream/internal/report"
	"github.com/franz/deadstream/internal/util"
	"github.com/schollz/progressbar/v3"
)

// Downloader fetches whole recordings from the archive into a local
// directory tree laid out as <dest>/<date>/<identifier>/<file>
type Downloader struct {
	client      *archive.Client
	httpClient  *http.Client
	destDir     string
	concurrency int
	verifyMode  string // "none", "size", "hash"
	format      string
	inspect     bool
	bufferSize  int
	retryConfig *util.RetryConfig
	logger      *report.EventLogger
}

// Config holds downloader configuration
type Config struct {
	Client      *archive.Client
	DestDir     string
	Concurrency int
	VerifyMode  string // "none", "size", "hash"
	Format      string // preferred audio format, best available when empty
	Inspect     bool   // read embedded tags from finished files
	BufferSize  int
	RetryConfig *util.RetryConfig // nil = HTTP defaults
	Logger      *report.EventLogger
}

// New creates a Downloader
func New(cfg *Config) (*Downloader, error) {
	if cfg == nil || cfg.Client == nil {
		return nil, fmt.Errorf("downloader needs an archive client")
	}
	if cfg.DestDir == "" {
		return nil, fmt.Errorf("downloader needs a destination directory")
	}

	verifyMode := cfg.VerifyMode
	switch verifyMode {
	case "":
		verifyMode = "size"
	case "none", "size", "hash":
	default:
		return nil, fmt.Errorf("unknown verify mode %q, want none, size or hash", cfg.VerifyMode)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 128 * 1024
	}
	retryConfig := cfg.RetryConfig
	if retryConfig == nil {
		retryConfig = util.HTTPRetryConfig()
	}

	return &Downloader{
		client: cfg.Client,
		// No client timeout: whole-file transfers run long, the context
		// is what cancels them
		httpClient:  &http.Client{},
		destDir:     cfg.DestDir,
		concurrency: concurrency,
		verifyMode:  verifyMode,
		format:      cfg.Format,
		inspect:     cfg.Inspect,
		bufferSize:  bufferSize,
		retryConfig: retryConfig,
		logger:      cfg.Logger,
	}, nil
}

// Result represents one recording fetch
type Result struct {
	Identifier   string
	Format       string
	Dir          string
	Files        int
	Downloaded   int
	Skipped      int
	Failed       int
	BytesWritten int64
	Errors       []error
}

// Fetch downloads every audio file of one recording. Files already
// present with the right size are left alone, so an interrupted fetch
// can simply be run again.
func (d *Downloader) Fetch(ctx context.Context, identifier string) (*Result, error) {
	item, err := d.client.GetMetadata(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata for %s: %w", identifier, err)
	}

	format := d.format
	if format == "" {
		format = archive.BestAudioFormat(item)
	}
	if format == "" {
		return nil, fmt.Errorf("%s carries no audio files", identifier)
	}
	files := archive.FilesForFormat(item, format)
	if len(files) == 0 {
		return nil, fmt.Errorf("%s has no %s files", identifier, format)
	}

	date := meta.NormalizeDate(item.Date())
	if date == "" {
		date = meta.ParseIdentifier(identifier).Date
	}
	if date == "" {
		date = "unknown-date"
	}

	dir := filepath.Join(d.destDir, date, identifier)
	if err := util.RetryableMkdirAll(dir, 0755, d.retryConfig); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	var totalBytes int64
	for _, f := range files {
		totalBytes += f.SizeBytes()
	}

	util.InfoLog("Downloading %s: %d %s files, %s",
		identifier, len(files), format, humanize.IBytes(uint64(totalBytes)))

	var downloaded atomic.Int64
	var skipped atomic.Int64
	var failed atomic.Int64
	var bytesWritten atomic.Int64

	var errMu sync.Mutex
	var errs []error
	addErr := func(err error) {
		errMu.Lock()
		errs = append(errs, err)
		errMu.Unlock()
	}

	isTTY := util.IsTerminal(os.Stdout.Fd())
	var bar *progressbar.ProgressBar
	if isTTY && !util.IsQuiet() {
		bar = progressbar.NewOptions64(totalBytes,
			progressbar.OptionSetDescription(identifier),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()

	if bar == nil && !util.IsQuiet() {
		go func() {
			ticker := time.NewTicker(2 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-progressCtx.Done():
					return
				case <-ticker.C:
					done := downloaded.Load() + skipped.Load() + failed.Load()
					if done > 0 {
						util.InfoLog("Downloading %s: %d/%d files, %s written",
							identifier, done, len(files),
							humanize.IBytes(uint64(bytesWritten.Load())))
					}
				}
			}
		}()
	}

	work := make(chan archive.File, d.concurrency*2)

	var wg sync.WaitGroup
	for i := 0; i < d.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for f := range work {
				if ctx.Err() != nil {
					continue
				}

				start := time.Now()
				n, err := d.fetchFile(ctx, identifier, f, dir, bar)
				if err != nil {
					failed.Add(1)
					addErr(fmt.Errorf("%s: %w", f.Name, err))
					util.ErrorLog("Failed to download %s: %v", f.Name, err)
					d.logger.LogDownload(identifier, f.Name, 0, time.Since(start), err)
					continue
				}
				if n < 0 {
					skipped.Add(1)
					util.DebugLog("Already have %s", f.Name)
					continue
				}

				downloaded.Add(1)
				bytesWritten.Add(n)
				d.logger.LogDownload(identifier, f.Name, n, time.Since(start), nil)

				if d.inspect {
					d.inspectFile(filepath.Join(dir, filepath.FromSlash(f.Name)))
				}
			}
		}()
	}

	// The channel always gets closed, even on cancellation, so workers
	// can never block on a half-fed channel
	go func() {
		defer close(work)
		for _, f := range files {
			select {
			case <-ctx.Done():
				return
			case work <- f:
			}
		}
	}()

	wg.Wait()
	cancelProgress()

	if bar != nil {
		bar.Finish()
	}

	if err := ctx.Err(); err != nil {
		addErr(err)
	}

	result := &Result{
		Identifier:   identifier,
		Format:       format,
		Dir:          dir,
		Files:        len(files),
		Downloaded:   int(downloaded.Load()),
		Skipped:      int(skipped.Load()),
		Failed:       int(failed.Load()),
		BytesWritten: bytesWritten.Load(),
		Errors:       errs,
	}

	util.SuccessLog("Downloaded %s: %d files (%s), %d already present, %d failed",
		identifier, result.Downloaded, humanize.IBytes(uint64(result.BytesWritten)),
		result.Skipped, result.Failed)

	return result, nil
}

// fetchFile downloads one file, or reports -1 when a matching copy is
// already on disk
func (d *Downloader) fetchFile(ctx context.Context, identifier string, f archive.File, dir string, bar *progressbar.ProgressBar) (int64, error) {
	destPath := filepath.Join(dir, filepath.FromSlash(f.Name))

	if stat, err := util.RetryableStat(destPath, d.retryConfig); err == nil {
		if f.SizeBytes() > 0 && stat.Size() == f.SizeBytes() {
			if bar != nil {
				bar.Add64(stat.Size())
			}
			return -1, nil
		}
	}

	if err := util.RetryableMkdirAll(filepath.Dir(destPath), 0755, d.retryConfig); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	url := d.client.DownloadURL(identifier, f.Name)

	return util.RetryWithBackoff(d.retryConfig, func() (int64, error) {
		return d.downloadTo(ctx, url, destPath, f, bar)
	}, fmt.Sprintf("download %s", f.Name))
}

// downloadTo streams one URL into destPath via a .part temp file,
// verifying before the atomic rename
func (d *Downloader) downloadTo(ctx context.Context, url, destPath string, f archive.File, bar *progressbar.ProgressBar) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", archive.UserAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, fmt.Errorf("%w: %s", util.ErrNotFound, url)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return 0, fmt.Errorf("%w: archive.org returned %d", util.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("archive.org returned %d", resp.StatusCode)
	}

	tempPath := destPath + ".part"
	dest, err := util.RetryableCreate(tempPath, d.retryConfig)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	var w io.Writer = dest
	if bar != nil {
		w = io.MultiWriter(dest, bar)
	}

	written, err := copyWithContext(ctx, w, resp.Body, d.bufferSize)
	dest.Close()

	if err != nil {
		util.RetryableRemove(tempPath, d.retryConfig)
		if bar != nil {
			// Give the partial bytes back so a retry does not overrun the bar
			bar.Add64(-written)
		}
		return 0, fmt.Errorf("transfer failed: %w", err)
	}

	if err := d.verifyFile(tempPath, f, written); err != nil {
		util.RetryableRemove(tempPath, d.retryConfig)
		if bar != nil {
			bar.Add64(-written)
		}
		return 0, err
	}

	if err := util.RetryableRename(tempPath, destPath, d.retryConfig); err != nil {
		util.RetryableRemove(tempPath, d.retryConfig)
		return 0, fmt.Errorf("failed to rename: %w", err)
	}

	util.DebugLog("Downloaded %s (%s)", filepath.Base(destPath), humanize.IBytes(uint64(written)))
	return written, nil
}

// verifyFile checks a finished transfer against what the archive's
// metadata claims about the file
func (d *Downloader) verifyFile(path string, f archive.File, written int64) error {
	switch d.verifyMode {
	case "size":
		if want := f.SizeBytes(); want > 0 && written != want {
			return fmt.Errorf("size mismatch: got %d bytes, want %d", written, want)
		}
	case "hash":
		want := strings.ToLower(strings.TrimSpace(f.MD5))
		if want == "" {
			// Nothing to check against, fall back to size
			if size := f.SizeBytes(); size > 0 && written != size {
				return fmt.Errorf("size mismatch: got %d bytes, want %d", written, size)
			}
			return nil
		}
		got, err := fileMD5(path)
		if err != nil {
			return fmt.Errorf("failed to hash download: %w", err)
		}
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

// inspectFile reads the embedded tags of a finished download and
// narrates them
func (d *Downloader) inspectFile(path string) {
	file, err := os.Open(path)
	if err != nil {
		util.DebugLog("Could not open %s for inspection: %v", path, err)
		return
	}
	defer file.Close()

	m, err := tag.ReadFrom(file)
	if err != nil {
		util.DebugLog("No readable tags in %s: %v", filepath.Base(path), err)
		return
	}

	track, total := m.Track()
	util.InfoLog("  %s: %q by %s (%s, track %d/%d)",
		filepath.Base(path), m.Title(), m.Artist(), m.Format(), track, total)
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// copyWithContext copies data with cancellation checks between chunks
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, bufferSize int) (int64, error) {
	if bufferSize <= 0 {
		bufferSize = 128 * 1024
	}

	buf := make([]byte, bufferSize)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[0:nr])
			if nw < 0 || nr < nw {
				nw = 0
				if ew == nil {
					ew = fmt.Errorf("invalid write result")
				}
			}
			written += int64(nw)
			if ew != nil {
				return written, ew
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er != io.EOF {
				return written, er
			}
			break
		}
	}
	return written, nil
}
