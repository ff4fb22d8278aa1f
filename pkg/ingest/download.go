// CLAUDE:SUMMARY Fetches one CSV per metric into the staging directory as {metric}_{YYYYMMDD}.csv, never leaving partial files.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/hazyhaar/covid-pipeline/pkg/config"
	"github.com/spf13/afero"
)

// Downloader stages remote source files on fs.
type Downloader struct {
	fs     afero.Fs
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewDownloader creates a Downloader. now stamps the staged file names.
func NewDownloader(fs afero.Fs, client *http.Client, logger *slog.Logger, now func() time.Time) *Downloader {
	return &Downloader{fs: fs, client: client, logger: logger, now: now}
}

// Download fetches every configured metric in sorted order. The first failure
// aborts the pass and is returned as a *MetricError of kind ErrDownload.
// A same-day file for a metric is overwritten.
func (d *Downloader) Download(ctx context.Context, cfg *config.Ingestion) ([]StagedFile, error) {
	if err := d.fs.MkdirAll(cfg.RawDataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	day := d.now()
	var staged []StagedFile
	for _, metric := range cfg.Metrics() {
		url := cfg.SourceURL(metric)
		dest := filepath.Join(cfg.RawDataPath, StagedName(metric, day))
		d.logger.Info("downloading", "metric", metric, "url", url)

		n, err := d.fetch(ctx, url, dest)
		if err != nil {
			return staged, &MetricError{Metric: metric, Kind: ErrDownload, Err: err}
		}
		d.logger.Info("downloaded", "metric", metric, "path", dest, "bytes", n)
		staged = append(staged, StagedFile{Metric: metric, Date: day, Path: dest})
	}
	return staged, nil
}

// fetch writes the body of url to a temporary file next to dest and renames
// it into place once the body has been fully read.
func (d *Downloader) fetch(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	tmp, err := afero.TempFile(d.fs, filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		d.fs.Remove(tmpName)
		if copyErr != nil {
			return 0, fmt.Errorf("read body of %s: %w", url, copyErr)
		}
		return 0, fmt.Errorf("write %s: %w", tmpName, closeErr)
	}

	if err := d.fs.Rename(tmpName, dest); err != nil {
		d.fs.Remove(tmpName)
		return 0, fmt.Errorf("rename to %s: %w", dest, err)
	}
	return n, nil
}
