// CLAUDE:SUMMARY Ingestion orchestrator exposing download, cleanup and load with progress and failure logging.
package ingest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hazyhaar/covid-pipeline/pkg/config"
	"github.com/hazyhaar/covid-pipeline/pkg/duckstore"
	"github.com/spf13/afero"
)

// DestinationStore is a Store the orchestrator opens and closes per load.
type DestinationStore interface {
	Store
	Close() error
}

// StoreOpener opens the destination store at path.
type StoreOpener func(ctx context.Context, path string) (DestinationStore, error)

// OpenDuckDB is the default StoreOpener.
func OpenDuckDB(ctx context.Context, path string) (DestinationStore, error) {
	s, err := duckstore.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Options carries the collaborators of an Ingestion. Zero fields get
// defaults: the OS filesystem, an HTTP client using cfg.HTTPTimeout,
// time.Now and DuckDB.
type Options struct {
	Fs        afero.Fs
	Client    *http.Client
	Now       func() time.Time
	OpenStore StoreOpener
}

// Ingestion runs the three externally invoked operations. Runs against the
// same staging directory or store must not overlap.
type Ingestion struct {
	cfg        config.Ingestion
	logger     *slog.Logger
	openStore  StoreOpener
	downloader *Downloader
	sweeper    *Sweeper
	loader     *Loader
}

// New builds an Ingestion for cfg.
func New(cfg config.Ingestion, logger *slog.Logger, opts Options) *Ingestion {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OpenStore == nil {
		opts.OpenStore = OpenDuckDB
	}
	return &Ingestion{
		cfg:        cfg,
		logger:     logger,
		openStore:  opts.OpenStore,
		downloader: NewDownloader(opts.Fs, opts.Client, logger, opts.Now),
		sweeper:    NewSweeper(opts.Fs, logger, opts.Now),
		loader:     NewLoader(opts.Fs, logger),
	}
}

// Config returns the configuration the run was built with.
func (in *Ingestion) Config() config.Ingestion { return in.cfg }

// Download stages one file per metric.
func (in *Ingestion) Download(ctx context.Context) ([]StagedFile, error) {
	in.logger.Info("starting data download", "metrics", len(in.cfg.DataTypes), "dir", in.cfg.RawDataPath)
	staged, err := in.downloader.Download(ctx, &in.cfg)
	if err != nil {
		in.logger.Error("download failed", "error", err)
		return staged, err
	}
	in.logger.Info("download completed", "files", len(staged))
	return staged, nil
}

// Cleanup removes staged files older than the retention window.
func (in *Ingestion) Cleanup(ctx context.Context) (SweepResult, error) {
	in.logger.Info("cleaning up old files", "retention_days", in.cfg.RetentionDays)
	res, err := in.sweeper.Sweep(ctx, in.cfg.RawDataPath, in.cfg.Retention())
	if err != nil {
		in.logger.Error("cleanup failed", "error", err)
		return res, err
	}
	in.logger.Info("cleanup completed", "removed", res.Removed, "kept", res.Kept, "skipped", res.Skipped)
	return res, nil
}

// Load replaces every raw_{metric} table from the latest staged files.
func (in *Ingestion) Load(ctx context.Context) (results []LoadResult, err error) {
	in.logger.Info("starting data load", "db", in.cfg.DBPath)

	store, err := in.openStore(ctx, in.cfg.DBPath)
	if err != nil {
		in.logger.Error("load failed", "error", err)
		return nil, err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			in.logger.Error("close store", "error", cerr)
			if err != nil {
				err = multierror.Append(err, cerr)
			} else {
				err = cerr
			}
		}
	}()

	results, err = in.loader.Load(ctx, &in.cfg, store)
	if err != nil {
		in.logger.Error("load failed", "error", err)
		return results, err
	}
	in.logger.Info("data load completed", "tables", len(results))
	return results, nil
}
