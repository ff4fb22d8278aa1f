package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/covid-pipeline/pkg/config"
)

// Checker performs periodic HEAD requests against every metric's source URL
// and records their availability.
type Checker struct {
	cfg      *config.Ingestion
	runs     *RunStore
	metrics  *Metrics
	logger   *slog.Logger
	interval time.Duration
	client   *http.Client
}

// NewChecker creates a Checker that will verify source URLs every interval.
func NewChecker(cfg *config.Ingestion, runs *RunStore, metrics *Metrics, logger *slog.Logger, interval time.Duration) *Checker {
	return &Checker{
		cfg:      cfg,
		runs:     runs,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Start runs an immediate check then repeats every interval until ctx is cancelled.
func (c *Checker) Start(ctx context.Context) {
	c.CheckAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckAll(ctx)
		}
	}
}

// CheckAll probes every metric URL and returns how many answered 2xx/3xx.
func (c *Checker) CheckAll(ctx context.Context) (ok, failed int) {
	for _, metric := range c.cfg.Metrics() {
		if ctx.Err() != nil {
			return ok, failed
		}

		url := c.cfg.SourceURL(metric)
		status, checkErr := c.checkOne(ctx, url)
		errMsg := ""
		if checkErr != nil {
			errMsg = checkErr.Error()
		}

		if err := c.runs.RecordCheck(metric, url, status, errMsg); err != nil {
			c.logger.Error("source check: could not record result", "metric", metric, "error", err)
		}
		c.metrics.observeCheck(metric, status)

		if status >= 200 && status < 400 {
			ok++
		} else {
			failed++
			c.logger.Warn("source unavailable",
				"metric", metric,
				"url", url,
				"status", status,
				"error", errMsg,
			)
		}
	}

	c.logger.Info("source check complete", "total", ok+failed, "ok", ok, "failed", failed)
	return ok, failed
}

// checkOne performs a single HEAD request and returns the HTTP status code.
// On network error, status is 0.
func (c *Checker) checkOne(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HEAD %s: %w", url, err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
