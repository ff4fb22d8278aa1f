package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const stagedDateLayout = "20060102"

// StagedFile is a downloaded source file waiting in the staging directory.
type StagedFile struct {
	Metric string
	Date   time.Time
	Path   string
}

// StagedName returns the file name for metric downloaded on day.
func StagedName(metric string, day time.Time) string {
	return metric + "_" + day.Format(stagedDateLayout) + ".csv"
}

// parseStagedName splits "{metric}_{YYYYMMDD}.csv". The date is the token
// after the last underscore, interpreted in loc.
func parseStagedName(name string, loc *time.Location) (string, time.Time, error) {
	stem, ok := strings.CutSuffix(filepath.Base(name), ".csv")
	if !ok {
		return "", time.Time{}, fmt.Errorf("%s: not a .csv file", name)
	}
	i := strings.LastIndex(stem, "_")
	if i <= 0 {
		return "", time.Time{}, fmt.Errorf("%s: no date suffix", name)
	}
	d, err := time.ParseInLocation(stagedDateLayout, stem[i+1:], loc)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: bad date suffix: %w", name, err)
	}
	return stem[:i], d, nil
}

// LatestStaged returns the staged file for metric with the most recent date
// suffix. Files whose name does not parse are ignored. The error matches
// ErrNoStagedFile and os.ErrNotExist when nothing qualifies.
func LatestStaged(fs afero.Fs, dir, metric string) (StagedFile, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil && !os.IsNotExist(err) {
		return StagedFile{}, fmt.Errorf("read staging dir %s: %w", dir, err)
	}

	var latest StagedFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m, d, err := parseStagedName(e.Name(), time.UTC)
		if err != nil || m != metric {
			continue
		}
		if latest.Path == "" || d.After(latest.Date) {
			latest = StagedFile{Metric: metric, Date: d, Path: filepath.Join(dir, e.Name())}
		}
	}
	if latest.Path == "" {
		return StagedFile{}, fmt.Errorf("%w for %q in %s: %w", ErrNoStagedFile, metric, dir, os.ErrNotExist)
	}
	return latest, nil
}
