package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by this package matches exactly one of
// them with errors.Is.
var (
	ErrDownload         = errors.New("download failed")
	ErrSchemaValidation = errors.New("schema validation failed")
	ErrTransform        = errors.New("transform failed")
	ErrLoad             = errors.New("load failed")
	ErrNoStagedFile     = errors.New("no staged file")
)

// MetricError ties a failure to the metric being processed.
type MetricError struct {
	Metric string
	Kind   error
	Err    error
}

func (e *MetricError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Metric, e.Kind, e.Err)
}

func (e *MetricError) Unwrap() []error { return []error{e.Kind, e.Err} }

// SchemaError lists the columns that failed validation.
type SchemaError struct {
	Metric     string
	Missing    []string
	NonNumeric []string
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required columns in %s data: [%s]", e.Metric, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("non-numeric values in %s columns: [%s]", e.Metric, strings.Join(e.NonNumeric, ", "))
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchemaValidation }
