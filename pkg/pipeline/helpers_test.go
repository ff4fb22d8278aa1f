package pipeline

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hazyhaar/covid-pipeline/pkg/table"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func openTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := OpenRunStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenRunStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeUnit returns canned metadata and error, optionally blocking until
// release is closed.
type fakeUnit struct {
	name    string
	deps    string
	meta    map[string]any
	err     error
	started chan struct{}
	release chan struct{}
	calls   int
}

func (u *fakeUnit) Name() string { return u.name }

func (u *fakeUnit) Run(ctx context.Context) (map[string]any, error) {
	u.calls++
	if u.started != nil {
		close(u.started)
	}
	if u.release != nil {
		select {
		case <-u.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	meta := map[string]any{}
	for k, v := range u.meta {
		meta[k] = v
	}
	return meta, u.err
}

// dependentUnit wraps fakeUnit with a prerequisite.
type dependentUnit struct {
	*fakeUnit
}

func (u dependentUnit) DependsOn() string { return u.deps }

// memStore is an in-memory ingest destination.
type memStore struct {
	mu     sync.Mutex
	tables map[string]*table.LongTable
	execs  []string
	closed bool
}

func (s *memStore) Register(_ context.Context, name string, t *table.LongTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables == nil {
		s.tables = map[string]*table.LongTable{}
	}
	s.tables[name] = t
	return nil
}

func (s *memStore) Exec(_ context.Context, query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs = append(s.execs, query)
	return nil
}

func (s *memStore) Close() error {
	s.closed = true
	return nil
}
