// CLAUDE:SUMMARY DuckDB destination table store: bulk-registers long tables, runs SQL, reports per-table stats.
package duckstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/covid-pipeline/pkg/table"
	"github.com/marcboeker/go-duckdb/v2"
)

// Store wraps a DuckDB database file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the DuckDB file at path. An empty path opens an
// in-memory database. The pool is limited to one connection so session
// state is shared by every call.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open duckdb %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Exec runs a single statement.
func (s *Store) Exec(ctx context.Context, query string) error {
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Register creates (or replaces) table name with the long-table schema and
// bulk appends every row of t.
func (s *Store) Register(ctx context.Context, name string, t *table.LongTable) error {
	ddl := fmt.Sprintf(`CREATE OR REPLACE TABLE %s (
		%s VARCHAR,
		%s VARCHAR,
		%s DOUBLE,
		%s DOUBLE,
		%s DATE,
		%s DOUBLE
	)`, QuoteIdent(name),
		QuoteIdent(table.ColProvinceState), QuoteIdent(table.ColCountryRegion),
		QuoteIdent(table.ColLat), QuoteIdent(table.ColLong),
		QuoteIdent(table.ColDate), QuoteIdent(t.Metric))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.Raw(func(dc any) error {
		app, err := duckdb.NewAppenderFromConn(dc.(driver.Conn), "", name)
		if err != nil {
			return fmt.Errorf("appender for %s: %w", name, err)
		}
		for _, r := range t.Rows {
			if err := app.AppendRow(r.ProvinceState, r.CountryRegion, r.Lat, r.Long, r.Date, r.Value); err != nil {
				app.Close()
				return fmt.Errorf("append to %s: %w", name, err)
			}
		}
		return app.Close()
	})
}

// TableStats summarizes a destination table.
type TableStats struct {
	Table   string     `json:"table"`
	Rows    int64      `json:"rows"`
	MinDate *time.Time `json:"min_date,omitempty"`
	MaxDate *time.Time `json:"max_date,omitempty"`
}

// Stats returns row count and date range of tbl.
func (s *Store) Stats(ctx context.Context, tbl string) (TableStats, error) {
	st := TableStats{Table: tbl}
	var minD, maxD sql.NullTime
	q := fmt.Sprintf("SELECT count(*), min(%s), max(%s) FROM %s",
		QuoteIdent(table.ColDate), QuoteIdent(table.ColDate), QuoteIdent(tbl))
	if err := s.db.QueryRowContext(ctx, q).Scan(&st.Rows, &minD, &maxD); err != nil {
		return st, fmt.Errorf("stats %s: %w", tbl, err)
	}
	if minD.Valid {
		st.MinDate = &minD.Time
	}
	if maxD.Valid {
		st.MaxDate = &maxD.Time
	}
	return st, nil
}

// Tables lists tables whose name starts with prefix, sorted.
func (s *Store) Tables(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'main' AND starts_with(table_name, ?)
		 ORDER BY table_name`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Inventory opens the database at path and returns stats for every table
// whose name starts with prefix.
func Inventory(ctx context.Context, path, prefix string) (_ []TableStats, err error) {
	s, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	names, err := s.Tables(ctx, prefix)
	if err != nil {
		return nil, err
	}
	stats := make([]TableStats, 0, len(names))
	for _, n := range names {
		st, err := s.Stats(ctx, n)
		if err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, nil
}

// Columns returns the column names of tbl in order.
func (s *Store) Columns(ctx context.Context, tbl string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = 'main' AND table_name = ?
		 ORDER BY ordinal_position`, tbl)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", tbl, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// QueryRows runs q and returns every row as a slice of values.
func (s *Store) QueryRows(ctx context.Context, q string, args ...any) ([][]any, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// QuoteIdent quotes a SQL identifier.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
