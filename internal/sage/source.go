package sage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/alexbrainman/odbc"
)

// Querier is the slice of the ODBC source the prober and reader depend on.
// Satisfied by *Source and by test fakes.
type Querier interface {
	Columns(ctx context.Context, table string) ([]string, error)
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	CountRows(ctx context.Context, table, column string, key int64) (int, error)
}

// Source is a handle on the Sage 50 company database over ODBC.
type Source struct {
	db *sql.DB
}

func Open(connStr string) (*Source, error) {
	if connStr == "" {
		return nil, fmt.Errorf("SAGE_ODBC_CONN environment variable not set")
	}
	db, err := sql.Open("odbc", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open ODBC connection: %w", err)
	}
	// The Pervasive engine dislikes concurrent statements on one handle.
	db.SetMaxOpenConns(1)
	return &Source{db: db}, nil
}

func (s *Source) Close() error {
	return s.db.Close()
}

// Ping verifies the DSN actually answers.
func (s *Source) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ODBC connection failed: %w", err)
	}
	return nil
}

// Columns returns the live column list of a table. database/sql exposes no
// ODBC catalog calls, so an empty result set is fetched for its metadata.
func (s *Source) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM "%s" WHERE 1=0`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	return cols, nil
}

// Query runs a statement and returns all rows as column-keyed maps.
func (s *Source) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CountRows counts rows of table where column equals key.
func (s *Source) CountRows(ctx context.Context, table, column string, key int64) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM "%s" WHERE "%s" = ?`, table, column)
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&count); err != nil {
		return 0, fmt.Errorf("count on %s.%s failed: %w", table, column, err)
	}
	return count, nil
}
