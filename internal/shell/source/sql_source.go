package source

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
)

// SQLSource pages through the result of a SQL statement on a database/sql
// connection using ? placeholders (SQLite).
type SQLSource struct {
	db        *sql.DB
	statement string
	args      []any
}

var (
	_ ports.RowSource    = (*SQLSource)(nil)
	_ ports.ColumnLister = (*SQLSource)(nil)
)

func NewSQLSource(db *sql.DB, query domain.QuerySpec) *SQLSource {
	return &SQLSource{
		db:        db,
		statement: query.Statement,
		args:      toAnyArgs(query.Args),
	}
}

// OpenSQLite opens the SQLite database queried by sqlite sources
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open source database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping source database: %w", err)
	}
	return db, nil
}

func (s *SQLSource) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT count(*) FROM (%s) AS export_src", s.statement)

	var count int
	if err := s.db.QueryRowContext(ctx, query, s.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return count, nil
}

func (s *SQLSource) Fetch(ctx context.Context, offset, limit int) ([]domain.RenderedRow, error) {
	query := fmt.Sprintf("SELECT * FROM (%s) AS export_src LIMIT ? OFFSET ?", s.statement)
	args := append(append([]any{}, s.args...), limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var result []domain.RenderedRow
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		text := make([]string, len(values))
		for i, v := range values {
			text[i] = textValue(v)
		}
		result = append(result, domain.NewRenderedRow(columns, text))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// Columns returns the result columns of the statement without reading rows
func (s *SQLSource) Columns(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT * FROM (%s) AS export_src LIMIT 0", s.statement)

	rows, err := s.db.QueryContext(ctx, query, s.args...)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	return columns, rows.Err()
}
