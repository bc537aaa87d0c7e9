package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx
type Querier interface {
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PgxSource pages through the result of a SQL statement on Postgres. The
// statement must carry its own ORDER BY so that offsets are stable.
type PgxSource struct {
	db        Querier
	statement string
	args      []any
}

var (
	_ ports.RowSource    = (*PgxSource)(nil)
	_ ports.ColumnLister = (*PgxSource)(nil)
)

func NewPgxSource(db Querier, query domain.QuerySpec) *PgxSource {
	return &PgxSource{
		db:        db,
		statement: query.Statement,
		args:      toAnyArgs(query.Args),
	}
}

// OpenPgxPool connects to the Postgres database queried by postgres sources
func OpenPgxPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to source database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping source database: %w", err)
	}
	return pool, nil
}

func (s *PgxSource) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT count(*) FROM (%s) AS export_src", s.statement)

	var count int64
	if err := s.db.QueryRow(ctx, query, s.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return int(count), nil
}

func (s *PgxSource) Fetch(ctx context.Context, offset, limit int) ([]domain.RenderedRow, error) {
	argIndex := len(s.args) + 1
	query := fmt.Sprintf("SELECT * FROM (%s) AS export_src LIMIT $%d OFFSET $%d", s.statement, argIndex, argIndex+1)
	args := append(append([]any{}, s.args...), limit, offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	columns := fieldNames(rows)

	var result []domain.RenderedRow
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
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
func (s *PgxSource) Columns(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT * FROM (%s) AS export_src LIMIT 0", s.statement)

	rows, err := s.db.Query(ctx, query, s.args...)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	columns := fieldNames(rows)
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return columns, nil
}

func fieldNames(rows pgx.Rows) []string {
	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
