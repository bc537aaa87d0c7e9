//go:build sql
// +build sql

package source

import (
	"context"
	"os"
	"testing"

	"insights-export/internal/core/domain"
)

func TestPgxSource(t *testing.T) {
	dsn := os.Getenv("SOURCE_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SOURCE_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := OpenPgxPool(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPgxPool failed: %v", err)
	}
	defer pool.Close()

	src := NewPgxSource(pool, domain.QuerySpec{
		Statement: "SELECT g AS id, g * 1.5 AS score FROM generate_series(1, $1::int) AS g ORDER BY g",
		Args:      []string{"25"},
	})

	count, err := src.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 25 {
		t.Errorf("Expected 25 rows, got %d", count)
	}

	rows, err := src.Fetch(ctx, 20, 10)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("Expected 5 rows, got %d", len(rows))
	}
	if id, _ := rows[0].Value("id"); id != "21" {
		t.Errorf("Expected id 21, got %s", id)
	}
	if score, _ := rows[0].Value("score"); score != "31.5" {
		t.Errorf("Expected score 31.5, got %s", score)
	}
}

func TestPgxSourceColumns(t *testing.T) {
	dsn := os.Getenv("SOURCE_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SOURCE_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := OpenPgxPool(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPgxPool failed: %v", err)
	}
	defer pool.Close()

	src := NewPgxSource(pool, domain.QuerySpec{
		Statement: "SELECT g AS id, g::text AS name FROM generate_series(1, 0) AS g ORDER BY g",
	})
	columns, err := src.Columns(ctx)
	if err != nil {
		t.Fatalf("Columns failed: %v", err)
	}
	if len(columns) != 2 || columns[0] != "id" || columns[1] != "name" {
		t.Errorf("Unexpected columns %v", columns)
	}
}
