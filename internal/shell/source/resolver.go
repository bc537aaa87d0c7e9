package source

import (
	"context"
	"database/sql"
	"fmt"

	"insights-export/internal/clients/rowsource"
	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
	"insights-export/internal/shell/render"
)

// Resolver binds a query spec to the row source of its kind and the default
// tabular renderer. Backends left nil are reported as unknown sources.
type Resolver struct {
	postgres Querier
	sqlite   *sql.DB
	remote   *rowsource.Client
}

var _ ports.SourceResolver = (*Resolver)(nil)

func NewResolver(postgres Querier, sqlite *sql.DB, remote *rowsource.Client) *Resolver {
	return &Resolver{postgres: postgres, sqlite: sqlite, remote: remote}
}

func (r *Resolver) Resolve(ctx context.Context, query domain.QuerySpec) (ports.QueryBinding, error) {
	var src ports.RowSource

	switch query.Source {
	case domain.SourcePostgres:
		if r.postgres == nil {
			return ports.QueryBinding{}, fmt.Errorf("%w: postgres source is not configured", domain.ErrUnknownSource)
		}
		if query.Statement == "" {
			return ports.QueryBinding{}, fmt.Errorf("%w: statement is required", domain.ErrInvalidQuery)
		}
		src = NewPgxSource(r.postgres, query)
	case domain.SourceSQLite:
		if r.sqlite == nil {
			return ports.QueryBinding{}, fmt.Errorf("%w: sqlite source is not configured", domain.ErrUnknownSource)
		}
		if query.Statement == "" {
			return ports.QueryBinding{}, fmt.Errorf("%w: statement is required", domain.ErrInvalidQuery)
		}
		src = NewSQLSource(r.sqlite, query)
	case domain.SourceHTTP:
		if r.remote == nil {
			return ports.QueryBinding{}, fmt.Errorf("%w: query service is not configured", domain.ErrUnknownSource)
		}
		src = NewHTTPSource(r.remote, query)
	default:
		return ports.QueryBinding{}, fmt.Errorf("%w: %s", domain.ErrUnknownSource, query.Source)
	}

	renderer := render.New(query.Columns)
	if lister, ok := src.(ports.ColumnLister); ok && len(query.Columns) == 0 {
		renderer = renderer.WithColumnLister(lister)
	}
	return ports.QueryBinding{Source: src, Renderer: renderer}, nil
}
