package source

import (
	"context"
	"fmt"

	"insights-export/internal/clients/rowsource"
	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
	"insights-export/internal/identity"
)

// HTTPSource reads a named query from the remote query service, acting as the
// identity carried by the context.
type HTTPSource struct {
	client *rowsource.Client
	query  domain.QuerySpec
}

var _ ports.RowSource = (*HTTPSource)(nil)

func NewHTTPSource(client *rowsource.Client, query domain.QuerySpec) *HTTPSource {
	return &HTTPSource{client: client, query: query}
}

func identityHeader(ctx context.Context) (string, error) {
	ident, ok := identity.FromContext(ctx)
	if !ok {
		return "", fmt.Errorf("no identity in context")
	}
	return identity.EncodeHeader(ident)
}

func (s *HTTPSource) Count(ctx context.Context) (int, error) {
	header, err := identityHeader(ctx)
	if err != nil {
		return 0, err
	}
	return s.client.Count(ctx, s.query.Name, s.query.Params, header)
}

func (s *HTTPSource) Fetch(ctx context.Context, offset, limit int) ([]domain.RenderedRow, error) {
	header, err := identityHeader(ctx)
	if err != nil {
		return nil, err
	}

	page, err := s.client.Rows(ctx, s.query.Name, s.query.Params, offset, limit, header)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.RenderedRow, len(page.Rows))
	for i, values := range page.Rows {
		rows[i] = domain.NewRenderedRow(page.Columns, values)
	}
	return rows, nil
}
