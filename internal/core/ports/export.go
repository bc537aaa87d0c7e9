package ports

import (
	"context"
	"io"

	"insights-export/internal/core/domain"
)

// RowSource yields pre-formatted rows of one query. Implementations must return
// rows in a stable order so that offset pagination is deterministic.
type RowSource interface {
	// Count returns the total number of rows the query matches
	Count(ctx context.Context) (int, error)

	// Fetch returns up to limit rows starting at offset
	Fetch(ctx context.Context, offset, limit int) ([]domain.RenderedRow, error)
}

// ColumnLister is implemented by row sources that can name their columns
// without returning any rows.
type ColumnLister interface {
	Columns(ctx context.Context) ([]string, error)
}

// Renderer serializes a batch of rows as a complete document of the given format.
type Renderer interface {
	Render(ctx context.Context, rows []domain.RenderedRow, format domain.Format) ([]byte, error)
}

// AccessGate decides whether the requester may read a finished artifact.
type AccessGate interface {
	Check(ctx context.Context, artifactURI string) (domain.AccessDecision, error)
}

// QueryBinding is the row source and renderer a query spec resolves to
type QueryBinding struct {
	Source   RowSource
	Renderer Renderer
}

// SourceResolver rebuilds the collaborators of a job from its serialized query
type SourceResolver interface {
	Resolve(ctx context.Context, query domain.QuerySpec) (QueryBinding, error)
}

// ArtifactStore owns the bytes of export artifacts.
type ArtifactStore interface {
	// Prepare creates parent directories and truncates the artifact
	Prepare(ctx context.Context, path string) error

	// Append adds data to the end of the artifact
	Append(ctx context.Context, path string, data []byte) error

	// Rewrite atomically replaces the whole artifact
	Rewrite(ctx context.Context, path string, data []byte) error

	// Read returns the whole artifact
	Read(ctx context.Context, path string) ([]byte, error)

	// Size returns the artifact size; a missing artifact returns domain.ErrArtifactMissing
	Size(ctx context.Context, path string) (int64, error)

	// Open streams the artifact for download
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Remove deletes the artifact and its job directory
	Remove(ctx context.Context, path string) error
}

// CompletionNotifier is told about every finalized export
type CompletionNotifier interface {
	ExportFinished(ctx context.Context, job domain.ExportJob, outcome domain.JobOutcome) error
}
