package executor

import (
	"context"
	"log"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
)

// NullCompletionNotifier is a no-op implementation of CompletionNotifier
// that does nothing when notifications are disabled (null object pattern)
type NullCompletionNotifier struct{}

var _ ports.CompletionNotifier = (*NullCompletionNotifier)(nil)

// NewNullCompletionNotifier creates a new null notifier
func NewNullCompletionNotifier() *NullCompletionNotifier {
	return &NullCompletionNotifier{}
}

// ExportFinished does nothing - this is a no-op implementation
func (n *NullCompletionNotifier) ExportFinished(ctx context.Context, job domain.ExportJob, outcome domain.JobOutcome) error {
	log.Printf("[DEBUG] No notifier configured - skipping completion notification for export: %s", job.ID)
	return nil
}
