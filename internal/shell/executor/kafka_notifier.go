package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
	"insights-export/internal/shell/messaging"
)

// NotificationsBasedCompletionNotifier publishes platform notifications for
// finished exports
type NotificationsBasedCompletionNotifier struct {
	sender MessageSender
	now    func() time.Time
}

var _ ports.CompletionNotifier = (*NotificationsBasedCompletionNotifier)(nil)

// NewNotificationsBasedCompletionNotifier creates a new notifications-based notifier
func NewNotificationsBasedCompletionNotifier(sender MessageSender) *NotificationsBasedCompletionNotifier {
	return &NotificationsBasedCompletionNotifier{
		sender: sender,
		now:    time.Now,
	}
}

// ExportFinished sends the export outcome to the notifications topic, keyed by org
func (n *NotificationsBasedCompletionNotifier) ExportFinished(ctx context.Context, job domain.ExportJob, outcome domain.JobOutcome) error {
	log.Printf("[DEBUG] Sending platform notification via Kafka for export: %s", job.ID)

	notification := messaging.NewExportNotification(job, outcome, n.now())
	data, err := notification.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	headers := map[string]string{
		"rh-message-type": notification.EventType,
		"rh-org-id":       job.OrgID,
	}

	if err := n.sender.SendMessage(job.OrgID, data, headers); err != nil {
		log.Printf("[DEBUG] Failed to send platform notification for export %s: %v", job.ID, err)
		return err
	}

	log.Printf("[DEBUG] Platform notification sent successfully for export %s", job.ID)
	return nil
}
