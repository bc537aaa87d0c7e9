package messaging

import (
	"encoding/json"
	"time"

	"insights-export/internal/core/domain"
)

const (
	NotificationVersion     = "v1.2.0"
	NotificationBundle      = "rhel"
	NotificationApplication = "insights-export"

	EventExportCompleted = "export-completed"
	EventExportFailed    = "export-failed"
)

// NotificationMessage represents the structure for platform notification events
// Based on the notifications-backend message format
type NotificationMessage struct {
	Version     string                 `json:"version"`
	Bundle      string                 `json:"bundle"`
	Application string                 `json:"application"`
	EventType   string                 `json:"event_type"`
	Timestamp   string                 `json:"timestamp"` // RFC3339 format
	AccountID   string                 `json:"account_id"`
	OrgID       string                 `json:"org_id"`
	Context     map[string]interface{} `json:"context"`
	Events      []Event                `json:"events"`
	Recipients  []Recipient            `json:"recipients"`
}

type Event struct {
	Metadata map[string]interface{} `json:"metadata"`
	Payload  map[string]interface{} `json:"payload"`
}

// Recipient narrows delivery to specific users of the org
type Recipient struct {
	OnlyAdmins            bool     `json:"only_admins"`
	IgnoreUserPreferences bool     `json:"ignore_user_preferences"`
	Users                 []string `json:"users"`
}

// NewExportNotification creates the notification announcing an export outcome
// to the user who requested it.
func NewExportNotification(job domain.ExportJob, outcome domain.JobOutcome, now time.Time) *NotificationMessage {
	context := map[string]interface{}{
		"export_id": job.ID,
		"name":      job.Name,
		"format":    string(job.Format),
		"status":    string(outcome.Status),
	}

	payload := map[string]interface{}{
		"export_id":  job.ID,
		"rows_total": job.RowsTotal,
	}

	eventType := EventExportCompleted
	if outcome.IsCompleted() {
		context["download_url"] = outcome.ArtifactURI
		context["auto_download"] = outcome.AutoDownload
		payload["download_url"] = outcome.ArtifactURI
	} else {
		eventType = EventExportFailed
		context["error_kind"] = string(outcome.Reason)
		context["error_message"] = outcome.Message
		payload["error_message"] = outcome.Message
	}

	recipients := []Recipient{}
	if job.Username != "" {
		recipients = append(recipients, Recipient{Users: []string{job.Username}})
	}

	return &NotificationMessage{
		Version:     NotificationVersion,
		Bundle:      NotificationBundle,
		Application: NotificationApplication,
		EventType:   eventType,
		Timestamp:   now.UTC().Format(time.RFC3339),
		OrgID:       job.OrgID,
		Context:     context,
		Events: []Event{{
			Metadata: map[string]interface{}{},
			Payload:  payload,
		}},
		Recipients: recipients,
	}
}

// ToJSON converts the notification message to JSON bytes
func (n *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}
