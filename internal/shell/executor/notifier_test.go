package executor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"insights-export/internal/core/domain"
	"insights-export/internal/shell/messaging"
)

type fakeSender struct {
	key     string
	value   []byte
	headers map[string]string
	err     error
}

func (s *fakeSender) SendMessage(key string, value []byte, headers map[string]string) error {
	s.key, s.value, s.headers = key, value, headers
	return s.err
}

func TestNotificationsBasedCompletionNotifier(t *testing.T) {
	sender := &fakeSender{}
	notifier := NewNotificationsBasedCompletionNotifier(sender)
	notifier.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	job := domain.ExportJob{ID: "job-1", OrgID: "org-1", Username: "jdoe", Format: domain.FormatCSV}
	outcome := domain.Failed("job-1", domain.KindWrite, "export failed, check storage permissions")

	if err := notifier.ExportFinished(context.Background(), job, outcome); err != nil {
		t.Fatalf("ExportFinished failed: %v", err)
	}

	if sender.key != "org-1" {
		t.Errorf("Expected message keyed by org, got %s", sender.key)
	}
	if sender.headers["rh-message-type"] != messaging.EventExportFailed {
		t.Errorf("Unexpected headers %v", sender.headers)
	}

	var msg messaging.NotificationMessage
	if err := json.Unmarshal(sender.value, &msg); err != nil {
		t.Fatalf("Invalid notification JSON: %v", err)
	}
	if msg.EventType != messaging.EventExportFailed || msg.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("Unexpected notification %+v", msg)
	}
}

func TestNotificationsBasedCompletionNotifierSendError(t *testing.T) {
	boom := errors.New("broker unavailable")
	notifier := NewNotificationsBasedCompletionNotifier(&fakeSender{err: boom})

	err := notifier.ExportFinished(context.Background(), domain.ExportJob{ID: "job-1"}, domain.Completed("job-1", "/x", false))
	if !errors.Is(err, boom) {
		t.Errorf("Expected send error, got %v", err)
	}
}

func TestNewCompletionNotifier(t *testing.T) {
	tests := []struct {
		name    string
		impl    string
		sender  MessageSender
		wantErr bool
	}{
		{"kafka", "kafka", &fakeSender{}, false},
		{"kafka without sender", "kafka", nil, true},
		{"null", "null", nil, false},
		{"default", "", nil, false},
		{"unknown", "email", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier, err := NewCompletionNotifier(tt.impl, tt.sender)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !tt.wantErr && notifier == nil {
				t.Error("Expected notifier")
			}
		})
	}

	if err := NewNullCompletionNotifier().ExportFinished(context.Background(), domain.ExportJob{ID: "job-1"}, domain.JobOutcome{}); err != nil {
		t.Errorf("Null notifier returned error: %v", err)
	}
}
