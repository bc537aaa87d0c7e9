package usecases

import (
	"context"
	"errors"
	"testing"

	"insights-export/internal/core/domain"
)

func TestFinalizer(t *testing.T) {
	job := domain.ExportJob{ID: "job-1", OutputPath: "/exports/org-1/user-1/job-1/a.csv", AutoDownload: true}
	complete := domain.ProgressState{RowsProcessed: 10, RowsTotal: 10}
	downloadURL := func(j domain.ExportJob) string { return "/api/export/v1/exports/" + j.ID + "/download" }

	tests := []struct {
		name       string
		content    []byte
		missing    bool
		gate       *fakeGate
		wantStatus domain.OutcomeStatus
		wantReason domain.ErrorKind
		wantCalls  int
	}{
		{
			name:       "allowed",
			content:    []byte("id\n1\n"),
			gate:       &fakeGate{decision: domain.AccessAllow},
			wantStatus: domain.OutcomeCompleted,
			wantCalls:  1,
		},
		{
			name:       "denied",
			content:    []byte("id\n1\n"),
			gate:       &fakeGate{decision: domain.AccessDeny},
			wantStatus: domain.OutcomeFailed,
			wantReason: domain.KindAccessDenied,
			wantCalls:  1,
		},
		{
			name:       "gate error",
			content:    []byte("id\n1\n"),
			gate:       &fakeGate{err: errBoom},
			wantStatus: domain.OutcomeFailed,
			wantReason: domain.KindAccessDenied,
			wantCalls:  1,
		},
		{
			name:       "missing artifact",
			missing:    true,
			gate:       &fakeGate{decision: domain.AccessAllow},
			wantStatus: domain.OutcomeFailed,
			wantReason: domain.KindArtifactMissing,
		},
		{
			name:       "empty artifact",
			content:    []byte{},
			gate:       &fakeGate{decision: domain.AccessAllow},
			wantStatus: domain.OutcomeFailed,
			wantReason: domain.KindArtifactMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			if !tt.missing {
				store.files[job.OutputPath] = tt.content
			}

			outcome, err := NewFinalizer(store, downloadURL).Finalize(context.Background(), job, complete, tt.gate)
			if err != nil {
				t.Fatalf("Finalize failed: %v", err)
			}

			if outcome.JobID != job.ID {
				t.Errorf("Expected job ID %s, got %s", job.ID, outcome.JobID)
			}
			if outcome.Status != tt.wantStatus || outcome.Reason != tt.wantReason {
				t.Errorf("Unexpected outcome %+v", outcome)
			}
			if tt.gate.calls != tt.wantCalls {
				t.Errorf("Expected %d gate calls, got %d", tt.wantCalls, tt.gate.calls)
			}
			if outcome.IsCompleted() {
				if outcome.ArtifactURI != "/api/export/v1/exports/job-1/download" || !outcome.AutoDownload {
					t.Errorf("Unexpected completed outcome %+v", outcome)
				}
			}
			if tt.wantReason == domain.KindAccessDenied && store.files[job.OutputPath] == nil {
				t.Error("Expected denied artifact to be retained")
			}
		})
	}
}

func TestFinalizerIncompleteLedger(t *testing.T) {
	store := newMemoryStore()
	gate := &fakeGate{decision: domain.AccessAllow}
	job := domain.ExportJob{ID: "job-1", OutputPath: "/x.csv"}

	_, err := NewFinalizer(store, nil).Finalize(context.Background(), job, domain.ProgressState{RowsProcessed: 3, RowsTotal: 10}, gate)
	if !errors.Is(err, domain.ErrJobIncomplete) {
		t.Errorf("Expected ErrJobIncomplete, got %v", err)
	}
	if gate.calls != 0 {
		t.Error("Expected gate not to be consulted")
	}
}

func TestFinalizerNothingWritten(t *testing.T) {
	store := newMemoryStore()
	gate := &fakeGate{decision: domain.AccessAllow}
	job := domain.ExportJob{ID: "job-1", OutputPath: "/x.csv"}
	store.files[job.OutputPath] = []byte("id,value\n")

	outcome, err := NewFinalizer(store, nil).Finalize(context.Background(), job, domain.NewProgressState(10), gate)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if outcome.Status != domain.OutcomeFailed || outcome.Reason != domain.KindArtifactMissing {
		t.Errorf("Expected artifact missing, got %+v", outcome)
	}
	if gate.calls != 0 {
		t.Error("Expected gate not to be consulted")
	}
}

func TestFinalizerDefaultDownloadURL(t *testing.T) {
	store := newMemoryStore()
	job := domain.ExportJob{ID: "job-1", OutputPath: "/x.csv"}
	store.files[job.OutputPath] = []byte("\n")

	outcome, err := NewFinalizer(store, nil).Finalize(context.Background(), job, domain.ProgressState{}, &fakeGate{decision: domain.AccessAllow})
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if outcome.ArtifactURI != "/x.csv" {
		t.Errorf("Expected output path as URI, got %s", outcome.ArtifactURI)
	}
}
