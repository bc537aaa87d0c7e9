package usecases

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"insights-export/internal/core/domain"
)

func newTestPlanner(store *memoryStore) *Planner {
	p := NewPlanner(store, PlannerConfig{BaseDir: "/exports", DefaultChunkSize: 1000, XLSXRowCap: 5000})
	p.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestPlannerPlan(t *testing.T) {
	tests := []struct {
		name          string
		count         int
		modify        func(*domain.ExportRequest)
		wantTotal     int
		wantChunkSize int
	}{
		{
			name:          "defaults chunk size from config",
			count:         2500,
			wantTotal:     2500,
			wantChunkSize: 1000,
		},
		{
			name:          "row cap below count",
			count:         2500,
			modify:        func(r *domain.ExportRequest) { r.RowCap = 100; r.ChunkSize = 30 },
			wantTotal:     100,
			wantChunkSize: 30,
		},
		{
			name:          "row cap above count",
			count:         50,
			modify:        func(r *domain.ExportRequest) { r.RowCap = 100 },
			wantTotal:     50,
			wantChunkSize: 1000,
		},
		{
			name:          "xlsx capped by configuration",
			count:         9000,
			modify:        func(r *domain.ExportRequest) { r.Format = domain.FormatXLSX },
			wantTotal:     5000,
			wantChunkSize: 1000,
		},
		{
			name:          "xlsx keeps smaller requested cap",
			count:         9000,
			modify:        func(r *domain.ExportRequest) { r.Format = domain.FormatXLSX; r.RowCap = 10 },
			wantTotal:     10,
			wantChunkSize: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			source := &fakeRowSource{total: tt.count}
			req := csvRequest()
			if tt.modify != nil {
				tt.modify(&req)
			}

			job, progress, err := newTestPlanner(store).Plan(context.Background(), req, source, &csvRenderer{})
			if err != nil {
				t.Fatalf("Plan failed: %v", err)
			}

			if source.countCalls != 1 {
				t.Errorf("Expected Count to be called once, got %d", source.countCalls)
			}
			if job.RowsTotal != tt.wantTotal || progress.RowsTotal != tt.wantTotal {
				t.Errorf("Expected rows total %d, got job=%d ledger=%d", tt.wantTotal, job.RowsTotal, progress.RowsTotal)
			}
			if job.ChunkSize != tt.wantChunkSize {
				t.Errorf("Expected chunk size %d, got %d", tt.wantChunkSize, job.ChunkSize)
			}
			if progress.RowsProcessed != 0 || !progress.IsFirstStep {
				t.Errorf("Expected fresh ledger, got %+v", progress)
			}
			if len(source.fetches) != 0 {
				t.Errorf("Expected no fetches during planning, got %v", source.fetches)
			}
		})
	}
}

func TestPlannerDefaultRowCap(t *testing.T) {
	p := NewPlanner(newMemoryStore(), PlannerConfig{BaseDir: "/exports", DefaultChunkSize: 10, DefaultRowCap: 20})

	tests := []struct {
		name      string
		requested int
		wantTotal int
	}{
		{"default applies", 0, 20},
		{"request overrides default", 5, 5},
		{"request above default", 50, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := csvRequest()
			req.RowCap = tt.requested
			job, _, err := p.Plan(context.Background(), req, &fakeRowSource{total: 100}, &csvRenderer{})
			if err != nil {
				t.Fatalf("Plan failed: %v", err)
			}
			if job.RowsTotal != tt.wantTotal {
				t.Errorf("Expected %d rows, got %d", tt.wantTotal, job.RowsTotal)
			}
		})
	}
}

func TestPlannerOutputPath(t *testing.T) {
	store := newMemoryStore()
	req := csvRequest()
	req.FileName = "../weekly report.csv"

	job, _, err := newTestPlanner(store).Plan(context.Background(), req, &fakeRowSource{total: 3}, &csvRenderer{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	expected := filepath.Join("/exports", "org-1", "user-1", job.ID, ".._weekly_report.csv")
	if job.OutputPath != expected {
		t.Errorf("Expected path %s, got %s", expected, job.OutputPath)
	}
	if _, ok := store.files[job.OutputPath]; !ok {
		t.Error("Expected artifact to be initialised at plan time")
	}
}

func TestPlannerDefaultFileName(t *testing.T) {
	job, _, err := newTestPlanner(newMemoryStore()).Plan(context.Background(), csvRequest(), &fakeRowSource{total: 3}, &csvRenderer{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if job.FileName != "systems_20260301_120000.csv" {
		t.Errorf("Unexpected file name %s", job.FileName)
	}
	if job.Name != "systems" {
		t.Errorf("Expected name to default to the query name, got %s", job.Name)
	}
}

func TestPlannerDistinctJobs(t *testing.T) {
	store := newMemoryStore()
	planner := newTestPlanner(store)

	job1, _, _ := planner.Plan(context.Background(), csvRequest(), &fakeRowSource{total: 3}, &csvRenderer{})
	other := csvRequest()
	other.UserID = "user-2"
	job2, _, _ := planner.Plan(context.Background(), other, &fakeRowSource{total: 3}, &csvRenderer{})

	if job1.ID == job2.ID || job1.OutputPath == job2.OutputPath {
		t.Errorf("Expected concurrent jobs to be isolated: %s / %s", job1.OutputPath, job2.OutputPath)
	}
}

func TestPlannerErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*domain.ExportRequest)
		source  *fakeRowSource
		store   func() *memoryStore
		wantErr error
	}{
		{
			name:    "negative chunk size",
			modify:  func(r *domain.ExportRequest) { r.ChunkSize = -1 },
			wantErr: domain.ErrInvalidChunkSize,
		},
		{
			name:    "invalid format",
			modify:  func(r *domain.ExportRequest) { r.Format = "pdf" },
			wantErr: domain.ErrInvalidFormat,
		},
		{
			name:    "missing org",
			modify:  func(r *domain.ExportRequest) { r.OrgID = "" },
			wantErr: domain.ErrInvalidOrgID,
		},
		{
			name:    "org not usable as a directory name",
			modify:  func(r *domain.ExportRequest) { r.OrgID = "a b" },
			wantErr: domain.ErrInvalidOrgID,
		},
		{
			name:    "count failure",
			source:  &fakeRowSource{countFunc: func() (int, error) { return 0, errBoom }},
			wantErr: domain.ErrPlanning,
		},
		{
			name: "prepare failure",
			store: func() *memoryStore {
				s := newMemoryStore()
				s.prepareFunc = func(string) error { return errBoom }
				return s
			},
			wantErr: domain.ErrPlanning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := csvRequest()
			if tt.modify != nil {
				tt.modify(&req)
			}
			source := tt.source
			if source == nil {
				source = &fakeRowSource{total: 10}
			}
			store := newMemoryStore()
			if tt.store != nil {
				store = tt.store()
			}

			_, _, err := newTestPlanner(store).Plan(context.Background(), req, source, &csvRenderer{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPlannerDefaultChunkSizeInvalid(t *testing.T) {
	p := NewPlanner(newMemoryStore(), PlannerConfig{BaseDir: "/exports"})
	_, _, err := p.Plan(context.Background(), csvRequest(), &fakeRowSource{total: 1}, &csvRenderer{})
	if !errors.Is(err, domain.ErrInvalidChunkSize) {
		t.Errorf("Expected ErrInvalidChunkSize, got %v", err)
	}
}

func TestPlannerEmptyResultSet(t *testing.T) {
	tests := []struct {
		name     string
		format   domain.Format
		renderer *csvRenderer
		expected string
	}{
		{"csv header only", domain.FormatCSV, &csvRenderer{}, "id,value\n"},
		{"json empty array", domain.FormatJSON, &csvRenderer{}, "[\n]\n"},
		{
			name:   "renderer failure falls back to minimal document",
			format: domain.FormatJSON,
			renderer: &csvRenderer{renderFunc: func([]domain.RenderedRow, domain.Format) ([]byte, error) {
				return nil, errBoom
			}},
			expected: "[]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			req := csvRequest()
			req.Format = tt.format

			job, progress, err := newTestPlanner(store).Plan(context.Background(), req, &fakeRowSource{total: 0}, tt.renderer)
			if err != nil {
				t.Fatalf("Plan failed: %v", err)
			}

			if !progress.IsComplete() || progress.FractionComplete() != 1.0 {
				t.Errorf("Expected complete ledger, got %+v", progress)
			}
			if got := store.content(job.OutputPath); got != tt.expected {
				t.Errorf("Expected artifact %q, got %q", tt.expected, got)
			}
			if !strings.HasSuffix(job.OutputPath, tt.format.Extension()) {
				t.Errorf("Unexpected extension in %s", job.OutputPath)
			}
		})
	}
}
