package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"insights-export/internal/core/domain"
)

func TestParseJobFile(t *testing.T) {
	data := []byte(`
name: weekly hosts
org_id: "12345"
username: jdoe
query:
  name: hosts
  source: sqlite
  statement: SELECT id, name FROM hosts ORDER BY id
  columns: [id, name]
format: xlsx
chunk_size: 250
row_cap: 1000
auto_download: true
`)

	req, err := parseJobFile(data, "")
	if err != nil {
		t.Fatalf("parseJobFile failed: %v", err)
	}

	if req.Name != "weekly hosts" || req.OrgID != "12345" || req.Username != "jdoe" {
		t.Errorf("Unexpected request identity %+v", req)
	}
	if req.UserID != "cli" {
		t.Errorf("Expected default user id, got %q", req.UserID)
	}
	if req.Query.Source != domain.SourceSQLite || len(req.Query.Columns) != 2 {
		t.Errorf("Unexpected query %+v", req.Query)
	}
	if req.Format != domain.FormatXLSX || req.ChunkSize != 250 || req.RowCap != 1000 || !req.AutoDownload {
		t.Errorf("Unexpected options %+v", req)
	}
}

func TestParseJobFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
		wantMsg string
	}{
		{"malformed", "query: [", nil, "failed to parse YAML"},
		{"unknown field", "org_id: o\nformat: csv\nsheet: 1\n", nil, "failed to parse YAML"},
		{"missing org", "format: csv\nquery: {name: q, source: sqlite}\n", nil, "org_id is required"},
		{"invalid format", "org_id: o\nformat: pdf\nquery: {name: q, source: sqlite}\n", domain.ErrInvalidFormat, ""},
		{"invalid source", "org_id: o\nformat: csv\nquery: {name: q, source: mongo}\n", domain.ErrInvalidQuery, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseJobFile([]byte(tt.data), "")
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestLoadJobFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	if err := os.WriteFile(path, []byte("org_id: o\nformat: json\nquery: {name: q, source: http}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	req, err := loadJobFile(path)
	if err != nil {
		t.Fatalf("loadJobFile failed: %v", err)
	}
	if req.Format != domain.FormatJSON || req.Query.Source != domain.SourceHTTP {
		t.Errorf("Unexpected request %+v", req)
	}

	if _, err := loadJobFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestParseJobFileOrgFallback(t *testing.T) {
	data := []byte("format: csv\nquery: {name: q, source: sqlite}\n")

	req, err := parseJobFile(data, "flag-org")
	if err != nil {
		t.Fatalf("parseJobFile failed: %v", err)
	}
	if req.OrgID != "flag-org" {
		t.Errorf("Expected org from flag, got %q", req.OrgID)
	}

	req, err = parseJobFile([]byte("org_id: file-org\nformat: csv\nquery: {name: q, source: sqlite}\n"), "flag-org")
	if err != nil {
		t.Fatalf("parseJobFile failed: %v", err)
	}
	if req.OrgID != "file-org" {
		t.Errorf("Expected org from file, got %q", req.OrgID)
	}
}

func TestToClientRequest(t *testing.T) {
	req, err := parseJobFile([]byte(`
org_id: o
format: xml
chunk_size: 10
query:
  name: q
  source: postgres
  statement: SELECT 1 WHERE a = $1
  args: [x]
`), "")
	if err != nil {
		t.Fatalf("parseJobFile failed: %v", err)
	}

	out := toClientRequest(req)
	if out.Format != "xml" || out.ChunkSize != 10 || out.Query.Source != "postgres" || out.Query.Args[0] != "x" {
		t.Errorf("Unexpected client request %+v", out)
	}
}
