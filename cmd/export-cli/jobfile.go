package main

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"insights-export/internal/core/domain"
)

// loadJobFile reads an export request from a YAML job file
func loadJobFile(path string) (domain.ExportRequest, error) {
	return loadJobFileFor(path, "")
}

// loadJobFileFor reads a job file, using orgID when the file names no org
func loadJobFileFor(path, orgID string) (domain.ExportRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ExportRequest{}, fmt.Errorf("failed to read job file: %w", err)
	}
	return parseJobFile(data, orgID)
}

func parseJobFile(data []byte, orgID string) (domain.ExportRequest, error) {
	var req domain.ExportRequest

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return domain.ExportRequest{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if req.OrgID == "" {
		req.OrgID = orgID
	}
	if req.OrgID == "" {
		return domain.ExportRequest{}, fmt.Errorf("job file: org_id is required")
	}
	if req.UserID == "" {
		req.UserID = "cli"
	}
	if req.Username == "" {
		req.Username = req.UserID
	}
	if err := req.Validate(); err != nil {
		return domain.ExportRequest{}, fmt.Errorf("job file: %w", err)
	}
	return req, nil
}
