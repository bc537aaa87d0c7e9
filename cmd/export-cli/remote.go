package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"insights-export/internal/clients/export"
	"insights-export/internal/core/domain"
)

// remoteCommand drives a running export service over its REST API
func remoteCommand() *cobra.Command {
	var baseURL, orgID, username, userID string
	var client *export.Client

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage exports through a running export service",
		// Overrides the root hook so no local storage is opened
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			client, err = export.NewClient(baseURL, orgID, username, userID)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {},
	}

	cmd.PersistentFlags().StringVar(&baseURL, "url", envOr("EXPORT_API_URL", "http://localhost:8000/api/export/v1"), "Export API base URL")
	cmd.PersistentFlags().StringVar(&orgID, "org", os.Getenv("EXPORT_ORG_ID"), "Organization ID")
	cmd.PersistentFlags().StringVar(&username, "user", envOr("EXPORT_USERNAME", "cli"), "Username")
	cmd.PersistentFlags().StringVar(&userID, "user-id", envOr("EXPORT_USER_ID", "cli"), "User ID")

	var jobFile string
	create := &cobra.Command{
		Use:   "create",
		Short: "Plan an export from a YAML job file",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRemoteRequest(jobFile, orgID)
			if err != nil {
				return err
			}
			resp, err := client.CreateExport(cmd.Context(), req)
			if err != nil {
				return err
			}
			printRemoteExport(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	create.Flags().StringVarP(&jobFile, "file", "f", "", "YAML job file")
	create.MarkFlagRequired("file")

	var statusFilter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			var params export.ListParams
			if statusFilter != "" {
				s := export.Status(statusFilter)
				params.Status = &s
			}
			resp, err := client.ListExports(cmd.Context(), &params)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Found %d exports:\n", resp.Meta.Count)
			for _, e := range resp.Data {
				fmt.Fprintf(cmd.OutOrStdout(), "- %s (%s): %s [%s] %d/%d rows\n",
					e.Name, e.ID, e.Status, e.Format, e.RowsProcessed, e.RowsTotal)
			}
			return nil
		},
	}
	list.Flags().StringVar(&statusFilter, "status", "", "Filter by status")

	status := &cobra.Command{
		Use:   "status <export-id>",
		Short: "Show the progress of an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.GetExport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRemoteExport(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	step := &cobra.Command{
		Use:   "step <export-id>",
		Short: "Process the next chunk of an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.StepExport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d rows (%.0f%%)\n", resp.RowsProcessed, resp.RowsTotal, resp.FractionComplete*100)
			return nil
		},
	}

	run := &cobra.Command{
		Use:   "run <export-id>",
		Short: "Step an export to completion and finalize it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.RunExport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printRemoteOutcome(cmd.OutOrStdout(), resp)
		},
	}

	finalize := &cobra.Command{
		Use:   "finalize <export-id>",
		Short: "Finalize an export whose rows are all written",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.FinalizeExport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printRemoteOutcome(cmd.OutOrStdout(), resp)
		},
	}

	var output string
	download := &cobra.Command{
		Use:   "download <export-id>",
		Short: "Download a finished artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			n, err := client.DownloadExport(cmd.Context(), args[0], w)
			if err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Export downloaded to %s (%d bytes)\n", output, n)
			}
			return nil
		},
	}
	download.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")

	del := &cobra.Command{
		Use:   "delete <export-id>",
		Short: "Delete an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.DeleteExport(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Export %s deleted successfully\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(create, list, status, step, run, finalize, download, del)
	return cmd
}

// loadRemoteRequest reads a job file for the API; identity comes from flags
func loadRemoteRequest(path, orgID string) (export.ExportRequest, error) {
	req, err := loadJobFileFor(path, orgID)
	if err != nil {
		return export.ExportRequest{}, err
	}
	return toClientRequest(req), nil
}

func toClientRequest(req domain.ExportRequest) export.ExportRequest {
	return export.ExportRequest{
		Name: req.Name,
		Query: export.Query{
			Name:      req.Query.Name,
			Source:    string(req.Query.Source),
			Statement: req.Query.Statement,
			Args:      req.Query.Args,
			Params:    req.Query.Params,
			Columns:   req.Query.Columns,
		},
		Format:       export.Format(req.Format),
		ChunkSize:    req.ChunkSize,
		RowCap:       req.RowCap,
		FileName:     req.FileName,
		AutoDownload: req.AutoDownload,
	}
}

func printRemoteExport(w io.Writer, e *export.ExportResponse) {
	fmt.Fprintf(w, "Export Details:\n")
	fmt.Fprintf(w, "  ID: %s\n", e.ID)
	fmt.Fprintf(w, "  Name: %s\n", e.Name)
	fmt.Fprintf(w, "  Format: %s\n", e.Format)
	fmt.Fprintf(w, "  Status: %s\n", e.Status)
	fmt.Fprintf(w, "  Progress: %d/%d rows (%.0f%%)\n", e.RowsProcessed, e.RowsTotal, e.FractionComplete*100)
	if e.DownloadURL != "" {
		fmt.Fprintf(w, "  Download: %s\n", e.DownloadURL)
	}
	if e.Error != nil {
		fmt.Fprintf(w, "  Error: %s\n", e.Error.Message)
	}
}

func printRemoteOutcome(w io.Writer, o *export.OutcomeResponse) error {
	fmt.Fprintf(w, "Export %s %s\n", o.ID, o.Status)
	if o.DownloadURL != "" {
		fmt.Fprintf(w, "  Download: %s\n", o.DownloadURL)
		return nil
	}
	fmt.Fprintf(w, "  Reason: %s\n", o.Message)
	return fmt.Errorf("export %s failed: %s", o.ID, o.Reason)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
