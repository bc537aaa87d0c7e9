package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"insights-export/internal/app"
	"insights-export/internal/config"
	"insights-export/internal/core/domain"
	"insights-export/internal/identity"
)

// cli drives exports against local storage without the HTTP API
type cli struct {
	dbPath    string
	outputDir string
	services  *app.Services
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	c := &cli{}
	if err := c.rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "export-cli",
		Short: "Plan, step and finalize chunked exports",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.services != nil {
				c.services.Close()
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite file holding export state (default DB_PATH)")
	root.PersistentFlags().StringVar(&c.outputDir, "output-dir", "", "Artifact directory (default EXPORT_OUTPUT_DIR)")

	root.AddCommand(
		c.planCommand(),
		c.stepCommand(),
		c.runCommand(),
		c.finalizeCommand(),
		c.statusCommand(),
		c.listCommand(),
		c.downloadCommand(),
		c.deleteCommand(),
		remoteCommand(),
	)
	return root
}

// open wires the export engine for local use: SQLite state, no locks, no
// notifications and no remote access checks.
func (c *cli) open(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	cfg.Database.Type = "sqlite"
	if c.dbPath != "" {
		cfg.Database.Path = c.dbPath
	}
	if c.outputDir != "" {
		cfg.Export.OutputDir = c.outputDir
	}
	cfg.Redis.Enabled = false
	cfg.AccessGateImpl = "allow"
	cfg.CompletionNotifierImpl = "null"
	cfg.Driver.InstanceID = "export-cli"

	services, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

// jobContext loads an export and returns a context acting as its requester
func (c *cli) jobContext(ctx context.Context, id string) (context.Context, domain.ExportStatus, error) {
	status, err := c.services.Export.GetExport(ctx, id)
	if err != nil {
		return ctx, domain.ExportStatus{}, err
	}
	return identity.ContextForJob(ctx, status.Job), status, nil
}

func (c *cli) planCommand() *cobra.Command {
	var jobFile string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Count the result set and create an export from a YAML job file",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := c.plan(cmd.Context(), jobFile)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().StringVarP(&jobFile, "file", "f", "", "YAML job file")
	cmd.MarkFlagRequired("file")
	return cmd
}

func (c *cli) plan(ctx context.Context, jobFile string) (domain.ExportStatus, error) {
	req, err := loadJobFile(jobFile)
	if err != nil {
		return domain.ExportStatus{}, err
	}

	job := domain.ExportJob{OrgID: req.OrgID, Username: req.Username, UserID: req.UserID}
	return c.services.Export.CreateExport(identity.ContextForJob(ctx, job), req)
}

func (c *cli) stepCommand() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "step <export-id>",
		Short: "Process the next chunk(s) of an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, status, err := c.jobContext(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for i := 0; i < steps && !status.Run.Progress.IsComplete(); i++ {
				if status, err = c.services.Export.StepExport(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d/%d rows (%.0f%%)\n",
					status.Run.Progress.RowsProcessed, status.Run.Progress.RowsTotal, status.Fraction*100)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&steps, "count", "n", 1, "Number of steps to run")
	return cmd
}

func (c *cli) runCommand() *cobra.Command {
	var jobFile string
	cmd := &cobra.Command{
		Use:   "run [export-id]",
		Short: "Step an export to completion and finalize it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			switch {
			case jobFile != "":
				status, err := c.plan(cmd.Context(), jobFile)
				if err != nil {
					return err
				}
				id = status.Job.ID
				fmt.Fprintf(cmd.OutOrStdout(), "Planned export %s (%d rows)\n", id, status.Run.Progress.RowsTotal)
			case len(args) == 1:
				id = args[0]
			default:
				return fmt.Errorf("an export id or --file is required")
			}

			ctx, _, err := c.jobContext(cmd.Context(), id)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			start := time.Now()
			outcome, err := c.services.Export.RunExport(ctx, id)
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), outcome)
			fmt.Fprintf(cmd.OutOrStdout(), "  Took: %v\n", time.Since(start).Round(time.Millisecond))
			return outcome.Err()
		},
	}
	cmd.Flags().StringVarP(&jobFile, "file", "f", "", "Plan from a YAML job file first")
	return cmd
}

func (c *cli) finalizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <export-id>",
		Short: "Finalize an export whose rows are all written",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, err := c.jobContext(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			outcome, err := c.services.Export.FinalizeExport(ctx, args[0])
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), outcome)
			return outcome.Err()
		},
	}
}

func (c *cli) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <export-id>",
		Short: "Show the progress of an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := c.services.Export.GetExport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func (c *cli) listCommand() *cobra.Command {
	var orgID, statusFilter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the exports of an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, total, err := c.services.Export.ListExports(cmd.Context(), orgID, statusFilter, 0, 0)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Found %d exports:\n", total)
			for _, status := range statuses {
				fmt.Fprintf(cmd.OutOrStdout(), "- %s (%s): %s [%s] %d/%d rows\n",
					status.Job.Name, status.Job.ID, status.Run.Status, status.Job.Format,
					status.Run.Progress.RowsProcessed, status.Run.Progress.RowsTotal)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "Organization ID")
	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status")
	cmd.MarkFlagRequired("org")
	return cmd
}

func (c *cli) downloadCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <export-id>",
		Short: "Copy a finished artifact to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, err := c.jobContext(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			job, artifact, err := c.services.Export.OpenArtifact(ctx, args[0])
			if err != nil {
				return err
			}
			defer artifact.Close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			n, err := io.Copy(w, artifact)
			if err != nil {
				return fmt.Errorf("failed to copy artifact: %w", err)
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Export %s downloaded to %s (%d bytes)\n", job.FileName, output, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func (c *cli) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <export-id>",
		Short: "Delete an export and its artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.services.Export.DeleteExport(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Export %s deleted successfully\n", args[0])
			return nil
		},
	}
}

func printStatus(w io.Writer, status domain.ExportStatus) {
	fmt.Fprintf(w, "Export Details:\n")
	fmt.Fprintf(w, "  ID: %s\n", status.Job.ID)
	fmt.Fprintf(w, "  Name: %s\n", status.Job.Name)
	fmt.Fprintf(w, "  Format: %s\n", status.Job.Format)
	fmt.Fprintf(w, "  Status: %s\n", status.Run.Status)
	fmt.Fprintf(w, "  Progress: %d/%d rows (%.0f%%)\n", status.Run.Progress.RowsProcessed, status.Run.Progress.RowsTotal, status.Fraction*100)
	fmt.Fprintf(w, "  Created: %s\n", status.Job.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  Artifact: %s\n", status.Job.OutputPath)

	if status.Run.EndTime != nil {
		fmt.Fprintf(w, "  Finished: %s\n", status.Run.EndTime.Format(time.RFC3339))
	}
	if status.Run.ErrorKind != nil {
		fmt.Fprintf(w, "  Error: %s\n", status.Run.ErrorKind.UserMessage())
		if status.Run.ErrorMessage != nil {
			fmt.Fprintf(w, "  Cause: %s\n", *status.Run.ErrorMessage)
		}
	}
}

func printOutcome(w io.Writer, outcome domain.JobOutcome) {
	fmt.Fprintf(w, "Export %s %s\n", outcome.JobID, outcome.Status)
	if outcome.IsCompleted() {
		fmt.Fprintf(w, "  Download: %s\n", outcome.ArtifactURI)
		return
	}
	fmt.Fprintf(w, "  Reason: %s\n", outcome.Reason.UserMessage())
	if outcome.Message != "" {
		fmt.Fprintf(w, "  Cause: %s\n", outcome.Message)
	}
}
