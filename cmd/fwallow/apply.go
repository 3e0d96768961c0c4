package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dean-jl/fwallow/internal/processor"
	"github.com/spf13/cobra"
)

func openAddressSource(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open address file: %w", err)
	}
	return f, nil
}

var applyCmd = &cobra.Command{
	Use:   "apply <address-file>",
	Short: "Sync an IP address list to the firewall rules of all configured projects.",
	Long: `Read an IPv4 address list (one address or CIDR block per line, # comments
and a leading "ip" CSV header allowed), compact it when it exceeds the
per-rule capacity, and reconcile the result against each project's firewall
rules. Use "-" to read from stdin.

Runs in dry-run mode by default; pass --production to apply changes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
			cliConfig.DryRun = dryRun
		}
		if cliConfig.Production {
			cliConfig.DryRun = false
		}

		cfg, projects, err := loadProjects(cmd)
		if err != nil {
			return err
		}

		logger := setupLogger()
		printStatusMessages()

		var output strings.Builder
		ctx := context.Background()

		var firstErr error
		for i, project := range projects {
			verbosePrintlnf("[VERBOSE] [%d/%d] Starting sync for project: %s\n", i+1, len(projects), project.Name)
			debugPrintlnf("[DEBUG] Project %s config: ProjectID=%s, Mode=%s, Capacity=%d\n",
				project.Name, project.ProjectID, project.Mode, project.Capacity)

			// The input is re-read per project so stdin only works with a
			// single project.
			src, err := openAddressSource(args[0])
			if err != nil {
				return err
			}

			opts, err := projectOptions(project, promptConfirm)
			if err != nil {
				src.Close()
				return fmt.Errorf("project %s: %w", project.Name, err)
			}

			api := newAPIClient(cfg, project)
			proc := processor.New(api, logger.With("project", project.Name), opts)

			res, err := proc.Apply(ctx, src)
			src.Close()

			writeApplyReport(&output, project.Name, res, err)
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("project %s: %w", project.Name, err)
			}
		}

		handleOutput(cmd, cliConfig.Output, &output)
		return firstErr
	},
}

func writeApplyReport(out *strings.Builder, project string, res processor.ApplyResult, err error) {
	fmt.Fprintf(out, "\n===== Project: %s =====\n", project)
	fmt.Fprintf(out, "Parsed %d address entries (%d lines rejected)\n", res.Parsed, res.Rejected)
	for _, lineErr := range res.LineErrors {
		fmt.Fprintf(out, "  skipped: %v\n", lineErr)
	}
	if res.Compacted {
		fmt.Fprintf(out, "Compacted to %d CIDR entries\n", res.FinalCount)
	}
	if res.Chunks > 1 {
		fmt.Fprintf(out, "Split into %d rules of bounded size\n", res.Chunks)
	}
	for _, line := range res.Plan.Describe() {
		fmt.Fprintf(out, "  %s\n", line)
	}

	switch {
	case err != nil:
		fmt.Fprintf(out, "Error: %v\n", err)
	case res.Declined:
		fmt.Fprintf(out, "Aborted: confirmation declined, no changes made.\n")
	case !res.Executed:
		fmt.Fprintf(out, "Dry-run: no changes applied.\n")
	default:
		fmt.Fprintf(out, "Applied: %d inserted, %d updated, %d removed\n",
			res.Result.Inserted, res.Result.Updated, res.Result.Removed)
	}
}

func init() {
	applyCmd.Flags().Bool("dry-run", true, "Simulate changes without applying them") // Default to true for safety
	applyCmd.Flags().BoolVar(&cliConfig.Production, "production", false, "Apply changes to the remote firewall (default is dry-run)")
	applyCmd.Flags().BoolVarP(&cliConfig.Yes, "yes", "y", false, "Skip the confirmation prompt")
	applyCmd.Flags().IntVar(&cliConfig.Capacity, "capacity", 0, "Override the per-rule address capacity")
	applyCmd.Flags().StringVar(&cliConfig.Mode, "mode", "", "Override the rule mode (deny or bypass)")
	applyCmd.Flags().StringVar(&cliConfig.Output, "output", "", "Write output to a specified file instead of stdout")
}
