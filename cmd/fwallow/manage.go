package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dean-jl/fwallow/internal/config"
	"github.com/dean-jl/fwallow/internal/processor"
	"github.com/dean-jl/fwallow/internal/reconcile"
	"github.com/spf13/cobra"
)

// forEachProject runs fn sequentially for every selected project and reports
// per-project results; the first error is returned after all projects ran.
func forEachProject(cmd *cobra.Command, fn func(ctx context.Context, proc *processor.Processor, p config.Project, out *strings.Builder) error) error {
	cfg, projects, err := loadProjects(cmd)
	if err != nil {
		return err
	}

	logger := setupLogger()
	printStatusMessages()

	var output strings.Builder
	ctx := context.Background()

	var firstErr error
	for _, project := range projects {
		opts, err := projectOptions(project, promptConfirm)
		if err != nil {
			return fmt.Errorf("project %s: %w", project.Name, err)
		}

		proc := processor.New(newAPIClient(cfg, project), logger.With("project", project.Name), opts)
		fmt.Fprintf(&output, "\n===== Project: %s =====\n", project.Name)
		if err := fn(ctx, proc, project, &output); err != nil {
			fmt.Fprintf(&output, "Error: %v\n", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("project %s: %w", project.Name, err)
			}
		}
	}

	handleOutput(cmd, cliConfig.Output, &output)
	return firstErr
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Deactivate the managed firewall rules without deleting them.",
	Long: `Set every managed rule to inactive in each project, preserving rule
contents so they can be re-enabled from the dashboard.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return forEachProject(cmd, func(ctx context.Context, proc *processor.Processor, p config.Project, out *strings.Builder) error {
			disabled, err := proc.Disable(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Disabled %d rule(s)\n", disabled)
			return nil
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete the managed firewall rules from each project.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return forEachProject(cmd, func(ctx context.Context, proc *processor.Processor, p config.Project, out *strings.Builder) error {
			res, err := proc.Remove(ctx)
			writeRemovalReport(out, res)
			return err
		})
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete ALL firewall rules from each project, managed or not.",
	Long: `Delete every firewall rule in each project's scope, including rules this
tool does not manage. Asks for confirmation unless --yes is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return forEachProject(cmd, func(ctx context.Context, proc *processor.Processor, p config.Project, out *strings.Builder) error {
			res, err := proc.Purge(ctx)
			writeRemovalReport(out, res)
			return err
		})
	},
}

func writeRemovalReport(out *strings.Builder, res reconcile.Result) {
	fmt.Fprintf(out, "Removed %d rule(s)\n", res.Removed)
	for _, failure := range res.Failures {
		fmt.Fprintf(out, "  failed to remove %s (id=%s): %v\n", failure.Op.Name, failure.Op.RuleID, failure.Err)
	}
}

func init() {
	for _, cmd := range []*cobra.Command{disableCmd, removeCmd, purgeCmd} {
		cmd.Flags().BoolVarP(&cliConfig.Yes, "yes", "y", false, "Skip the confirmation prompt")
		cmd.Flags().StringVar(&cliConfig.Output, "output", "", "Write output to a specified file instead of stdout")
	}
}
