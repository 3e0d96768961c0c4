package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dean-jl/fwallow/internal/backup"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export each project's firewall rules to a JSON snapshot file.",
	Long: `Snapshot every firewall rule in each project's scope to a timestamped JSON
file. Take a snapshot before running purge or restructuring rules.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, projects, err := loadProjects(cmd)
		if err != nil {
			return err
		}

		outputFile, _ := cmd.Flags().GetString("file")
		if outputFile != "" && len(projects) > 1 {
			return fmt.Errorf("--file requires --project when multiple projects are configured")
		}

		ctx := context.Background()
		var output strings.Builder

		for _, project := range projects {
			api := newAPIClient(cfg, project)
			rs, err := backup.Export(ctx, api, project.Name, cfg.Provider)
			if err != nil {
				return fmt.Errorf("project %s: %w", project.Name, err)
			}

			path := outputFile
			if path == "" {
				path = backup.DefaultFilename(project.Name)
			}
			if err := rs.Write(path); err != nil {
				return fmt.Errorf("project %s: %w", project.Name, err)
			}
			fmt.Fprintf(&output, "Exported %d rule(s) for project %s to %s\n", len(rs.Rules), project.Name, path)
		}

		handleOutput(cmd, "", &output)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <snapshot-file>",
	Short: "Re-insert firewall rules from a JSON snapshot.",
	Long: `Insert every rule from a snapshot written by the backup command into the
matching project. Remote rule ids are reassigned by the service; existing
rules are left untouched, so restoring on top of live rules can duplicate
them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, projects, err := loadProjects(cmd)
		if err != nil {
			return err
		}

		rs, err := backup.Load(args[0])
		if err != nil {
			return err
		}

		found := -1
		for i := range projects {
			if projects[i].Name == rs.Project {
				found = i
				break
			}
		}
		if found < 0 {
			return fmt.Errorf("snapshot belongs to project %q, which is not in the config", rs.Project)
		}
		project := projects[found]

		if !promptConfirm(fmt.Sprintf("restore %d rule(s) into project %s", len(rs.Rules), project.Name)) {
			fmt.Println("Aborted: confirmation declined, no changes made.")
			return nil
		}

		restored, err := backup.Restore(context.Background(), newAPIClient(cfg, project), rs)
		if err != nil {
			return fmt.Errorf("restored %d rule(s) before failure: %w", restored, err)
		}
		fmt.Printf("Restored %d rule(s) into project %s\n", restored, project.Name)
		return nil
	},
}

func init() {
	backupCmd.Flags().String("file", "", "Write the snapshot to a specific path instead of a timestamped filename")
	restoreCmd.Flags().BoolVarP(&cliConfig.Yes, "yes", "y", false, "Skip the confirmation prompt")
}
