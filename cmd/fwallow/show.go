package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dean-jl/fwallow/internal/config"
	"github.com/dean-jl/fwallow/internal/processor"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the managed firewall rules for all configured projects.",
	Long: `List the firewall rules currently managed by this tool in each project,
including their part names, address counts, and active state. Read-only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, projects, err := loadProjects(cmd)
		if err != nil {
			return err
		}

		logger := setupLogger()

		// Worker pool with a maximum of 5 concurrent project listings
		const maxWorkers = 5
		sem := semaphore.NewWeighted(maxWorkers)
		ctx := context.Background()

		var wg sync.WaitGroup
		results := make(chan string, len(projects))
		errs := make(chan error, len(projects))

		for i, project := range projects {
			verbosePrintlnf("[VERBOSE] [%d/%d] Listing rules for project: %s\n", i+1, len(projects), project.Name)
			wg.Add(1)
			go func(p config.Project) {
				defer wg.Done()

				if err := sem.Acquire(ctx, 1); err != nil {
					errs <- fmt.Errorf("acquiring worker for project %s: %w", p.Name, err)
					return
				}
				defer sem.Release(1)

				opts, err := projectOptions(p, nil)
				if err != nil {
					errs <- fmt.Errorf("project %s: %w", p.Name, err)
					return
				}

				proc := processor.New(newAPIClient(cfg, p), logger.With("project", p.Name), opts)
				rules, err := proc.Show(ctx)
				if err != nil {
					errs <- fmt.Errorf("project %s: %w", p.Name, err)
					return
				}

				var buf strings.Builder
				fmt.Fprintf(&buf, "\n===== Project: %s =====\n", p.Name)
				if len(rules) == 0 {
					buf.WriteString("No managed rules found.\n")
				}
				for _, rule := range rules {
					state := "active"
					if !rule.Active {
						state = "inactive"
					}
					fmt.Fprintf(&buf, "%s [%s] (%s, %d addresses, id=%s)\n",
						rule.Name, state, rule.Action, len(rule.Addresses()), rule.ID)
					if cliConfig.Verbose {
						for _, addr := range rule.Addresses() {
							fmt.Fprintf(&buf, "  %s\n", addr)
						}
					}
				}
				results <- buf.String()
			}(project)
		}

		wg.Wait()
		close(results)
		close(errs)

		var output strings.Builder
		for result := range results {
			output.WriteString(result)
		}
		handleOutput(cmd, cliConfig.Output, &output)

		return <-errs
	},
}

func init() {
	showCmd.Flags().StringVar(&cliConfig.Output, "output", "", "Write output to a specified file instead of stdout")
}
