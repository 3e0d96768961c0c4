package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dean-jl/fwallow/internal/config"
	"github.com/dean-jl/fwallow/internal/hostcheck"
	"github.com/spf13/cobra"
)

func setupResolver(cfg *config.Config) hostcheck.Resolver {
	if len(cfg.DNSServers) > 0 {
		verbosePrintln("[VERBOSE] DNS servers being used:")
		var servers []string
		for _, s := range cfg.DNSServers {
			verbosePrintlnf("  - %s (%s)\n", s.Name, s.IP)
			servers = append(servers, s.IP)
		}
		return hostcheck.NewCustomResolver(servers)
	}

	verbosePrintln("[VERBOSE] Using system DNS resolver.")
	return &hostcheck.DefaultResolver{}
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test API credentials and hostname resolution for each configured project.",
	Long: `Verify that each project's API token can list firewall rules, and that any
configured hostname condition resolves to at least one address. Read-only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, projects, err := loadProjects(cmd)
		if err != nil {
			return err
		}

		resolver := setupResolver(cfg)
		ctx := context.Background()
		startTime := time.Now()

		var output strings.Builder
		successCount := 0
		failureCount := 0

		for i, project := range projects {
			projectStart := time.Now()
			fmt.Fprintf(&output, "Checking credentials for project: %s\n", project.Name)
			verbosePrintlnf("[VERBOSE] [%d/%d] Checking project: %s\n", i+1, len(projects), project.Name)

			api := newAPIClient(cfg, project)
			rules, err := api.ListRules(ctx)
			duration := time.Since(projectStart)

			if err != nil {
				fmt.Fprintf(&output, "  API check failed for %s: %v\n", project.Name, err)
				verbosePrintlnf("[VERBOSE] API check failed for %s after %v\n", project.Name, duration)
				failureCount++
				continue
			}
			fmt.Fprintf(&output, "  API check successful for %s (%d rules visible)\n", project.Name, len(rules))

			if project.Hostname != "" {
				ips, err := resolver.LookupIP(ctx, project.Hostname)
				if err != nil || len(ips) == 0 {
					fmt.Fprintf(&output, "  Hostname %s does not resolve: %v\n", project.Hostname, err)
					failureCount++
					continue
				}
				fmt.Fprintf(&output, "  Hostname %s resolves to %d address(es)\n", project.Hostname, len(ips))
			}
			successCount++
		}

		fmt.Fprintf(&output, "\n=== Check Summary ===\n")
		fmt.Fprintf(&output, "Total Projects: %d\n", len(projects))
		fmt.Fprintf(&output, "Successful: %d\n", successCount)
		fmt.Fprintf(&output, "Failed: %d\n", failureCount)
		fmt.Fprintf(&output, "Total Duration: %v\n", time.Since(startTime))

		handleOutput(cmd, cliConfig.Output, &output)

		if failureCount > 0 {
			return fmt.Errorf("%d of %d project checks failed", failureCount, len(projects))
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&cliConfig.Output, "output", "", "Write output to a specified file instead of stdout")
}
