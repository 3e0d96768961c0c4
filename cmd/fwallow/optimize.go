package main

import (
	"fmt"
	"strings"

	"github.com/dean-jl/fwallow/internal/firewall"
	"github.com/dean-jl/fwallow/internal/ipset"
	"github.com/spf13/cobra"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <address-file>",
	Short: "Compact an address list offline and report the result.",
	Long: `Parse an address list and show how CIDR compaction would reduce it,
without contacting any remote API. Useful for previewing what "apply" will
send. Use "-" to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := openAddressSource(args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		capacity := cliConfig.Capacity
		if capacity <= 0 {
			capacity = firewall.MaxRuleAddresses
		}

		parsed := ipset.ParseReader(src)
		var output strings.Builder
		fmt.Fprintf(&output, "Parsed %d address entries (%d lines rejected)\n", len(parsed.Entries), len(parsed.Errors))
		for _, lineErr := range parsed.Errors {
			fmt.Fprintf(&output, "  skipped: %v\n", lineErr)
		}

		if len(parsed.Entries) == 0 {
			output.WriteString("Nothing to optimize.\n")
			handleOutput(cmd, cliConfig.Output, &output)
			return nil
		}

		compacted := ipset.Compact(parsed.Entries)
		chunks := ipset.Chunks(compacted, capacity)

		fmt.Fprintf(&output, "Compacted to %d CIDR entries (%.1f%% of input)\n",
			len(compacted), float64(len(compacted))/float64(len(parsed.Entries))*100)
		fmt.Fprintf(&output, "Fits in %d rule(s) at capacity %d\n", len(chunks), capacity)

		if cliConfig.Verbose {
			for _, entry := range compacted {
				fmt.Fprintf(&output, "  %s\n", entry)
			}
		}

		handleOutput(cmd, cliConfig.Output, &output)
		return nil
	},
}

func init() {
	optimizeCmd.Flags().IntVar(&cliConfig.Capacity, "capacity", 0, "Per-rule address capacity used for the chunking preview")
	optimizeCmd.Flags().StringVar(&cliConfig.Output, "output", "", "Write output to a specified file instead of stdout")
}
