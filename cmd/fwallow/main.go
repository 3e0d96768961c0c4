package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dean-jl/fwallow/internal/config"
	"github.com/dean-jl/fwallow/internal/firewall"
	"github.com/dean-jl/fwallow/internal/processor"
	"github.com/dean-jl/fwallow/internal/reconcile"
	"github.com/spf13/cobra"
)

// Exit codes distinguish failure classes for scripting:
// 1 config/input, 2 remote API, 3 partial remote failure.
const (
	exitConfig  = 1
	exitRemote  = 2
	exitPartial = 3
)

// CLIConfig holds CLI flag values
type CLIConfig struct {
	ConfigPath string
	Debug      bool
	Verbose    bool
	Production bool
	DryRun     bool
	Yes        bool
	Project    string
	Capacity   int
	Mode       string
	Output     string
}

var cliConfig = &CLIConfig{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "fwallow",
	Short:         "fwallow syncs IP allowlists to project firewall rules.",
	Long:          "A command-line tool to compact IPv4 address lists and sync them to remote firewall rules across multiple projects.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cliConfig.ConfigPath, "config", "config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&cliConfig.Debug, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().BoolVar(&cliConfig.Verbose, "verbose", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cliConfig.Project, "project", "", "Limit the command to a single configured project")
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(checkCmd)

	rootCmd.Version = config.Version
	rootCmd.SetHelpTemplate("fwallow v" + config.Version + "\n\n{{.Long}}\n\nUsage:\n  {{.UseLine}}\n\nAvailable Commands:\n{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name \"help\"))}}  {{rpad .Name .NamePadding }} {{.Short}}\n{{end}}{{end}}\n\nFlags:\n{{.Flags.FlagUsages | trimTrailingWhitespaces}}\n\nUse \"{{.UseLine}} [command] --help\" for more information about a command.\n")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if errors.Is(err, reconcile.ErrPartialFailure) {
		return exitPartial
	}
	var apiErr *firewall.APIError
	if errors.As(err, &apiErr) {
		return exitRemote
	}
	return exitConfig
}

func setupLogger() *slog.Logger {
	if cliConfig.Debug {
		logLevel := new(slog.LevelVar)
		logLevel.Set(slog.LevelDebug)
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// loadProjects loads the config and applies the --project filter.
func loadProjects(cmd *cobra.Command) (*config.Config, []config.Project, error) {
	cfg, err := config.LoadConfig(cliConfig.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config at %s: %w", cliConfig.ConfigPath, err)
	}

	if cliConfig.Project == "" {
		return cfg, cfg.Projects, nil
	}
	for _, p := range cfg.Projects {
		if p.Name == cliConfig.Project {
			return cfg, []config.Project{p}, nil
		}
	}
	return nil, nil, fmt.Errorf("project %q not found in config", cliConfig.Project)
}

// newAPIClient builds a firewall client for a project, honoring a config
// level api_url override (used against test servers).
func newAPIClient(cfg *config.Config, p config.Project) *firewall.Client {
	if cfg.APIBaseURL != "" {
		return firewall.NewClientWithURL(p.Token, p.ProjectID, cfg.APIBaseURL, cliConfig.Debug)
	}
	return firewall.NewClient(p.Token, p.ProjectID, cliConfig.Debug)
}

// promptConfirm asks on the terminal before a destructive action. The --yes
// flag suppresses the prompt.
func promptConfirm(summary string) bool {
	if cliConfig.Yes {
		return true
	}
	fmt.Printf("About to %s. Continue? [y/N]: ", summary)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printStatusMessages() {
	if cliConfig.DryRun {
		fmt.Println("DRY-RUN: No changes will be applied.")
	}
	verbosePrintln("[VERBOSE] Verbose output enabled.")
	debugPrintln("[DEBUG] Debug output enabled.")
}

func handleOutput(cmd *cobra.Command, outputFile string, finalOutput *strings.Builder) {
	if outputFile != "" {
		err := os.WriteFile(outputFile, []byte(finalOutput.String()), 0644)
		if err != nil {
			cmd.PrintErrf("Error writing to output file %s: %v\n", outputFile, err)
			return
		}
	} else {
		fmt.Print(finalOutput.String())
	}
}

func debugPrintln(a ...interface{}) {
	if cliConfig.Debug {
		fmt.Println(a...)
	}
}

// verbosePrintln prints verbose messages when verbose mode is enabled
func verbosePrintln(a ...interface{}) {
	if cliConfig.Verbose {
		fmt.Println(a...)
	}
}

// verbosePrintlnf prints formatted verbose messages when verbose mode is enabled
func verbosePrintlnf(format string, a ...interface{}) {
	if cliConfig.Verbose {
		fmt.Printf(format, a...)
	}
}

// debugPrintlnf prints formatted debug messages when debug mode is enabled
func debugPrintlnf(format string, a ...interface{}) {
	if cliConfig.Debug {
		fmt.Printf(format, a...)
	}
}

// projectOptions translates a config project into processor options.
func projectOptions(p config.Project, confirm processor.ConfirmFunc) (processor.Options, error) {
	modeStr := p.Mode
	if cliConfig.Mode != "" {
		modeStr = cliConfig.Mode
	}
	mode, err := firewall.ParseMode(modeStr)
	if err != nil {
		return processor.Options{}, err
	}
	capacity := p.Capacity
	if cliConfig.Capacity > 0 {
		capacity = cliConfig.Capacity
	}
	dryRun := cliConfig.DryRun
	if !cliConfig.Production && p.DryRun != nil && *p.DryRun {
		dryRun = true
	}
	return processor.Options{
		Mode:     mode,
		RuleName: p.RuleName,
		Hostname: p.Hostname,
		Capacity: capacity,
		DryRun:   dryRun,
		Confirm:  confirm,
	}, nil
}

func main() {
	Execute()
}
