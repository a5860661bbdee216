// Package main is the entry point for the genepi CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/genepilepsy-guide/internal/app"
	"github.com/genepilepsy-guide/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "genepi",
	Short: "Genetic epilepsy variant lookup and treatment guidance",
	Long: `genepi turns a gene and variant, or a free-text case description, into
clinician reports from ClinVar and guideline-grounded treatment recommendations.

The lookup, recommend, parse and run commands call the pipeline once and print
the result. serve starts the REST API and mcp serves the same operations as
Model Context Protocol tools over stdio.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./config.yaml, ./config/config.yaml or /etc/genepi/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "override logging.level")
}

// loadApp reads and validates configuration and wires the pipeline. Logs go to stderr so
// stdout only carries command output.
func loadApp(cmd *cobra.Command) (*app.App, *config.Manager, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	manager, err := config.NewManagerFromFile(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	cfg := manager.GetConfig()
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := manager.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	application, err := app.New(cmd.Context(), cfg, app.WithLogger(app.NewLogger(cfg.Logging, os.Stderr)))
	if err != nil {
		return nil, nil, err
	}
	return application, manager, nil
}

// readInput joins args, or reads stdin when args is empty or "-".
func readInput(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no description given")
	}
	return text, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
