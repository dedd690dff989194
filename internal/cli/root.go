// Package cli implements the research command line
package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Epistemic-Technology/research-library/internal/config"
	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/server"
)

var (
	configPath string
	dbPath     string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "research",
	Short: "Research library ingestion and cited retrieval",
	Long: `Ingest PDFs and EPUBs into a local library, correct printed page labels,
and ask grounded questions or footnote drafts with page-accurate citations.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default research.yaml or $RESEARCH_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "override the database path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output results as JSON")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// openLibrary opens the configured library. The returned func releases it.
// Tests replace it.
var openLibrary = func(cmd *cobra.Command) (*operations.Library, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	log, err := logger.NewLogger(logger.LogConfig{})
	if err != nil {
		return nil, nil, err
	}

	lib, store, err := server.OpenLibrary(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return lib, func() { store.Close() }, nil
}

// withLibrary runs fn against an open library
func withLibrary(cmd *cobra.Command, fn func(lib *operations.Library) error) error {
	lib, closeFn, err := openLibrary(cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(lib)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func parseItemArg(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item ID %q", arg)
	}
	return id, nil
}
