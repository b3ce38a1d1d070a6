// Package cli implements the appraisal command-line interface: offline
// valuation and report drafting plus the server and migration entry points.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nadlantech/appraisal-engine/internal/config"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions holds the global CLI flags shared by every subcommand.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

// NewRootCommand creates the root cobra command with global flags and all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "appraisal",
		Short:   "Comparable-sales valuation engine for real-estate appraisal",
		Long:    "The appraisal engine values a subject property from observed sale\ntransactions: similarity search over the comparable pool, per-factor\nadjustments, outlier rejection, and a confidence-scored value range,\nwith grounded report drafting for the appraiser.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./configs/config.yaml, then environment)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newValuateCmd(opts),
		newReportCmd(opts),
	)
	return cmd
}

// Execute runs the root command. Intended to be the whole body of main().
func Execute() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration in priority order: the --config flag, a
// config file at a default search path, then pure environment variables. The
// returned path is the file the config came from, empty for env-only loads.
func loadConfig(opts *RootOptions) (*config.Config, string, error) {
	if opts.ConfigPath != "" {
		cfg, err := config.Load(opts.ConfigPath)
		return cfg, opts.ConfigPath, err
	}

	searchPaths := []string{
		filepath.Join("configs", "config.yaml"),
		"config.yaml",
		filepath.Join("/etc", "appraisal", "config.yaml"),
	}
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			cfg, err := config.Load(p)
			return cfg, p, err
		}
	}
	cfg, err := config.LoadFromEnv()
	return cfg, "", err
}

// buildLogger constructs the process logger from config, honouring the
// --log-level override.
func buildLogger(cfg config.LogConfig, levelOverride string) (logging.Logger, error) {
	level := cfg.Level
	if levelOverride != "" {
		level = levelOverride
	}
	lc := logging.LogConfig{
		Level:  level,
		Format: cfg.Format,
	}
	if cfg.Output != "" {
		lc.OutputPaths = []string{cfg.Output}
	}
	return logging.NewLogger(lc)
}

// printJSON writes v to the command's stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readJSONFile decodes the JSON document at path into dest. "-" reads from
// stdin.
func readJSONFile(cmd *cobra.Command, path string, dest any) error {
	if path == "-" {
		return json.NewDecoder(cmd.InOrStdin()).Decode(dest)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
