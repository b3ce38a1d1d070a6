package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nadlantech/appraisal-engine/internal/application/appraisal"
	"github.com/nadlantech/appraisal-engine/internal/config"
	"github.com/nadlantech/appraisal-engine/internal/domain/valuation"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/logging"
)

// newValuateCmd creates the offline valuation command. It runs the full
// pipeline on an inline comparable pool with no infrastructure attached, so
// appraisers can reproduce a valuation from a JSON dump on their laptop.
func newValuateCmd(opts *RootOptions) *cobra.Command {
	var (
		inputPath string
		topK      int
		strategy  string
		asOf      string
	)

	cmd := &cobra.Command{
		Use:   "valuate",
		Short: "Value a subject property from a JSON input file",
		Long:  "Run the valuation pipeline offline: read a subject property and its\ncomparable pool from a JSON file, score and adjust comparables, reject\noutliers, and print the aggregated value range with confidence.",
		RunE: func(cmd *cobra.Command, args []string) error {
			input := &appraisal.ValuateInput{}
			if err := readJSONFile(cmd, inputPath, input); err != nil {
				return err
			}
			if len(input.Pool) == 0 {
				return fmt.Errorf("input file contains no comparablesPool; offline valuation needs an inline pool")
			}

			if topK > 0 {
				input.TopK = topK
			}
			if strategy != "" {
				input.Strategy = valuation.Strategy(strategy)
			}
			if asOf != "" {
				t, err := parseDate(asOf)
				if err != nil {
					return err
				}
				input.AsOf = t
			}

			svc, err := offlineService(opts)
			if err != nil {
				return err
			}
			result, err := svc.Valuate(cmd.Context(), input)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "JSON input file with subject and comparablesPool (\"-\" for stdin)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of comparables to select (overrides input and config)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "aggregation strategy: mean, weighted-mean, hedonic")
	cmd.Flags().StringVar(&asOf, "as-of", "", "valuation date (YYYY-MM-DD or RFC3339; default today)")
	return cmd
}

// offlineService builds an appraisal service with no infrastructure attached.
// Config is best-effort: a missing or broken config file falls back to the
// shipped valuation defaults, since offline runs need no connection details.
func offlineService(opts *RootOptions) (appraisal.Service, error) {
	cfg, _, err := loadConfig(opts)
	if err != nil {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}

	// Logs go to stderr so stdout stays parseable JSON.
	level := "warn"
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.NewLogger(logging.LogConfig{
		Level:       level,
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, err
	}
	return appraisal.NewService(appraisal.Options{
		Config: cfg.Valuation,
		Logger: logger,
	}), nil
}

// parseDate accepts both date-only and full RFC3339 timestamps.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC3339", s)
	}
	return t, nil
}
