package cli

import (
	"github.com/spf13/cobra"

	"github.com/nadlantech/appraisal-engine/internal/application/appraisal"
	"github.com/nadlantech/appraisal-engine/internal/application/reporting"
)

// newReportCmd creates the report command group: offline drafting, prompt
// bundle assembly, and consistency validation over assembled report input.
func newReportCmd(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Draft, validate, and assemble prompts for appraisal reports",
	}

	cmd.AddCommand(
		newReportDraftCmd(opts),
		newReportPromptCmd(opts),
		newReportValidateCmd(opts),
	)
	return cmd
}

func newReportDraftCmd(opts *RootOptions) *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Generate a deterministic report draft from assembled input",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in reporting.Input
			if err := readJSONFile(cmd, inputPath, &in); err != nil {
				return err
			}

			svc, err := offlineService(opts)
			if err != nil {
				return err
			}
			result, err := svc.GenerateReport(cmd.Context(), &appraisal.ReportRequest{Input: in})
			if err != nil {
				return err
			}
			return printJSON(cmd, result.Report)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "JSON report input file (\"-\" for stdin)")
	return cmd
}

func newReportPromptCmd(opts *RootOptions) *cobra.Command {
	var (
		inputPath string
		textOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Assemble the grounded LLM prompt bundle for a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in reporting.Input
			if err := readJSONFile(cmd, inputPath, &in); err != nil {
				return err
			}

			svc, err := offlineService(opts)
			if err != nil {
				return err
			}
			bundle, err := svc.BuildPromptBundle(cmd.Context(), in)
			if err != nil {
				return err
			}
			if textOnly {
				cmd.Println(bundle.UserPrompt)
				return nil
			}
			return printJSON(cmd, bundle)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "JSON report input file (\"-\" for stdin)")
	cmd.Flags().BoolVar(&textOnly, "text", false, "print only the user prompt text")
	return cmd
}

func newReportValidateCmd(_ *RootOptions) *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run consistency checks over assembled report input",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in reporting.Input
			if err := readJSONFile(cmd, inputPath, &in); err != nil {
				return err
			}
			if err := in.Validate(); err != nil {
				return err
			}

			results := reporting.ValidateConsistency(in)
			return printJSON(cmd, map[string]any{
				"validations":           results,
				"readyForFinalApproval": reporting.ReadyForFinalApproval(results),
			})
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "JSON report input file (\"-\" for stdin)")
	return cmd
}
