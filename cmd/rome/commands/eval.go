// ABOUTME: CLI command to evaluate answer quality
// ABOUTME: Runs scenario questions through the pipeline and writes a JSON report
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/eval"
)

var (
	evalScenarioFile string
	evalOutputPath   string
	evalOnly         []string
	evalThreshold    float64
)

// NewEvalCmd creates the eval command
func NewEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score answers against a question set",
		Long: `Score answers against a question set.

Asks every scenario question, then scores faithfulness (expected and
forbidden keywords in the answer) and context recall (expected keywords
and episodes in the retrieved excerpts). Prints a JSON report and exits
with an error if any scenario does not pass.

Scenario files are TOML with one [[scenario]] table per question.

Examples:
  rome eval
  rome eval --only cannae --only rubicon
  rome eval --scenarios questions.toml --output report.json`,
		Args: cobra.NoArgs,
		RunE: runEval,
	}

	cmd.Flags().StringVar(&evalScenarioFile, "scenarios", "", "TOML scenario file (default: built-in questions)")
	cmd.Flags().StringVar(&evalOutputPath, "output", "", "Also write the report to this file")
	cmd.Flags().StringSliceVar(&evalOnly, "only", nil, "Run only these scenario IDs")
	cmd.Flags().Float64Var(&evalThreshold, "threshold", eval.DefaultPassThreshold, "Minimum score on both metrics to pass")

	return cmd
}

func runEval(cmd *cobra.Command, args []string) error {
	scenarios := eval.DefaultScenarios()
	if evalScenarioFile != "" {
		loaded, err := eval.LoadScenarios(evalScenarioFile)
		if err != nil {
			return err
		}
		scenarios = loaded
	}
	scenarios, err := eval.FilterScenarios(scenarios, evalOnly)
	if err != nil {
		return err
	}

	services, logger, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = services.Close() }()

	runner := eval.NewRunner(services.RAG,
		eval.WithPassThreshold(evalThreshold),
		eval.WithModel(services.RAG.ModelName()),
		eval.WithLogger(logger),
	)
	report, err := runner.Run(cmd.Context(), scenarios)
	if err != nil {
		return err
	}

	if err := report.Write(cmd.OutOrStdout()); err != nil {
		return err
	}
	if evalOutputPath != "" {
		if err := report.Export(evalOutputPath); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Results exported to: %s\n", evalOutputPath)
		}
	}

	if !report.AllPassed() {
		return fmt.Errorf("%d of %d scenario(s) did not pass", report.TotalTests-report.Passed, report.TotalTests)
	}
	return nil
}
