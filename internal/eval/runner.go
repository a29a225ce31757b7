// ABOUTME: Evaluation runner that asks each scenario question and scores the answers
// ABOUTME: Produces a JSON report with per-scenario metrics and pass/fail totals
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/logging"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

// Asker answers a question from retrieved context
type Asker interface {
	Ask(ctx context.Context, question string, limit int) (*models.AnswerResult, error)
}

var _ Asker = (*core.RAGService)(nil)

// Report summarizes an evaluation run
type Report struct {
	Timestamp         string   `json:"timestamp"`
	Model             string   `json:"model,omitempty"`
	TotalTests        int      `json:"total_tests"`
	Passed            int      `json:"passed"`
	Failed            int      `json:"failed"`
	Errors            int      `json:"errors"`
	MeanFaithfulness  float64  `json:"mean_faithfulness"`
	MeanContextRecall float64  `json:"mean_context_recall"`
	Results           []Result `json:"results"`
	DurationSeconds   float64  `json:"duration_seconds"`
}

// Runner executes evaluation scenarios
type Runner struct {
	asker   Asker
	metrics *MetricsCalculator
	model   string
	logger  *slog.Logger
	now     func() time.Time
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithPassThreshold sets the minimum score for a pass
func WithPassThreshold(threshold float64) RunnerOption {
	return func(r *Runner) { r.metrics = NewMetricsCalculator(threshold) }
}

// WithModel records the generation model in the report
func WithModel(model string) RunnerOption {
	return func(r *Runner) { r.model = model }
}

// WithLogger sets the runner logger
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logging.NewComponentLogger(logger, "eval") }
}

// NewRunner creates an evaluation runner
func NewRunner(asker Asker, opts ...RunnerOption) *Runner {
	r := &Runner{
		asker:   asker,
		metrics: NewMetricsCalculator(DefaultPassThreshold),
		logger:  logging.Component("eval"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScenario asks one scenario question and scores the answer
func (r *Runner) RunScenario(ctx context.Context, scenario Scenario) Result {
	limit := core.DefaultContextLimit
	if scenario.ContextLimit > 0 {
		limit = core.ClampContextLimit(scenario.ContextLimit)
	}

	answer, err := r.asker.Ask(ctx, scenario.Question, limit)
	if err != nil {
		r.logger.Warn("scenario failed", slog.String("scenario", scenario.ID), logging.Error(err))
		return Result{
			ScenarioID:   scenario.ID,
			ScenarioName: scenario.Name,
			Question:     scenario.Question,
			Status:       StatusError,
			ErrorMessage: err.Error(),
		}
	}

	result := r.metrics.Evaluate(scenario, answer)
	r.logger.Info("scenario scored",
		slog.String("scenario", scenario.ID),
		slog.Float64("faithfulness", result.FaithfulnessScore),
		slog.Float64("context_recall", result.ContextRecallScore),
		slog.String("status", result.Status),
	)
	return result
}

// Run evaluates every scenario in order. It stops early only when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) (*Report, error) {
	start := r.now()
	report := &Report{
		Timestamp: start.UTC().Format(time.RFC3339),
		Model:     r.model,
		Results:   make([]Result, 0, len(scenarios)),
	}

	for _, scenario := range scenarios {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluation cancelled: %w", err)
		}
		report.Results = append(report.Results, r.RunScenario(ctx, scenario))
	}

	report.summarize()
	report.DurationSeconds = r.now().Sub(start).Seconds()
	return report, nil
}

func (rep *Report) summarize() {
	rep.TotalTests = len(rep.Results)
	rep.Passed, rep.Failed, rep.Errors = 0, 0, 0
	var faithfulness, recall float64
	for _, res := range rep.Results {
		switch res.Status {
		case StatusPass:
			rep.Passed++
		case StatusError:
			rep.Errors++
		default:
			rep.Failed++
		}
		faithfulness += res.FaithfulnessScore
		recall += res.ContextRecallScore
	}
	if rep.TotalTests > 0 {
		rep.MeanFaithfulness = faithfulness / float64(rep.TotalTests)
		rep.MeanContextRecall = recall / float64(rep.TotalTests)
	}
}

// AllPassed reports whether every scenario passed
func (rep *Report) AllPassed() bool {
	return rep.TotalTests > 0 && rep.Passed == rep.TotalTests
}

// Write encodes the report as indented JSON
func (rep *Report) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// Export writes the report to a JSON file
func (rep *Report) Export(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := rep.Write(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
