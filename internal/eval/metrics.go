// ABOUTME: Faithfulness and context recall metrics for evaluation runs
// ABOUTME: Deterministic keyword scoring against each scenario's ground truth
package eval

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

// Result statuses
const (
	StatusPass  = "PASS"
	StatusFail  = "FAIL"
	StatusError = "ERROR"
)

// DefaultPassThreshold is the minimum score on both metrics for a pass
const DefaultPassThreshold = 0.9

// Result is the scored outcome of one scenario
type Result struct {
	ScenarioID         string         `json:"scenario_id"`
	ScenarioName       string         `json:"scenario_name"`
	Question           string         `json:"question"`
	FaithfulnessScore  float64        `json:"faithfulness_score"`
	ContextRecallScore float64        `json:"context_recall_score"`
	OverallScore       float64        `json:"overall_score"`
	Status             string         `json:"status"`
	Details            map[string]any `json:"details,omitempty"`
	ErrorMessage       string         `json:"error_message,omitempty"`
}

// MetricsCalculator computes scores for evaluation scenarios
type MetricsCalculator struct {
	passThreshold float64
}

// NewMetricsCalculator creates a calculator; a non-positive threshold uses DefaultPassThreshold
func NewMetricsCalculator(passThreshold float64) *MetricsCalculator {
	if passThreshold <= 0 {
		passThreshold = DefaultPassThreshold
	}
	return &MetricsCalculator{passThreshold: passThreshold}
}

// CalculateFaithfulness scores whether the answer carries the expected facts and none of the forbidden ones
func (m *MetricsCalculator) CalculateFaithfulness(response string, expected, forbidden []string) (float64, string) {
	responseUpper := strings.ToUpper(response)

	var missing, found []string
	for _, item := range expected {
		if !strings.Contains(responseUpper, strings.ToUpper(item)) {
			missing = append(missing, item)
		}
	}
	for _, item := range forbidden {
		if strings.Contains(responseUpper, strings.ToUpper(item)) {
			found = append(found, item)
		}
	}

	switch {
	case len(missing) == 0 && len(found) == 0:
		return 1.0, "Answer contains every expected item"
	case len(missing) > 0 && len(found) > 0:
		return 0.0, fmt.Sprintf("missing expected items: %v, forbidden items found: %v", missing, found)
	case len(missing) > 0:
		return 0.5, fmt.Sprintf("missing expected items: %v", missing)
	default:
		return 0.5, fmt.Sprintf("forbidden items found: %v", found)
	}
}

// CalculateContextRecall scores the share of expected items present in the retrieved contexts
func (m *MetricsCalculator) CalculateContextRecall(contexts []models.SearchHit, expectedItems []string, expectedEpisodes []int) (float64, string) {
	total := len(expectedItems) + len(expectedEpisodes)
	if total == 0 {
		return 1.0, "No context retrieval required"
	}

	texts := make([]string, 0, len(contexts))
	episodes := make([]int, 0, len(contexts))
	for _, c := range contexts {
		texts = append(texts, c.Text)
		episodes = append(episodes, c.EpisodeNumber)
	}
	all := strings.ToUpper(strings.Join(texts, " "))

	var missing []string
	for _, item := range expectedItems {
		if !strings.Contains(all, strings.ToUpper(item)) {
			missing = append(missing, item)
		}
	}
	for _, ep := range expectedEpisodes {
		if !slices.Contains(episodes, ep) {
			missing = append(missing, fmt.Sprintf("episode %d", ep))
		}
	}

	recall := float64(total-len(missing)) / float64(total)
	if len(missing) == 0 {
		return 1.0, "All expected items retrieved"
	}
	return recall, fmt.Sprintf("partial context recall (%.2f), missing items: %v", recall, missing)
}

// Evaluate scores one answered scenario
func (m *MetricsCalculator) Evaluate(scenario Scenario, answer *models.AnswerResult) Result {
	faithfulness, faithfulnessDetail := m.CalculateFaithfulness(
		answer.Answer,
		scenario.GroundTruth.ExpectedInResponse,
		scenario.GroundTruth.ForbiddenInResponse,
	)
	recall, recallDetail := m.CalculateContextRecall(
		answer.Contexts,
		scenario.GroundTruth.ExpectedContextItems,
		scenario.GroundTruth.ExpectedEpisodes,
	)

	status := StatusFail
	if faithfulness >= m.passThreshold && recall >= m.passThreshold {
		status = StatusPass
	}

	preview := []rune(answer.Answer)
	if len(preview) > 200 {
		preview = preview[:200]
	}

	result := Result{
		ScenarioID:         scenario.ID,
		ScenarioName:       scenario.Name,
		Question:           scenario.Question,
		FaithfulnessScore:  faithfulness,
		ContextRecallScore: recall,
		OverallScore:       (faithfulness + recall) / 2.0,
		Status:             status,
		Details: map[string]any{
			"faithfulness_detail": faithfulnessDetail,
			"recall_detail":       recallDetail,
			"answer":              string(preview),
			"context_items":       len(answer.Contexts),
			"total_time":          answer.TotalTime,
		},
	}
	if answer.Error {
		result.Status = StatusError
		result.ErrorMessage = answer.Answer
	}
	return result
}
