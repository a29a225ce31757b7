// ABOUTME: Evaluation scenarios for the podcast question answering pipeline
// ABOUTME: Built-in Roman history questions plus loading of TOML fixture files
package eval

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Scenario is one evaluation question with its ground truth
type Scenario struct {
	ID           string      `toml:"id" json:"id"`
	Name         string      `toml:"name" json:"name"`
	Question     string      `toml:"question" json:"question"`
	ContextLimit int         `toml:"context_limit" json:"context_limit,omitempty"`
	GroundTruth  GroundTruth `toml:"ground_truth" json:"ground_truth"`
}

// GroundTruth defines expected outcomes for one scenario
type GroundTruth struct {
	// Strings that must appear in the answer
	ExpectedInResponse []string `toml:"expected_in_response" json:"expected_in_response,omitempty"`
	// Strings that must not appear in the answer
	ForbiddenInResponse []string `toml:"forbidden_in_response" json:"forbidden_in_response,omitempty"`
	// Strings that should appear somewhere in the retrieved contexts
	ExpectedContextItems []string `toml:"expected_context_items" json:"expected_context_items,omitempty"`
	// Episodes at least one retrieved context should come from
	ExpectedEpisodes []int `toml:"expected_episodes" json:"expected_episodes,omitempty"`
}

type scenarioFile struct {
	Scenarios []Scenario `toml:"scenario"`
}

// DefaultScenarios returns the built-in question set
func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			ID:       "founding",
			Name:     "Founding of the city",
			Question: "Who founded Rome according to legend?",
			GroundTruth: GroundTruth{
				ExpectedInResponse:   []string{"Romulus"},
				ExpectedContextItems: []string{"Romulus", "Remus"},
			},
		},
		{
			ID:       "hannibal-alps",
			Name:     "Hannibal crosses the Alps",
			Question: "How did Hannibal get his army into Italy?",
			GroundTruth: GroundTruth{
				ExpectedInResponse:   []string{"Alps"},
				ExpectedContextItems: []string{"Hannibal", "Alps"},
			},
		},
		{
			ID:       "cannae",
			Name:     "Battle of Cannae",
			Question: "What happened at the Battle of Cannae?",
			GroundTruth: GroundTruth{
				ExpectedInResponse:   []string{"Cannae"},
				ExpectedContextItems: []string{"Cannae"},
			},
		},
		{
			ID:       "rubicon",
			Name:     "Caesar crosses the Rubicon",
			Question: "Why was crossing the Rubicon significant for Julius Caesar?",
			GroundTruth: GroundTruth{
				ExpectedInResponse:   []string{"Rubicon"},
				ForbiddenInResponse:  []string{"Hannibal"},
				ExpectedContextItems: []string{"Caesar", "Rubicon"},
			},
		},
		{
			ID:       "augustus",
			Name:     "First emperor",
			Question: "Who was the first Roman emperor?",
			GroundTruth: GroundTruth{
				ExpectedInResponse:   []string{"Augustus"},
				ExpectedContextItems: []string{"Augustus"},
			},
		},
	}
}

// LoadScenarios reads scenarios from a TOML file with [[scenario]] tables
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}

	var file scenarioFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse scenarios %s: %w", path, err)
	}
	if len(file.Scenarios) == 0 {
		return nil, errors.New("scenario file contains no [[scenario]] entries")
	}

	for i, s := range file.Scenarios {
		if s.Question == "" {
			return nil, fmt.Errorf("scenario %d has no question", i+1)
		}
		if s.ID == "" {
			file.Scenarios[i].ID = fmt.Sprintf("scenario-%d", i+1)
		}
		if s.Name == "" {
			file.Scenarios[i].Name = s.Question
		}
	}
	return file.Scenarios, nil
}

// FilterScenarios keeps the scenarios whose ID is listed; an empty list keeps all
func FilterScenarios(scenarios []Scenario, ids []string) ([]Scenario, error) {
	if len(ids) == 0 {
		return scenarios, nil
	}
	byID := make(map[string]Scenario, len(scenarios))
	for _, s := range scenarios {
		byID[s.ID] = s
	}
	out := make([]Scenario, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", id)
		}
		out = append(out, s)
	}
	return out, nil
}
