// ABOUTME: Catalogue of example questions shown to new users
// ABOUTME: Served by /api/examples and the examples CLI command
package api

// ExampleCategory groups example questions under a heading
type ExampleCategory struct {
	Category  string   `json:"category"`
	Questions []string `json:"questions"`
}

// Examples returns the example question catalogue
func Examples() []ExampleCategory {
	return []ExampleCategory{
		{
			Category: "Political History",
			Questions: []string{
				"What caused the fall of the Roman Republic?",
				"How did Augustus transform Rome from a republic to an empire?",
				"What role did the Senate play in Roman politics?",
			},
		},
		{
			Category: "Military History",
			Questions: []string{
				"How did Roman military tactics evolve over time?",
				"What happened at the Battle of Cannae?",
				"How did Rome defeat Hannibal and Carthage?",
			},
		},
		{
			Category: "Key Figures",
			Questions: []string{
				"Tell me about Julius Caesar's rise to power",
				"What was Cicero's role in Roman politics?",
				"How did Constantine change the Roman Empire?",
			},
		},
		{
			Category: "Social & Cultural",
			Questions: []string{
				"How did Roman society change over time?",
				"What was daily life like for ordinary Romans?",
				"How did Christianity spread throughout the Roman Empire?",
			},
		},
	}
}
