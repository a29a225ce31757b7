// ABOUTME: Tests for prompt assembly and context budget enforcement
// ABOUTME: Verifies section order and exact cut-off at the first overflowing hit
package core

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

func hit(n int, title, text string) models.SearchHit {
	return models.SearchHit{
		Text:          text,
		EpisodeTitle:  title,
		EpisodeNumber: n,
		Timestamp:     "00:00 --> 00:30",
		Score:         0.9,
	}
}

func TestNewContextAssembler_DefaultBudget(t *testing.T) {
	if got := NewContextAssembler(0).MaxContextLength(); got != DefaultMaxContextLength {
		t.Errorf("MaxContextLength() = %d, want %d", got, DefaultMaxContextLength)
	}
}

func TestFormatEntry(t *testing.T) {
	got := FormatEntry(2, hit(19, "019 - Hannibal", "He crossed the Alps."))
	want := "\n--- Context 2 (Episode 19: 019 - Hannibal [00:00 --> 00:30]) ---\nHe crossed the Alps.\n"
	if got != want {
		t.Errorf("FormatEntry() = %q, want %q", got, want)
	}
}

func TestBuildContext_StopsAtFirstOverflow(t *testing.T) {
	hits := []models.SearchHit{
		hit(1, "A", strings.Repeat("a", 50)),
		hit(2, "B", strings.Repeat("b", 50)),
		hit(3, "C", strings.Repeat("c", 500)),
		hit(4, "D", "short enough to fit but after the overflow"),
	}
	first := utf8.RuneCountInString(FormatEntry(1, hits[0]))
	second := utf8.RuneCountInString(FormatEntry(2, hits[1]))

	a := NewContextAssembler(first + second + 100)
	block, included := a.BuildContext(hits)

	if included != 2 {
		t.Fatalf("included = %d, want 2", included)
	}
	if strings.Contains(block, "Episode 4") {
		t.Error("hits after the first overflow must be dropped, not skipped over")
	}
	if utf8.RuneCountInString(block) > a.MaxContextLength() {
		t.Errorf("block length %d exceeds budget %d", utf8.RuneCountInString(block), a.MaxContextLength())
	}
}

func TestBuildContext_ExactBudgetIsIncluded(t *testing.T) {
	h := hit(1, "A", "exact")
	a := NewContextAssembler(utf8.RuneCountInString(FormatEntry(1, h)))

	_, included := a.BuildContext([]models.SearchHit{h})
	if included != 1 {
		t.Errorf("entry exactly at the budget should be included, got %d", included)
	}
}

func TestBuildContext_BudgetNeverExceeded(t *testing.T) {
	var hits []models.SearchHit
	for i := 1; i <= 10; i++ {
		hits = append(hits, hit(i, "Title", strings.Repeat("word ", i*20)))
	}

	for budget := 1; budget < 3000; budget += 37 {
		a := NewContextAssembler(budget)
		block, included := a.BuildContext(hits)

		if utf8.RuneCountInString(block) > budget {
			t.Fatalf("budget %d exceeded: %d", budget, utf8.RuneCountInString(block))
		}
		// cumulative length first exceeds the budget at hit included+1
		total := 0
		for i := 0; i < included; i++ {
			total += utf8.RuneCountInString(FormatEntry(i+1, hits[i]))
		}
		if included < len(hits) {
			next := utf8.RuneCountInString(FormatEntry(included+1, hits[included]))
			if total+next <= budget {
				t.Fatalf("budget %d: hit %d fits but was excluded", budget, included+1)
			}
		}
	}
}

func TestBuildContext_FirstHitTooLarge(t *testing.T) {
	a := NewContextAssembler(10)
	block, included := a.BuildContext([]models.SearchHit{hit(1, "A", strings.Repeat("x", 100))})
	if block != "" || included != 0 {
		t.Errorf("expected empty context, got %d hits", included)
	}
}

func TestBuildPrompt_SectionOrder(t *testing.T) {
	a := NewContextAssembler(4000)
	prompt := a.BuildPrompt("Who was Cincinnatus?", []models.SearchHit{
		hit(8, "008 - Cincinnatus", "He returned to his plow."),
	})

	sections := []string{
		"You are an expert on Roman history",
		"CONTEXT FROM PODCAST TRANSCRIPTS:",
		"--- Context 1 (Episode 8: 008 - Cincinnatus [00:00 --> 00:30]) ---",
		"He returned to his plow.",
		"QUESTION: Who was Cincinnatus?",
		"Always mention which episode(s)",
		"ANSWER:",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(prompt, s)
		if idx < 0 {
			t.Fatalf("prompt missing %q", s)
		}
		if idx <= last {
			t.Errorf("section %q out of order", s)
		}
		last = idx
	}
	if !strings.HasSuffix(prompt, "ANSWER:") {
		t.Error("prompt should end with ANSWER:")
	}
}
