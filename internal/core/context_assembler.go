// ABOUTME: ContextAssembler builds the generation prompt from ranked search hits
// ABOUTME: Enforces a character budget on the context block without splitting entries
package core

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
)

// DefaultMaxContextLength is the context budget in characters
const DefaultMaxContextLength = 4000

const promptFraming = `You are an expert on Roman history, specifically knowledgeable about Mike Duncan's "The History of Rome" podcast series. You have access to timestamped transcripts from the podcast episodes.

Based on the following context from the podcast transcripts, please answer the user's question about Roman history. Be accurate, informative, and reference specific episodes when relevant.`

const promptInstructions = `Please provide a comprehensive answer based on the context above. If the context doesn't contain enough information to fully answer the question, say so and provide what information you can. Always mention which episode(s) the information comes from when possible.`

// ContextAssembler formats hits into a budgeted prompt
type ContextAssembler struct {
	maxContextLength int
}

// NewContextAssembler creates an assembler; non-positive budgets use the default
func NewContextAssembler(maxContextLength int) *ContextAssembler {
	if maxContextLength <= 0 {
		maxContextLength = DefaultMaxContextLength
	}
	return &ContextAssembler{maxContextLength: maxContextLength}
}

// MaxContextLength returns the character budget
func (a *ContextAssembler) MaxContextLength() int {
	return a.maxContextLength
}

// FormatEntry renders one numbered hit as it appears in the context block
func FormatEntry(index int, hit models.SearchHit) string {
	return fmt.Sprintf("\n--- Context %d (Episode %d: %s [%s]) ---\n%s\n",
		index, hit.EpisodeNumber, hit.EpisodeTitle, hit.Timestamp, hit.Text)
}

// BuildContext concatenates entries in order until the next one would exceed
// the budget. It returns the block and how many hits were included.
func (a *ContextAssembler) BuildContext(hits []models.SearchHit) (string, int) {
	var sb strings.Builder
	total := 0
	included := 0

	for i, hit := range hits {
		entry := FormatEntry(i+1, hit)
		n := utf8.RuneCountInString(entry)
		if total+n > a.maxContextLength {
			break
		}
		sb.WriteString(entry)
		total += n
		included++
	}

	return sb.String(), included
}

// BuildPrompt assembles framing, context, question, and instructions in that order
func (a *ContextAssembler) BuildPrompt(question string, hits []models.SearchHit) string {
	contextBlock, _ := a.BuildContext(hits)

	var sb strings.Builder
	sb.WriteString(promptFraming)
	sb.WriteString("\n\nCONTEXT FROM PODCAST TRANSCRIPTS:\n")
	sb.WriteString(contextBlock)
	sb.WriteString("\n\nQUESTION: ")
	sb.WriteString(question)
	sb.WriteString("\n\n")
	sb.WriteString(promptInstructions)
	sb.WriteString("\n\nANSWER:")
	return sb.String()
}
