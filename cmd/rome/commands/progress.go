// ABOUTME: Terminal progress bars for ingestion stages
// ABOUTME: Adapts schollz/progressbar to the ingest pipeline's progress reporter
package commands

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
)

// barProgress draws one progress bar per ingestion stage
type barProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

var _ core.ProgressReporter = (*barProgress)(nil)

func newBarProgress(out io.Writer) *barProgress {
	return &barProgress{out: out}
}

func (p *barProgress) Start(stage string, total int) {
	p.Finish()
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(stage),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(p.out, "\n") }),
	)
}

func (p *barProgress) Add(n int) {
	if p.bar != nil {
		_ = p.bar.Add(n)
	}
}

func (p *barProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

// progressFor returns a bar reporter for interactive stderr and nil otherwise
func progressFor(stderr io.Writer) core.ProgressReporter {
	if quiet || !isTerminal(stderr) {
		return nil
	}
	return newBarProgress(stderr)
}
