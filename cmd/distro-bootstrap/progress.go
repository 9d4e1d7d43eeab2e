package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/BrianJOC/distro-bootstrap/phases"
)

// progressObserver draws a progress bar for runs without the dashboard.
type progressObserver struct {
	mu  sync.Mutex
	out io.Writer
	bar *progressbar.ProgressBar
}

func newProgressObserver(out io.Writer) *progressObserver {
	return &progressObserver{out: out}
}

func (p *progressObserver) OnEvent(ev phases.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case phases.EventTotalCount:
		p.bar = progressbar.NewOptions(ev.Total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription("Provisioning"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionFullWidth(),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.out) }),
		)
	case phases.EventPhaseStarted:
		if p.bar != nil {
			p.bar.Describe(ev.Phase.Title)
		}
	case phases.EventPhaseCompleted, phases.EventPhaseSkipped:
		p.advance()
	case phases.EventPhaseFailed:
		p.printLine(color.New(color.FgRed), "%s failed: %s", ev.Phase.Title, ev.Message)
		p.advance()
	case phases.EventWarning:
		p.printLine(color.New(color.FgYellow), "%s: %s", ev.Phase.Title, ev.Message)
	}
}

// Confirm is never consulted: prompts go through the terminal prompter.
func (p *progressObserver) Confirm(string) bool {
	return false
}

func (p *progressObserver) advance() {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *progressObserver) printLine(c *color.Color, format string, args ...any) {
	if p.bar != nil {
		_ = p.bar.Clear()
	}
	c.Fprintf(p.out, format+"\n", args...)
	if p.bar != nil {
		_ = p.bar.RenderBlank()
	}
}
