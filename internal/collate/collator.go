package collate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aristath/buildrunner/internal/scheduler"
	"github.com/aristath/buildrunner/internal/terminal"
)

// Options configure how finished tasks' output is surfaced.
type Options struct {
	Quiet         bool // Suppress non-failure output
	AllowWarnings bool // Warnings do not fail the run
}

// Collator owns the shared terminal for the duration of a run. Each
// finished task's block is emitted under one mutex, so blocks from
// concurrent completions never interleave.
type Collator struct {
	mu     sync.Mutex
	term   terminal.Terminal
	opts   Options
	report *Report
}

// New creates a collator writing to the given terminal.
func New(term terminal.Terminal, opts Options) *Collator {
	return &Collator{
		term:   term,
		opts:   opts,
		report: newReport(opts.AllowWarnings),
	}
}

// Report returns the aggregate report built up over the run.
func (c *Collator) Report() *Report {
	return c.report
}

// TaskFinished surfaces a finished task's captured output according to
// its terminal status. Called exactly once per task, in completion order.
func (c *Collator) TaskFinished(task *scheduler.Task, capture *Capture) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch task.Status {
	case scheduler.StatusBlocked:
		// Never ran, nothing captured. Recorded as skipped.
		c.report.addBlocked(task.Name)

	case scheduler.StatusSuccess:
		c.emitSuccess(task, capture)

	case scheduler.StatusSuccessWithWarning:
		block := c.diagnosticBlock(capture)
		section := c.composeSection(task.Name, "completed with warnings", block)
		// An allowed warning is informational, so quiet mode may drop it.
		// A warning that fails the build is always surfaced.
		if !c.opts.AllowWarnings || !c.opts.Quiet {
			c.term.WriteWarning(section)
		}
		c.report.addWarning(task.Name, section)

	case scheduler.StatusFailure:
		block := c.diagnosticBlock(capture)
		section := c.composeSection(task.Name, "failed", block)
		c.term.WriteError(section)
		c.report.addFailure(task.Name, section)
	}
}

// emitSuccess surfaces a successful task's standard stream unless quiet
// mode suppresses it.
func (c *Collator) emitSuccess(task *scheduler.Task, capture *Capture) {
	if c.opts.Quiet {
		return
	}

	label := task.Name
	if task.HadEmptyScript {
		label += " (no script)"
	}

	var b strings.Builder
	b.WriteString(header(label))
	b.WriteString("\n")
	if content := Trim(capture.StdoutText()); content != "" {
		b.WriteString(content)
		b.WriteString("\n")
	}
	c.term.Write(b.String())
}

// diagnosticBlock picks the channel to surface for a failing or warning
// task: the error stream when it has content, otherwise the standard
// stream, since diagnostics often land there when no distinct error
// stream exists. The chosen channel is abridged; the other is dropped.
func (c *Collator) diagnosticBlock(capture *Capture) string {
	if stderr := capture.StderrText(); strings.TrimSpace(stderr) != "" {
		return Abridge(stderr)
	}
	return Abridge(capture.StdoutText())
}

func (c *Collator) composeSection(name, verdict, block string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s:", name, verdict))
	if block != "" {
		b.WriteString("\n")
		b.WriteString(block)
	}
	return b.String()
}

func header(label string) string {
	const width = 60
	h := fmt.Sprintf("==[ %s ]", label)
	if pad := width - len(h); pad > 0 {
		h += strings.Repeat("=", pad)
	}
	return h
}
