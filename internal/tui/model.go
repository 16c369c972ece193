// Package tui is the live watch view: a single screen showing run
// progress and task transitions, fed by the event bus while the engine
// executes in the background.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/buildrunner/internal/events"
	"github.com/aristath/buildrunner/internal/scheduler"
	"github.com/aristath/buildrunner/internal/terminal"
)

// Model is the root Bubble Tea model for the watch view.
type Model struct {
	sub   <-chan events.Event
	lines []string

	total     int
	running   int
	succeeded int
	warned    int
	failed    int
	blocked   int

	vp       viewport.Model
	ready    bool
	done     bool
	width    int
	height   int
	quitting bool
}

// New creates a watch model subscribed to all bus topics.
func New(bus *events.Bus) Model {
	return Model{
		sub: bus.SubscribeAll(0),
	}
}

// Init starts waiting for the first event.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.sub)
}

// waitForEvent returns a command that delivers the next bus event.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return busClosedMsg{}
		}
		return event
	}
}

type busClosedMsg struct{}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - 7
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = vpHeight
		}
		m.refreshViewport()
		return m, nil

	case busClosedMsg:
		m.done = true
		return m, nil

	case events.TaskStartedEvent:
		m.appendLine(terminal.StyleStatusRunning.Render("▶ ") + msg.Name)
		return m, waitForEvent(m.sub)

	case events.TaskFinishedEvent:
		m.appendLine(statusLine(msg.Name, msg.Status))
		return m, waitForEvent(m.sub)

	case events.TaskBlockedEvent:
		m.appendLine(terminal.StyleStatusPending.Render(
			fmt.Sprintf("∅ %s (blocked by %s)", msg.Name, msg.BlockedBy)))
		return m, waitForEvent(m.sub)

	case events.RunProgressEvent:
		m.total = msg.Total
		m.running = msg.Running
		m.succeeded = msg.Succeeded
		m.warned = msg.Warned
		m.failed = msg.Failed
		m.blocked = msg.Blocked
		if msg.Done() {
			m.done = true
		}
		return m, waitForEvent(m.sub)
	}

	return m, nil
}

func statusLine(name string, status scheduler.TaskStatus) string {
	switch status {
	case scheduler.StatusSuccess:
		return terminal.StyleStatusSuccess.Render("✓ ") + name
	case scheduler.StatusSuccessWithWarning:
		return terminal.StyleStatusRunning.Render("⚠ ") + name
	case scheduler.StatusFailure:
		return terminal.StyleStatusFailed.Render("✗ ") + name
	}
	return name
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.vp.SetContent(strings.Join(m.lines, "\n"))
	m.vp.GotoBottom()
}

// View renders the watch screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "starting..."
	}

	var b strings.Builder

	b.WriteString(styleTitle.Render("buildrunner"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("running %s  ok %s  warn %s  failed %s  blocked %s\n",
		terminal.StyleStatusRunning.Render(fmt.Sprintf("%d", m.running)),
		terminal.StyleStatusSuccess.Render(fmt.Sprintf("%d", m.succeeded)),
		terminal.StyleStatusRunning.Render(fmt.Sprintf("%d", m.warned)),
		terminal.StyleStatusFailed.Render(fmt.Sprintf("%d", m.failed)),
		terminal.StyleStatusPending.Render(fmt.Sprintf("%d", m.blocked))))
	b.WriteString(m.progressBar())
	b.WriteString("\n")
	b.WriteString(m.vp.View())
	b.WriteString("\n")
	if m.done {
		b.WriteString(styleHelp.Render("run complete, press q to quit"))
	} else {
		b.WriteString(styleHelp.Render("q: quit"))
	}

	return b.String()
}

func (m Model) progressBar() string {
	if m.total == 0 {
		return ""
	}

	barWidth := m.width - 10
	if barWidth > 40 {
		barWidth = 40
	}
	if barWidth < 10 {
		barWidth = 10
	}

	terminalCount := m.succeeded + m.warned + m.failed + m.blocked
	doneWidth := (terminalCount * barWidth) / m.total
	runWidth := (m.running * barWidth) / m.total
	pendWidth := barWidth - doneWidth - runWidth

	bar := terminal.StyleStatusSuccess.Render(strings.Repeat("=", maxInt(0, doneWidth)))
	bar += terminal.StyleStatusRunning.Render(strings.Repeat("-", maxInt(0, runWidth)))
	bar += terminal.StyleStatusPending.Render(strings.Repeat(".", maxInt(0, pendWidth)))

	return fmt.Sprintf("[%s] %d/%d", bar, terminalCount, m.total)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
