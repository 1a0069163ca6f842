// Package tui renders a terminal monitor for opt-out runs: live per-broker
// progress, gate prompts when the run needs the user in the browser, and a
// final summary.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/unlist/pkg/types"
)

// Controller is the slice of the engine the monitor drives.
type Controller interface {
	Events() <-chan *types.Event
	Continue(resp types.GateResponse) error
	Cancel() error
}

// eventMsg wraps one engine event for the bubbletea update loop.
type eventMsg struct {
	event *types.Event
}

// streamClosedMsg signals the engine closed its event stream.
type streamClosedMsg struct{}

// Monitor is the bubbletea model for a single run.
type Monitor struct {
	controller Controller
	spinner    spinner.Model

	progress   *types.Progress
	completion *types.Completion
	cancelled  bool
	err        error
}

// NewMonitor creates a monitor bound to an engine with an active run.
func NewMonitor(controller Controller) *Monitor {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = stepStyle
	return &Monitor{
		controller: controller,
		spinner:    sp,
	}
}

// Run blocks until the run completes or the user quits.
func (m *Monitor) Run() error {
	program := tea.NewProgram(m)
	final, err := program.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(*Monitor); ok && fm.err != nil {
		return fm.err
	}
	return nil
}

func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.controller.Events()))
}

func waitForEvent(events <-chan *types.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg{event: ev}
	}
}

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		switch msg.event.Type {
		case types.EventRunProgress:
			m.progress = msg.event.Progress
		case types.EventRunComplete:
			m.completion = msg.event.Completion
			return m, tea.Quit
		}
		return m, waitForEvent(m.controller.Events())

	case streamClosedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Monitor) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancelled = true
		// The engine still emits its completion event; keep draining so
		// the final summary reflects the cancel.
		if err := m.controller.Cancel(); err != nil {
			return m, tea.Quit
		}
		return m, nil
	}

	if !m.waiting() {
		return m, nil
	}

	switch msg.String() {
	case "enter", "c":
		m.err = m.controller.Continue(types.GateProceed)
	case "r":
		m.err = m.controller.Continue(types.GateRetry)
	case "s":
		m.err = m.controller.Continue(types.GateSkip)
	case "a":
		m.err = m.controller.Continue(types.GateAbort)
	}
	return m, nil
}

func (m *Monitor) waiting() bool {
	return m.progress != nil && m.progress.Status == types.RunWaitingForUser
}

func (m *Monitor) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("unlist") + "\n\n")

	if m.completion != nil {
		return b.String() + m.summaryView()
	}

	if m.progress == nil {
		b.WriteString(m.spinner.View() + stepStyle.Render(" Starting run...") + "\n")
		return b.String()
	}

	p := m.progress
	b.WriteString(fmt.Sprintf("%s  %s\n",
		brokerStyle.Render(p.BrokerName),
		stepStyle.Render(fmt.Sprintf("(%d/%d brokers)", p.BrokersCompleted, p.BrokersTotal))))

	switch {
	case m.waiting():
		b.WriteString(m.gateView(p))
	case p.Error != "":
		b.WriteString(errorStyle.Render("  "+p.Error) + "\n")
	default:
		b.WriteString(fmt.Sprintf("  %s %s\n", m.spinner.View(), stepStyle.Render(p.CurrentStep)))
	}

	b.WriteString("\n" + helpStyle.Render("q/ctrl+c to cancel") + "\n")
	return b.String()
}

func (m *Monitor) gateView(p *types.Progress) string {
	var b strings.Builder
	title := waitingStyle.Render("Action needed")
	message := p.CurrentStep
	keys := "enter continue"
	if p.ActionRequired != nil {
		message = p.ActionRequired.Message
		if p.ActionRequired.Type == types.ActionStepFailed {
			keys = "r retry · s skip · a abort"
		}
	}
	b.WriteString(gateBoxStyle.Render(title+"\n"+message) + "\n")
	b.WriteString(helpStyle.Render("  "+keys) + "\n")
	return b.String()
}

func (m *Monitor) summaryView() string {
	c := m.completion
	var b strings.Builder
	if m.cancelled {
		b.WriteString(errorStyle.Render("Run cancelled") + "\n")
	} else {
		b.WriteString(successStyle.Render("Run complete") + "\n")
	}
	b.WriteString(fmt.Sprintf("  %s  %s\n",
		successStyle.Render(fmt.Sprintf("%d succeeded", c.Succeeded)),
		errorStyle.Render(fmt.Sprintf("%d failed", c.Failed))))
	return b.String()
}
