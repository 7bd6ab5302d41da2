package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"scanstream/internal/session"
)

type Model struct {
	events     <-chan session.Event
	onQuit     func()
	onTorch    func(bool) error
	started    time.Time
	width      int
	attempts   int
	skipped    int
	empty      int
	delivered  int
	suppressed int
	strategy   string
	lastValue  string
	status     string
	torch      bool
	quitting   bool
}

type doneMsg struct{}

type eventMsg session.Event

type torchMsg struct {
	on  bool
	err error
}

func NewModel(events <-chan session.Event) Model {
	return Model{events: events, started: time.Now(), status: "starting"}
}

func (m Model) Init() tea.Cmd {
	return listenForEvents(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m = m.apply(session.Event(msg))
		if m.quitting {
			return m, tea.Quit
		}
		return m, listenForEvents(m.events)
	case torchMsg:
		if msg.err != nil {
			m.status = "torch: " + msg.err.Error()
		} else {
			m.torch = msg.on
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, m.stopCmd()
		case "t":
			return m, m.torchCmd(!m.torch)
		}
		return m, nil
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) apply(ev session.Event) Model {
	switch ev.Kind {
	case session.EventStarted:
		m.strategy = ev.Strategy
		m.status = "scanning"
	case session.EventTick:
		m.attempts++
	case session.EventSkipped:
		m.skipped++
	case session.EventNotFound:
		m.empty++
	case session.EventDelivered:
		m.delivered++
		m.lastValue = ev.Value
	case session.EventSuppressed:
		m.suppressed++
	case session.EventTorch:
		m.torch = ev.Value == "on"
	case session.EventFound:
		m.lastValue = ev.Value
		m.status = "found"
		m.quitting = true
	case session.EventStopped:
		m.status = "stopped"
		m.quitting = true
	case session.EventFailed:
		m.status = "failed"
		if ev.Err != nil {
			m.status = "failed: " + ev.Err.Error()
		}
		m.quitting = true
	}
	return m
}

// stopCmd runs the stop callback off the update loop: stopping removes the
// surface, which waits for this program to exit.
func (m Model) stopCmd() tea.Cmd {
	if m.onQuit == nil {
		return tea.Quit
	}
	stop := m.onQuit
	return func() tea.Msg {
		stop()
		return nil
	}
}

func (m Model) torchCmd(on bool) tea.Cmd {
	if m.onTorch == nil {
		return nil
	}
	set := m.onTorch
	return func() tea.Msg {
		return torchMsg{on: on, err: set(on)}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	ratio := 0.0
	if m.attempts > 0 {
		ratio = float64(m.attempts-m.skipped) / float64(m.attempts)
	}

	bar := renderBar(barWidth, ratio)
	elapsed := time.Since(m.started).Round(time.Millisecond)
	last := m.lastValue
	if last == "" {
		last = "-"
	}

	lines := []string{
		titleStyle.Render("scanstream") + "  " + statusStyle(m.status).Render(m.status),
		labelStyle.Render(fmt.Sprintf("Attempts: %d", m.attempts)) + dimStyle.Render(fmt.Sprintf("  skipped:%d empty:%d", m.skipped, m.empty)),
		labelStyle.Render(fmt.Sprintf("Strategy: %s", m.strategy)) + dimStyle.Render(fmt.Sprintf("  torch:%s", onOff(m.torch))),
		labelStyle.Render(fmt.Sprintf("Last value: %s", last)) + dimStyle.Render(fmt.Sprintf("  delivered:%d suppressed:%d", m.delivered, m.suppressed)),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s  (q to stop, t for torch)", elapsed)),
		barStyle.Render(bar),
	}

	return strings.Join(lines, "\n")
}

func listenForEvents(events <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func statusStyle(status string) lipgloss.Style {
	switch {
	case status == "found":
		return lipgloss.NewStyle().Foreground(ColorFound)
	case strings.HasPrefix(status, "failed"), strings.HasPrefix(status, "torch:"):
		return lipgloss.NewStyle().Foreground(ColorFailed)
	case status == "starting":
		return lipgloss.NewStyle().Foreground(ColorPending)
	}
	return dimStyle
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle   = lipgloss.NewStyle().Foreground(ColorFound)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
)
