// Package dashboard is the terminal UI for watching and controlling the
// inbox monitor.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mikey/ticket-automation/internal/core"
	"github.com/mikey/ticket-automation/internal/monitor"
	"github.com/mikey/ticket-automation/internal/status"
)

// Board is the read side of the status board
type Board interface {
	Snapshot() []core.StatusRow
	Stats() status.Stats
}

// Controller starts and stops monitoring sessions
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	State() monitor.State
	Stalled() bool
}

const (
	minRefresh = time.Second
	maxRefresh = 10 * time.Second
)

type tickMsg time.Time

type controlMsg struct {
	action string
	err    error
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	metricStyle  = lipgloss.NewStyle().Bold(true)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	alertStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle    = lipgloss.NewStyle().Faint(true)
)

// Model is the bubbletea model of the dashboard
type Model struct {
	ctx     context.Context
	board   Board
	control Controller
	keys    KeyMap
	refresh time.Duration

	table   table.Model
	stats   status.Stats
	state   monitor.State
	stalled bool
	busy    bool
	notice  string
}

// NewModel creates a dashboard polling board every refresh
func NewModel(ctx context.Context, board Board, control Controller, refresh time.Duration) Model {
	if refresh < minRefresh {
		refresh = minRefresh
	}
	if refresh > maxRefresh {
		refresh = maxRefresh
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Status ID", Width: 36},
			{Title: "Status", Width: 10},
			{Title: "Timestamp", Width: 19},
			{Title: "Details", Width: 50},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	m := Model{
		ctx:     ctx,
		board:   board,
		control: control,
		keys:    DefaultKeyMap,
		refresh: refresh,
		table:   t,
	}
	m.sync()
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Start):
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.notice = "Starting monitoring..."
			return m, m.startCmd()

		case key.Matches(msg, m.keys.Stop):
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.notice = "Stopping monitoring..."
			return m, m.stopCmd()
		}

		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case tickMsg:
		m.sync()
		return m, m.tick()

	case controlMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.notice = fmt.Sprintf("Failed to %s monitoring: %v", msg.action, msg.err)
		case msg.action == "start":
			m.notice = "Monitoring started"
		default:
			m.notice = "Monitoring stopped"
		}
		m.sync()
		return m, nil

	case tea.WindowSizeMsg:
		if h := msg.Height - 9; h > 3 {
			m.table.SetHeight(h)
		}
		if w := msg.Width - 36 - 10 - 19 - 8; w > 20 {
			cols := m.table.Columns()
			cols[3].Width = w
			m.table.SetColumns(cols)
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Email → Jira automation"))
	sb.WriteString("  ")
	sb.WriteString(m.stateLabel())
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Processed %s   Errors %s   Skipped %s   Queue %s   Success rate %s\n\n",
		runningStyle.Bold(true).Render(fmt.Sprint(m.stats.Processed)),
		alertStyle.Bold(true).Render(fmt.Sprint(m.stats.Errors)),
		metricStyle.Render(fmt.Sprint(m.stats.Skipped)),
		metricStyle.Render(fmt.Sprint(m.stats.Pending)),
		metricStyle.Render(fmt.Sprintf("%.2f%%", m.stats.SuccessRate)))

	if len(m.table.Rows()) == 0 {
		sb.WriteString(helpStyle.Render("No emails processed yet"))
		sb.WriteString("\n")
	} else {
		sb.WriteString(m.table.View())
		sb.WriteString("\n")
	}

	if m.notice != "" {
		sb.WriteString("\n")
		sb.WriteString(m.notice)
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(strings.Join([]string{
		m.keys.Start.Help().Key + " " + m.keys.Start.Help().Desc,
		m.keys.Stop.Help().Key + " " + m.keys.Stop.Help().Desc,
		m.keys.Quit.Help().Key + " " + m.keys.Quit.Help().Desc,
	}, " • ")))
	return sb.String()
}

func (m Model) stateLabel() string {
	switch {
	case m.stalled:
		return alertStyle.Render("● stalled: reconnect failed, restart monitoring")
	case m.state == monitor.StateRunning:
		return runningStyle.Render("● running")
	case m.state == monitor.StateStopping:
		return stoppedStyle.Render("● stopping")
	default:
		return stoppedStyle.Render("● stopped")
	}
}

// sync copies the board and controller state into the model
func (m *Model) sync() {
	m.stats = m.board.Stats()
	m.state = m.control.State()
	m.stalled = m.control.Stalled()

	snapshot := m.board.Snapshot()
	rows := make([]table.Row, 0, len(snapshot))
	for i := len(snapshot) - 1; i >= 0; i-- {
		r := snapshot[i]
		rows = append(rows, table.Row{
			r.ID,
			string(r.State),
			r.Timestamp.Format(time.DateTime),
			r.Details,
		})
	}
	m.table.SetRows(rows)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) startCmd() tea.Cmd {
	return func() tea.Msg {
		return controlMsg{action: "start", err: m.control.Start(m.ctx)}
	}
}

func (m Model) stopCmd() tea.Cmd {
	return func() tea.Msg {
		m.control.Stop()
		return controlMsg{action: "stop"}
	}
}
