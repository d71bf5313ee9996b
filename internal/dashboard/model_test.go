package dashboard

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mikey/ticket-automation/internal/core"
	"github.com/mikey/ticket-automation/internal/monitor"
	"github.com/mikey/ticket-automation/internal/status"
)

type fakeBoard struct {
	stats status.Stats
	rows  []core.StatusRow
}

func (b *fakeBoard) Stats() status.Stats         { return b.stats }
func (b *fakeBoard) Snapshot() []core.StatusRow { return b.rows }

type fakeController struct {
	state    monitor.State
	stalled  bool
	startErr error
	starts   int
	stops    int
}

func (c *fakeController) Start(ctx context.Context) error {
	c.starts++
	if c.startErr != nil {
		return c.startErr
	}
	c.state = monitor.StateRunning
	return nil
}

func (c *fakeController) Stop() {
	c.stops++
	c.state = monitor.StateStopped
}

func (c *fakeController) State() monitor.State { return c.state }
func (c *fakeController) Stalled() bool        { return c.stalled }

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press delivers a key and feeds the resulting command's message back in
func press(t *testing.T, m Model, s string) Model {
	t.Helper()
	next, cmd := m.Update(keyPress(s))
	m = next.(Model)
	if cmd == nil {
		t.Fatalf("key %q produced no command", s)
	}
	next, _ = m.Update(cmd())
	return next.(Model)
}

func TestQuit(t *testing.T) {
	m := NewModel(context.Background(), &fakeBoard{}, &fakeController{}, time.Second)

	_, cmd := m.Update(keyPress("q"))
	if cmd == nil {
		t.Fatal("q produced no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestStartAndStop(t *testing.T) {
	ctrl := &fakeController{state: monitor.StateIdle}
	m := NewModel(context.Background(), &fakeBoard{}, ctrl, time.Second)

	if !strings.Contains(m.View(), "stopped") {
		t.Errorf("idle view:\n%s", m.View())
	}

	m = press(t, m, "s")
	if ctrl.starts != 1 {
		t.Fatalf("starts = %d", ctrl.starts)
	}
	view := m.View()
	if !strings.Contains(view, "Monitoring started") || !strings.Contains(view, "running") {
		t.Errorf("view after start:\n%s", view)
	}

	m = press(t, m, "x")
	if ctrl.stops != 1 {
		t.Fatalf("stops = %d", ctrl.stops)
	}
	if !strings.Contains(m.View(), "Monitoring stopped") {
		t.Errorf("view after stop:\n%s", m.View())
	}
}

func TestStartFailureShowsNotice(t *testing.T) {
	ctrl := &fakeController{startErr: errors.New("login rejected")}
	m := NewModel(context.Background(), &fakeBoard{}, ctrl, time.Second)

	m = press(t, m, "s")
	if !strings.Contains(m.View(), "Failed to start monitoring: login rejected") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestKeysIgnoredWhileBusy(t *testing.T) {
	m := NewModel(context.Background(), &fakeBoard{}, &fakeController{}, time.Second)

	next, cmd := m.Update(keyPress("s"))
	if cmd == nil {
		t.Fatal("s produced no command")
	}
	m = next.(Model)

	if _, cmd := m.Update(keyPress("x")); cmd != nil {
		t.Error("stop accepted while a start is pending")
	}
}

func TestViewShowsBoard(t *testing.T) {
	board := &fakeBoard{}
	ctrl := &fakeController{}
	m := NewModel(context.Background(), board, ctrl, time.Second)

	if !strings.Contains(m.View(), "No emails processed yet") {
		t.Errorf("empty view:\n%s", m.View())
	}

	board.stats = status.Stats{Processed: 4, Errors: 1, SuccessRate: 75}
	board.rows = []core.StatusRow{
		{ID: "first-id", State: core.StateCompleted, Timestamp: time.Now(), Details: "Created PROJ-1"},
		{ID: "second-id", State: core.StateFailed, Timestamp: time.Now(), Details: "boom"},
	}
	ctrl.stalled = true

	next, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick did not schedule the next refresh")
	}
	m = next.(Model)

	view := m.View()
	for _, want := range []string{"75.00%", "first-id", "second-id", "Created PROJ-1", "stalled"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Index(view, "second-id") > strings.Index(view, "first-id") {
		t.Error("newest row should be listed first")
	}
}

func TestRefreshClamped(t *testing.T) {
	if m := NewModel(context.Background(), &fakeBoard{}, &fakeController{}, time.Millisecond); m.refresh != minRefresh {
		t.Errorf("refresh = %v, want %v", m.refresh, minRefresh)
	}
	if m := NewModel(context.Background(), &fakeBoard{}, &fakeController{}, time.Hour); m.refresh != maxRefresh {
		t.Errorf("refresh = %v, want %v", m.refresh, maxRefresh)
	}
}
