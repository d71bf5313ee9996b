package status

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
)

func newTestBoard() *Board {
	b := NewBoard(zap.NewNop())
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return b
}

func TestBoardTransitions(t *testing.T) {
	b := newTestBoard()

	if err := b.Update("a", core.StateProcessing, "Email received"); err != nil {
		t.Fatalf("Update(Processing) error = %v", err)
	}
	if err := b.Update("a", core.StateCompleted, "Created PROJ-1"); err != nil {
		t.Fatalf("Update(Completed) error = %v", err)
	}

	err := b.Update("a", core.StateFailed, "late failure")
	if !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("Update after terminal error = %v, want ErrAlreadyTerminal", err)
	}

	row, ok := b.Get("a")
	if !ok {
		t.Fatal("row missing")
	}
	if row.State != core.StateCompleted || row.Details != "Created PROJ-1" {
		t.Errorf("row = %+v", row)
	}
}

func TestBoardDirectTerminal(t *testing.T) {
	b := newTestBoard()
	if err := b.Update("parse", core.StateFailed, "Unparseable message"); err != nil {
		t.Fatalf("Update error = %v", err)
	}
	if got := b.ErrorCount(); got != 1 {
		t.Errorf("ErrorCount = %d, want 1", got)
	}
}

func TestBoardSnapshotOrder(t *testing.T) {
	b := newTestBoard()
	b.Update("first", core.StateProcessing, "")
	b.Update("second", core.StateProcessing, "")
	b.Update("first", core.StateCompleted, "done")

	rows := b.Snapshot()
	if len(rows) != 2 || rows[0].ID != "first" || rows[1].ID != "second" {
		t.Fatalf("Snapshot = %+v", rows)
	}
	if !rows[0].Timestamp.After(rows[1].Timestamp) {
		t.Errorf("first row timestamp not refreshed on update")
	}
}

func TestBoardSuccessRate(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		failed    int
		skipped   int
		want      float64
	}{
		{"empty", 0, 0, 0, 100},
		{"only skipped", 0, 0, 3, 100},
		{"all completed", 4, 0, 0, 100},
		{"half", 1, 1, 0, 50},
		{"thirds", 2, 1, 5, 66.67},
		{"all failed", 0, 2, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBoard()
			n := 0
			add := func(state core.State, count int) {
				for i := 0; i < count; i++ {
					n++
					b.Update(string(rune('a'+n)), state, "")
				}
			}
			add(core.StateCompleted, tt.completed)
			add(core.StateFailed, tt.failed)
			add(core.StateSkipped, tt.skipped)

			if got := b.SuccessRate(); got != tt.want {
				t.Errorf("SuccessRate = %v, want %v", got, tt.want)
			}

			stats := b.Stats()
			if stats.Processed != tt.completed || stats.Errors != tt.failed || stats.Skipped != tt.skipped {
				t.Errorf("Stats = %+v", stats)
			}
			if stats.SuccessRate != tt.want {
				t.Errorf("Stats.SuccessRate = %v, want %v", stats.SuccessRate, tt.want)
			}
		})
	}
}

func TestBoardPending(t *testing.T) {
	b := newTestBoard()

	b.SetPending(2)
	b.DecPending()
	if got := b.Pending(); got != 1 {
		t.Errorf("Pending = %d, want 1", got)
	}
	b.DecPending()
	b.DecPending()
	if got := b.Pending(); got != 0 {
		t.Errorf("Pending = %d, want 0", got)
	}
	b.SetPending(-3)
	if got := b.Stats().Pending; got != 0 {
		t.Errorf("Pending after negative set = %d, want 0", got)
	}
}

func TestBoardConcurrentUpdates(t *testing.T) {
	b := NewBoard(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('A' + i))
			b.Update(id, core.StateProcessing, "")
			b.Update(id, core.StateCompleted, "")
			_ = b.Stats()
			_ = b.Snapshot()
		}(i)
	}
	wg.Wait()

	if got := b.ProcessedCount(); got != 50 {
		t.Errorf("ProcessedCount = %d, want 50", got)
	}
}
