// Package status holds the in-process status board shared by the monitor
// loop (writer) and the dashboard (reader).
package status

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
)

// ErrAlreadyTerminal is returned when an update targets a finished entry
var ErrAlreadyTerminal = errors.New("status entry already terminal")

// Stats is a consistent view of the board counters
type Stats struct {
	Processed   int
	Errors      int
	Skipped     int
	InFlight    int
	Pending     int
	SuccessRate float64
}

type entry struct {
	state     core.State
	timestamp time.Time
	details   string
}

// Board maps status IDs to their latest state. Every method takes the same
// mutex and none of them call out while holding it.
type Board struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	pending int
	now     func() time.Time
	logger  *zap.Logger
}

// NewBoard creates an empty board
func NewBoard(logger *zap.Logger) *Board {
	return &Board{
		entries: make(map[string]*entry),
		now:     time.Now,
		logger:  logger,
	}
}

// Update records a state for id. Entries start in Processing (or go straight
// to a terminal state) and change exactly once more.
func (b *Board) Update(id string, state core.State, details string) error {
	if err := b.apply(id, state, details); err != nil {
		return err
	}

	b.logger.Info("Status updated",
		zap.String("status_id", id),
		zap.String("state", string(state)),
		zap.String("details", details))
	return nil
}

func (b *Board) apply(id string, state core.State, details string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if ok && e.state.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, id, e.state)
	}
	if !ok {
		e = &entry{}
		b.entries[id] = e
		b.order = append(b.order, id)
	}
	e.state = state
	e.timestamp = b.now()
	e.details = details
	return nil
}

// Get returns the row for id
func (b *Board) Get(id string) (core.StatusRow, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		return core.StatusRow{}, false
	}
	return core.StatusRow{ID: id, State: e.state, Timestamp: e.timestamp, Details: e.details}, true
}

// Snapshot returns every row in the order entries were first seen
func (b *Board) Snapshot() []core.StatusRow {
	b.mu.Lock()
	defer b.mu.Unlock()

	rows := make([]core.StatusRow, 0, len(b.order))
	for _, id := range b.order {
		e := b.entries[id]
		rows = append(rows, core.StatusRow{
			ID:        id,
			State:     e.state,
			Timestamp: e.timestamp,
			Details:   e.details,
		})
	}
	return rows
}

// ProcessedCount returns the number of completed entries
func (b *Board) ProcessedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.countLocked(core.StateCompleted)
}

// ErrorCount returns the number of failed entries
func (b *Board) ErrorCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.countLocked(core.StateFailed)
}

// SuccessRate returns completed/(completed+failed) as a percentage rounded
// to two decimals, or 100 while nothing has completed or failed yet.
func (b *Board) SuccessRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return successRate(b.countLocked(core.StateCompleted), b.countLocked(core.StateFailed))
}

// SetPending sets the number of fetched messages still waiting for dispatch
func (b *Board) SetPending(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n < 0 {
		n = 0
	}
	b.pending = n
}

// DecPending marks one pending message as handled
func (b *Board) DecPending() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending > 0 {
		b.pending--
	}
}

// Pending returns the queued message count
func (b *Board) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Stats returns all counters under one lock acquisition
func (b *Board) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	var s Stats
	for _, e := range b.entries {
		switch e.state {
		case core.StateCompleted:
			s.Processed++
		case core.StateFailed:
			s.Errors++
		case core.StateSkipped:
			s.Skipped++
		case core.StateProcessing:
			s.InFlight++
		}
	}
	s.Pending = b.pending
	s.SuccessRate = successRate(s.Processed, s.Errors)
	return s
}

// Close logs the final totals
func (b *Board) Close() {
	s := b.Stats()
	b.logger.Info("Status board closed",
		zap.Int("processed", s.Processed),
		zap.Int("errors", s.Errors),
		zap.Int("skipped", s.Skipped),
		zap.Float64("success_rate", s.SuccessRate))
}

func (b *Board) countLocked(state core.State) int {
	n := 0
	for _, e := range b.entries {
		if e.state == state {
			n++
		}
	}
	return n
}

func successRate(completed, failed int) float64 {
	total := completed + failed
	if total == 0 {
		return 100
	}
	return math.Round(float64(completed)/float64(total)*100*100) / 100
}
