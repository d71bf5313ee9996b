// Package ledger stores the terminal outcome of every processed message so
// a message that is redelivered is acknowledged instead of dispatched again.
package ledger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
)

// MemoryLedger is an in-memory ledger. Entries do not survive a restart.
type MemoryLedger struct {
	entries map[string]core.LedgerEntry
	mu      sync.RWMutex
	logger  *zap.Logger
	janitor *janitor
}

// NewMemoryLedger creates a new in-memory ledger
func NewMemoryLedger(logger *zap.Logger, cleanupFreq time.Duration) *MemoryLedger {
	l := &MemoryLedger{
		entries: make(map[string]core.LedgerEntry),
		logger:  logger,
	}
	l.janitor = startJanitor(cleanupFreq, l.Cleanup, logger)
	return l
}

// Lookup returns the live entry for statusID
func (l *MemoryLedger) Lookup(ctx context.Context, statusID string) (*core.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[statusID]
	if !ok || expired(entry, time.Now()) {
		return nil, core.ErrNotFound
	}
	return &entry, nil
}

// Record stores entry, replacing any previous one
func (l *MemoryLedger) Record(ctx context.Context, entry *core.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[entry.StatusID] = *entry
	return nil
}

// Cleanup removes expired entries
func (l *MemoryLedger) Cleanup(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	expiredCount := 0
	for id, entry := range l.entries {
		if expired(entry, now) {
			delete(l.entries, id)
			expiredCount++
		}
	}

	l.logger.Debug("Cleaned up expired ledger entries", zap.Int("expired_count", expiredCount))
	return nil
}

// Stop stops the background cleanup task
func (l *MemoryLedger) Stop() {
	l.janitor.stop()
}

// expired reports whether entry has passed its expiry. A zero expiry never
// expires.
func expired(entry core.LedgerEntry, now time.Time) bool {
	return !entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt)
}

// janitor runs a cleanup function on a fixed schedule
type janitor struct {
	stopCh chan struct{}
	once   sync.Once
}

func startJanitor(freq time.Duration, cleanup func(context.Context) error, logger *zap.Logger) *janitor {
	j := &janitor{stopCh: make(chan struct{})}
	if freq <= 0 {
		return j
	}

	go func() {
		ticker := time.NewTicker(freq)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := cleanup(context.Background()); err != nil {
					logger.Error("Failed to clean up ledger", zap.Error(err))
				}
			case <-j.stopCh:
				return
			}
		}
	}()
	return j
}

func (j *janitor) stop() {
	j.once.Do(func() { close(j.stopCh) })
}
