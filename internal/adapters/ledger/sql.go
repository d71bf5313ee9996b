package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
)

// sqlLedger is the shared database/sql implementation. Times are stored as
// unix seconds and an expires_at of 0 never expires.
type sqlLedger struct {
	db        *sql.DB
	name      string
	upsertSQL string
	logger    *zap.Logger
	janitor   *janitor
}

func newSQLLedger(db *sql.DB, name, upsertSQL string, logger *zap.Logger, cleanupFreq time.Duration) *sqlLedger {
	l := &sqlLedger{
		db:        db,
		name:      name,
		upsertSQL: upsertSQL,
		logger:    logger,
	}
	l.janitor = startJanitor(cleanupFreq, l.Cleanup, logger)
	return l
}

// Lookup returns the live entry for statusID
func (l *sqlLedger) Lookup(ctx context.Context, statusID string) (*core.LedgerEntry, error) {
	var state, details string
	var recordedAt, expiresAt int64

	err := l.db.QueryRowContext(ctx, `
		SELECT state, details, recorded_at, expires_at
		FROM message_ledger
		WHERE status_id = ? AND (expires_at = 0 OR expires_at > ?)
	`, statusID, time.Now().Unix()).Scan(&state, &details, &recordedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s ledger: %w", l.name, err)
	}

	entry := &core.LedgerEntry{
		StatusID:   statusID,
		State:      core.State(state),
		Details:    details,
		RecordedAt: time.Unix(recordedAt, 0),
	}
	if expiresAt > 0 {
		entry.ExpiresAt = time.Unix(expiresAt, 0)
	}
	return entry, nil
}

// Record stores entry, replacing any previous one
func (l *sqlLedger) Record(ctx context.Context, entry *core.LedgerEntry) error {
	var expiresAt int64
	if !entry.ExpiresAt.IsZero() {
		expiresAt = entry.ExpiresAt.Unix()
	}

	_, err := l.db.ExecContext(ctx, l.upsertSQL,
		entry.StatusID,
		string(entry.State),
		entry.Details,
		entry.RecordedAt.Unix(),
		expiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert %s ledger entry: %w", l.name, err)
	}
	return nil
}

// Cleanup removes expired entries
func (l *sqlLedger) Cleanup(ctx context.Context) error {
	result, err := l.db.ExecContext(ctx, `
		DELETE FROM message_ledger
		WHERE expires_at > 0 AND expires_at <= ?
	`, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		l.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		l.logger.Debug("Cleaned up expired ledger entries", zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

// Stop stops the background cleanup task and closes the database
func (l *sqlLedger) Stop() {
	l.janitor.stop()
	if err := l.db.Close(); err != nil {
		l.logger.Error("Failed to close ledger database", zap.String("backend", l.name), zap.Error(err))
	}
}
