package ledger

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const sqliteUpsert = `
	INSERT OR REPLACE INTO message_ledger (status_id, state, details, recorded_at, expires_at)
	VALUES (?, ?, ?, ?, ?)
`

// SQLiteLedger is a ledger stored in a local SQLite file
type SQLiteLedger struct {
	*sqlLedger
}

// NewSQLiteLedger opens (and if needed creates) the ledger at dbPath
func NewSQLiteLedger(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// One writer at a time; the monitor goroutine is the only one anyway
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS message_ledger (
			status_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			recorded_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_ledger_expires_at ON message_ledger(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &SQLiteLedger{newSQLLedger(db, "sqlite", sqliteUpsert, logger, cleanupFreq)}, nil
}
