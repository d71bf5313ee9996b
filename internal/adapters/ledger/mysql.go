package ledger

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

const mysqlUpsert = `
	INSERT INTO message_ledger (status_id, state, details, recorded_at, expires_at)
	VALUES (?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		state = VALUES(state),
		details = VALUES(details),
		recorded_at = VALUES(recorded_at),
		expires_at = VALUES(expires_at)
`

// MySQLLedger is a ledger shared through a MySQL database
type MySQLLedger struct {
	*sqlLedger
}

// NewMySQLLedger connects to dsn and creates the ledger table if needed
func NewMySQLLedger(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLLedger, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS message_ledger (
			status_id CHAR(36) PRIMARY KEY,
			state VARCHAR(16) NOT NULL,
			details VARCHAR(255) NOT NULL DEFAULT '',
			recorded_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL DEFAULT 0,
			INDEX idx_ledger_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLLedger{newSQLLedger(db, "mysql", mysqlUpsert, logger, cleanupFreq)}, nil
}
