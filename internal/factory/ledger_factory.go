package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/adapters/ledger"
	"github.com/mikey/ticket-automation/internal/config"
	"github.com/mikey/ticket-automation/internal/core"
)

// LedgerFactory creates ledgers based on configuration
type LedgerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLedgerFactory creates a new ledger factory
func NewLedgerFactory(cfg *config.Config, logger *zap.Logger) *LedgerFactory {
	return &LedgerFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLedger creates the ledger selected by ledger.type
func (f *LedgerFactory) CreateLedger(ctx context.Context) (core.Ledger, error) {
	c, err := f.cfg.GetLedger()
	if err != nil {
		return nil, err
	}

	switch c.Type {
	case "memory":
		return ledger.NewMemoryLedger(f.logger, c.CleanupFrequency), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(c.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		l, err := ledger.NewSQLiteLedger(c.SQLitePath, f.logger, c.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		return l, nil
	case "mysql":
		l, err := ledger.NewMySQLLedger(c.MySQLDSN, f.logger, c.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		return l, nil
	case "redis":
		l, err := ledger.NewRedisLedger(ctx, c.RedisURL, f.logger)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unsupported ledger type: %s", c.Type)
	}
}
