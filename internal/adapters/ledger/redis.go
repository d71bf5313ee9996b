package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
)

// keyPrefix namespaces ledger keys in Redis
const keyPrefix = "ticket-automation:ledger:"

// RedisLedger keeps entries as JSON values whose Redis TTL matches the
// entry expiry, so Cleanup has nothing to do.
type RedisLedger struct {
	rdb    *redis.Client
	logger *zap.Logger
}

type redisEntry struct {
	State      string `json:"state"`
	Details    string `json:"details"`
	RecordedAt int64  `json:"recorded_at"`
	ExpiresAt  int64  `json:"expires_at"`
}

// NewRedisLedger connects to the Redis server at url (redis://...)
func NewRedisLedger(ctx context.Context, url string, logger *zap.Logger) (*RedisLedger, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisLedgerWithClient(rdb, logger), nil
}

// NewRedisLedgerWithClient wraps an existing client
func NewRedisLedgerWithClient(rdb *redis.Client, logger *zap.Logger) *RedisLedger {
	return &RedisLedger{rdb: rdb, logger: logger}
}

// Lookup returns the live entry for statusID
func (l *RedisLedger) Lookup(ctx context.Context, statusID string) (*core.LedgerEntry, error) {
	raw, err := l.rdb.Get(ctx, keyPrefix+statusID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger GET: %w", err)
	}

	var e redisEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entry: %w", err)
	}

	entry := &core.LedgerEntry{
		StatusID:   statusID,
		State:      core.State(e.State),
		Details:    e.Details,
		RecordedAt: time.Unix(e.RecordedAt, 0),
	}
	if e.ExpiresAt > 0 {
		entry.ExpiresAt = time.Unix(e.ExpiresAt, 0)
	}
	return entry, nil
}

// Record stores entry with a TTL derived from its expiry
func (l *RedisLedger) Record(ctx context.Context, entry *core.LedgerEntry) error {
	e := redisEntry{
		State:      string(entry.State),
		Details:    entry.Details,
		RecordedAt: entry.RecordedAt.Unix(),
	}

	var ttl time.Duration
	if !entry.ExpiresAt.IsZero() {
		e.ExpiresAt = entry.ExpiresAt.Unix()
		ttl = time.Until(entry.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode ledger entry: %w", err)
	}
	if err := l.rdb.Set(ctx, keyPrefix+entry.StatusID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("ledger SET: %w", err)
	}
	return nil
}

// Cleanup is a no-op; Redis expires keys itself
func (l *RedisLedger) Cleanup(ctx context.Context) error {
	return nil
}

// Stop closes the client
func (l *RedisLedger) Stop() {
	if err := l.rdb.Close(); err != nil {
		l.logger.Error("Failed to close redis client", zap.Error(err))
	}
}
