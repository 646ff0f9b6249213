package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/logging"
)

// CachedStats serves Stats from redis for a short TTL and falls through to
// next on a miss. Entries are keyed by a per-event generation that
// Invalidate bumps, so a projection computed before a write is stored under
// a generation nobody reads any more. Callers must invalidate after the
// write commits. A nil redis client disables caching.
type CachedStats struct {
	next   StatsReader
	rdb    *redis.Client
	ttl    time.Duration
	genTTL time.Duration
	prefix string
	logger *zap.Logger
}

// NewCachedStats decorates next with a redis cache.
func NewCachedStats(next StatsReader, rdb *redis.Client, ttl time.Duration, prefix string, logger *zap.Logger) *CachedStats {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if prefix == "" {
		prefix = "stats"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// gen keys must outlive every entry written under them
	genTTL := 24 * time.Hour
	if genTTL < 2*ttl {
		genTTL = 2 * ttl
	}
	return &CachedStats{next: next, rdb: rdb, ttl: ttl, genTTL: genTTL, prefix: prefix, logger: logger}
}

func (c *CachedStats) genKey(eventID string) string {
	return c.prefix + ":gen:" + eventID
}

func (c *CachedStats) key(eventID string, gen int64) string {
	return c.prefix + ":event:" + eventID + ":" + strconv.FormatInt(gen, 10)
}

// Stats returns the cached projection or computes and stores it.
func (c *CachedStats) Stats(ctx context.Context, eventID string) (*Stats, error) {
	if c.rdb == nil {
		return c.next.Stats(ctx, eventID)
	}

	gen, err := c.rdb.Get(ctx, c.genKey(eventID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		logging.Warn(ctx, c.logger, "stats cache generation read failed", zap.String("event_id", eventID), zap.Error(err))
		return c.next.Stats(ctx, eventID)
	}
	key := c.key(eventID, gen)

	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var st Stats
		if err := json.Unmarshal(raw, &st); err == nil {
			return &st, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.Warn(ctx, c.logger, "stats cache read failed", zap.String("key", key), zap.Error(err))
	}

	st, err := c.next.Stats(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(st); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logging.Warn(ctx, c.logger, "stats cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return st, nil
}

// Invalidate moves eventID to a new generation, orphaning every projection
// cached or being computed under the old one.
func (c *CachedStats) Invalidate(ctx context.Context, eventID string) {
	if c.rdb == nil {
		return
	}
	// the write already committed; a cancelled request must not skip this
	ctx = context.WithoutCancel(ctx)
	genKey := c.genKey(eventID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, c.genTTL)
		return nil
	})
	if err != nil {
		logging.Warn(ctx, c.logger, "stats cache invalidate failed", zap.String("event_id", eventID), zap.Error(err))
	}
}
