// Package cache holds the read-through cache for per-user stats.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/quizsets/backend/internal/logger"
	"github.com/quizsets/backend/internal/models"
)

// StatsCache stores UserStats rows by user id. A miss is (nil, false, nil).
// Set never replaces an entry with a row that has fewer quizzes taken, so a
// slow reader cannot overwrite a row written after a newer commit.
type StatsCache interface {
	Get(ctx context.Context, userID string) (*models.UserStats, bool, error)
	Set(ctx context.Context, stats *models.UserStats) error
	Invalidate(ctx context.Context, userID string) error
	Close() error
}

func statsKey(userID string) string {
	return "quizsets:stats:" + userID
}

// ── Redis ───────────────────────────────────────────────

type redisStats struct {
	rdb *goredis.Client
	ttl time.Duration
	log *logger.Logger
}

// NewRedisStats connects to addr and verifies the server answers.
func NewRedisStats(addr string, ttl time.Duration, log *logger.Logger) (StatsCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if log == nil {
		log = logger.Nop()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisStats{rdb: rdb, ttl: ttl, log: log.With("component", "stats_cache")}, nil
}

func (c *redisStats) Get(ctx context.Context, userID string) (*models.UserStats, bool, error) {
	raw, err := c.rdb.Get(ctx, statsKey(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	var stats models.UserStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		// Corrupt entry; drop it and treat as a miss.
		c.log.Warn("discarding unreadable stats entry", "user_id", userID, "error", err)
		_ = c.rdb.Del(ctx, statsKey(userID)).Err()
		return nil, false, nil
	}
	return &stats, true, nil
}

// setIfNewer writes ARGV[1] unless the cached entry has a higher
// quizzes_taken than ARGV[2]. ARGV[3] is the TTL in milliseconds, 0 for none.
var setIfNewer = goredis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local ok, entry = pcall(cjson.decode, cur)
	if ok and type(entry) == 'table' and tonumber(entry['quizzes_taken']) and tonumber(entry['quizzes_taken']) > tonumber(ARGV[2]) then
		return 0
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

func (c *redisStats) Set(ctx context.Context, stats *models.UserStats) error {
	if stats == nil {
		return nil
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	written, err := setIfNewer.Run(ctx, c.rdb, []string{statsKey(stats.UserID)},
		raw, stats.QuizzesTaken, c.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	if written == 0 {
		c.log.Debug("kept newer stats entry", "user_id", stats.UserID, "quizzes_taken", stats.QuizzesTaken)
	}
	return nil
}

func (c *redisStats) Invalidate(ctx context.Context, userID string) error {
	if err := c.rdb.Del(ctx, statsKey(userID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

func (c *redisStats) Close() error {
	return c.rdb.Close()
}

// ── Nop ─────────────────────────────────────────────────

// Nop is used when no Redis address is configured; every read misses.
type Nop struct{}

func (Nop) Get(context.Context, string) (*models.UserStats, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, *models.UserStats) error                 { return nil }
func (Nop) Invalidate(context.Context, string) error                     { return nil }
func (Nop) Close() error                                                 { return nil }
