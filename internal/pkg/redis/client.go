package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/wzyjerry/llm-arena/internal/pkg/config"
	"github.com/wzyjerry/llm-arena/internal/pkg/logger"
	"go.uber.org/zap"
)

// slotTTL bounds how long a leaked slot can stay counted, in seconds.
const slotTTL = 3600

// acquireScript atomically checks and increments a concurrency counter.
var acquireScript = redis.NewScript(`
	local current = tonumber(redis.call('GET', KEYS[1]) or '0')
	local max_concurrency = tonumber(ARGV[1])
	if current < max_concurrency then
		redis.call('INCR', KEYS[1])
		redis.call('EXPIRE', KEYS[1], ARGV[2])
		return 1
	else
		return 0
	end
`)

// Client counts in-flight model calls per model across processes.
type Client struct {
	rdb *redis.Client
	log *zap.Logger
}

// New connects to the configured Redis server and verifies the connection.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.GetRedisAddr(),
		DB:   cfg.RedisService.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	c := NewFromClient(rdb)
	c.log.Info("Redis connected successfully",
		zap.String("addr", cfg.GetRedisAddr()))
	return c, nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{
		rdb: rdb,
		log: logger.Named("redis"),
	}
}

// SlotKey returns the counter key for a model.
func SlotKey(model string) string {
	return fmt.Sprintf("model_concurrency:%s", model)
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireSlot takes one of maxConcurrency slots for key. It reports false
// when every slot is in use.
func (c *Client) AcquireSlot(ctx context.Context, key string, maxConcurrency int) (bool, error) {
	result, err := acquireScript.Run(ctx, c.rdb, []string{key}, maxConcurrency, slotTTL).Result()
	if err != nil {
		return false, err
	}

	acquired, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected result type %T", result)
	}

	return acquired == 1, nil
}

// ReleaseSlot gives back a slot taken by AcquireSlot.
func (c *Client) ReleaseSlot(ctx context.Context, key string) error {
	newCount, err := c.rdb.Decr(ctx, key).Result()
	if err != nil {
		return err
	}

	if newCount <= 0 {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			c.log.Warn("Failed to delete drained slot key",
				zap.String("key", key), zap.Error(err))
		}
	}

	return nil
}

// GetCurrentConcurrency returns the number of slots in use for key.
func (c *Client) GetCurrentConcurrency(ctx context.Context, key string) (int, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(val)
}
