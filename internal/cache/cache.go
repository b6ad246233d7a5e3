package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)

	// Evaluation caching. Cached suggestion payloads are keyed by bank
	// version + fingerprint hash; bumping the version on every decision
	// invalidates all stale evaluations without scanning keys.
	BankVersion(ctx context.Context) (int64, error)
	BumpBankVersion(ctx context.Context) (int64, error)
	GetEvaluation(ctx context.Context, version int64, fpHash string) ([]byte, bool, error)
	SetEvaluation(ctx context.Context, version int64, fpHash string, payload []byte, ttl time.Duration) error
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (c *RedisCache) BankVersion(ctx context.Context) (int64, error) {
	val, err := c.client.Get(ctx, BankVersionKey()).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func (c *RedisCache) BumpBankVersion(ctx context.Context) (int64, error) {
	return c.client.Incr(ctx, BankVersionKey()).Result()
}

func (c *RedisCache) GetEvaluation(ctx context.Context, version int64, fpHash string) ([]byte, bool, error) {
	return c.Get(ctx, EvaluationKey(version, fpHash))
}

func (c *RedisCache) SetEvaluation(ctx context.Context, version int64, fpHash string, payload []byte, ttl time.Duration) error {
	return c.Set(ctx, EvaluationKey(version, fpHash), payload, ttl)
}
