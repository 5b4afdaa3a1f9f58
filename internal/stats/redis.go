package stats

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis is the durable Backend. Field increments use HINCRBY, which is atomic
// per field server-side, so concurrent writers never lose updates.
type Redis struct {
	client *redis.Client
}

// RedisConfig carries connection settings for the counter store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis connects and pings the counter store.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Redis{client: client}, nil
}

// Ping verifies connectivity, for health checks.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// IncrFields increments each field of the keyed hash by one and refreshes the
// bucket TTL, in a single pipeline round trip.
func (r *Redis) IncrFields(ctx context.Context, key string, fields []string, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	for _, field := range fields {
		pipe.HIncrBy(ctx, key, field, 1)
	}
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("increment bucket %s: %w", key, err)
	}
	return nil
}

// ReadBucket fetches the full hash; an absent key reads as an empty map.
func (r *Redis) ReadBucket(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read bucket %s: %w", key, err)
	}

	bucket := make(map[string]int64, len(raw))
	for field, value := range raw {
		var n int64
		if _, err := fmt.Sscan(value, &n); err == nil {
			bucket[field] = n
		}
	}
	return bucket, nil
}
