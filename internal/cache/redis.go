package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Domenick1991/travelquotes/config"
	"github.com/Domenick1991/travelquotes/internal/provider"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		now:    time.Now,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetBytes returns ok=false on a cache miss.
func (c *RedisCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (c *RedisCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) GetToken(ctx context.Context, providerName string) (provider.Token, bool, error) {
	data, ok, err := c.GetBytes(ctx, tokenKey(providerName))
	if err != nil || !ok {
		return provider.Token{}, false, err
	}
	var t provider.Token
	if err := json.Unmarshal(data, &t); err != nil {
		return provider.Token{}, false, err
	}
	return t, true, nil
}

// SetToken stores the token until it expires. Already expired tokens are not stored.
func (c *RedisCache) SetToken(ctx context.Context, providerName string, token provider.Token) error {
	ttl := token.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, tokenKey(providerName), payload, ttl).Err()
}

func (c *RedisCache) DeleteToken(ctx context.Context, providerName string) error {
	return c.client.Del(ctx, tokenKey(providerName)).Err()
}

// AcquireLock takes key for ttl. The returned token is needed to release it; ok=false
// means someone else holds the lock.
func (c *RedisCache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// ReleaseLock deletes the lock only if it is still held with token.
func (c *RedisCache) ReleaseLock(ctx context.Context, key, token string) error {
	return luaUnlock.Run(ctx, c.client, []string{lockKey(key)}, token).Err()
}

func tokenKey(providerName string) string {
	return "cache:provider:token:" + providerName
}

func lockKey(key string) string {
	return "lock:" + key
}

var _ provider.TokenCache = (*RedisCache)(nil)
