package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix: префикс ключей refresh-токенов в Redis.
const DefaultPrefix = "auth:rt:"

// RefreshEntry описывает данные, которые мы храним в Redis по хэшу refresh-токена.
type RefreshEntry struct {
	UserID    int64
	Revoked   bool
	ExpiresAt time.Time
}

// RefreshCache: минимальный контракт кэша refresh-токенов.
// Кэш не авторитетен: промах или ошибка означают «спросить БД».
type RefreshCache interface {
	// Get возвращает запись и признак её наличия в кэше.
	Get(ctx context.Context, hash string) (*RefreshEntry, bool, error)
	// Set сохраняет запись с TTL (обычно ExpiresAt-now).
	Set(ctx context.Context, hash string, e *RefreshEntry, ttl time.Duration) error
	// MarkRevoked помечает ключ rev=1 и продлевает его жизнь до ttl.
	MarkRevoked(ctx context.Context, hash string, ttl time.Duration) error
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой: используется DefaultPrefix.
func NewRedisCache(ctx context.Context, redisURL, prefix string) (RefreshCache, error) {
	const op = "cache.NewRedisCache"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithClient(rdb, prefix), nil
}

// NewWithClient оборачивает готовый клиент Redis.
func NewWithClient(rdb redis.UniversalClient, prefix string) RefreshCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &redisCache{rdb: rdb, prefix: prefix}
}

func (c *redisCache) key(hash string) string { return c.prefix + hash }

// Храним как Redis Hash с полями: uid, rev (0/1), exp (unix).
// Запись, созданная только через MarkRevoked, не содержит uid/exp.
func (c *redisCache) Get(ctx context.Context, hash string) (*RefreshEntry, bool, error) {
	m, err := c.rdb.HGetAll(ctx, c.key(hash)).Result()
	if err != nil {
		return nil, false, err
	}

	if len(m) == 0 {
		return nil, false, nil
	}

	e := &RefreshEntry{Revoked: m["rev"] == "1"}

	if v, ok := m["uid"]; ok {
		if e.UserID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, false, err
		}
	}

	if v, ok := m["exp"]; ok {
		expUnix, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, false, err
		}
		e.ExpiresAt = time.Unix(expUnix, 0).UTC()
	}

	return e, true, nil
}

func (c *redisCache) Set(ctx context.Context, hash string, e *RefreshEntry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	kv := map[string]string{
		"uid": strconv.FormatInt(e.UserID, 10),
		"rev": boolTo01(e.Revoked),
		"exp": strconv.FormatInt(e.ExpiresAt.Unix(), 10),
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key(hash), kv)
	pipe.Expire(ctx, c.key(hash), ttl)

	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCache) MarkRevoked(ctx context.Context, hash string, ttl time.Duration) error {
	if ttl <= 0 {
		return c.rdb.Del(ctx, c.key(hash)).Err()
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key(hash), "rev", "1")
	pipe.Expire(ctx, c.key(hash), ttl)

	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCache) Close() error { return c.rdb.Close() }

func boolTo01(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
