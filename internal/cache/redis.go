package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "blog:page:".
func NewRedisCache(redisURL, prefix string) (PageCache, error) {
	if prefix == "" {
		prefix = "blog:page:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(k string) string { return c.prefix + k }

// Храним как Redis Hash с полями: body, ct (content type), st (status), gen (unix nano).
func (c *redisCache) Get(ctx context.Context, key string) (*Page, bool, error) {
	m, err := c.rdb.HGetAll(ctx, c.key(key)).Result()
	if err != nil {
		return nil, false, err
	}

	if len(m) == 0 {
		return nil, false, nil
	}

	status, err := strconv.Atoi(m["st"])
	if err != nil {
		return nil, false, err
	}

	gen, err := strconv.ParseInt(m["gen"], 10, 64)
	if err != nil {
		return nil, false, err
	}

	return &Page{
		Body:        []byte(m["body"]),
		ContentType: m["ct"],
		Status:      status,
		GeneratedAt: time.Unix(0, gen).UTC(),
	}, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, p *Page, ttl time.Duration) error {
	kv := map[string]string{
		"body": string(p.Body),
		"ct":   p.ContentType,
		"st":   strconv.Itoa(p.Status),
		"gen":  strconv.FormatInt(p.GeneratedAt.UnixNano(), 10),
	}

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, c.key(key))
	pipe.HSet(ctx, c.key(key), kv)
	if ttl > 0 {
		pipe.Expire(ctx, c.key(key), ttl)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.key(key)).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }
