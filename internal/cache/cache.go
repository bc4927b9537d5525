// cache хранит отрендеренные страницы для регенерации (ISR).
// Драйверы: memory (по умолчанию) и redis.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pribylovaa/go-spacetraveling/internal/config"
)

// Page — отрендеренная страница.
type Page struct {
	Body        []byte
	ContentType string
	Status      int
	GeneratedAt time.Time
}

// PageCache — минимальный контракт кэша страниц.
type PageCache interface {
	// Get возвращает страницу и признак её наличия в кэше.
	Get(ctx context.Context, key string) (*Page, bool, error)
	// Set сохраняет страницу с TTL хранения (0 — без ограничения).
	Set(ctx context.Context, key string, p *Page, ttl time.Duration) error
	// Delete удаляет страницу (пост исчез из CMS).
	Delete(ctx context.Context, key string) error
	// Close освобождает ресурсы.
	Close() error
}

// New собирает кэш по конфигу.
func New(cfg config.CacheConfig) (PageCache, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryCache(), nil
	case "redis":
		return NewRedisCache(cfg.RedisURL, cfg.Prefix)
	default:
		return nil, fmt.Errorf("cache.New: unknown driver %q", cfg.Driver)
	}
}

type memoryEntry struct {
	page      Page
	expiresAt time.Time
}

type memoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	now   func() time.Time
}

// NewMemoryCache — кэш в памяти процесса.
func NewMemoryCache() PageCache {
	return &memoryCache{items: make(map[string]memoryEntry), now: time.Now}
}

func (c *memoryCache) Get(_ context.Context, key string) (*Page, bool, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false, nil
	}

	p := e.page
	return &p, true, nil
}

func (c *memoryCache) Set(_ context.Context, key string, p *Page, ttl time.Duration) error {
	e := memoryEntry{page: *p}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.items[key] = e
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Close() error { return nil }
