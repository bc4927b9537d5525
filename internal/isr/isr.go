// isr реализует инкрементальную регенерацию страниц поверх cache.PageCache.
//
// Поведение Serve:
//   - свежая страница отдаётся из кэша;
//   - устаревшая отдаётся как есть, а в фоне запускается одна пересборка на ключ;
//   - промах собирает страницу (одна сборка на ключ для всех конкурентных запросов) и сохраняет её;
//   - при FallbackWait > 0 промах, не уложившийся в ожидание, возвращает ErrPending,
//     сборка при этом продолжается.
//
// Фоновая пересборка, вернувшая ErrNotFound, удаляет ключ; любая другая ошибка
// оставляет в кэше прежнюю страницу.
package isr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pribylovaa/go-spacetraveling/internal/cache"
	"github.com/pribylovaa/go-spacetraveling/internal/metrics"
	"github.com/pribylovaa/go-spacetraveling/pkg/log"
)

var (
	// ErrNotFound — сборщик сообщает, что страницы больше нет.
	ErrNotFound = errors.New("page not found")
	// ErrPending — страница ещё собирается (fallback).
	ErrPending = errors.New("page is being generated")
)

// Builder собирает страницу.
type Builder func(ctx context.Context) (*cache.Page, error)

type Options struct {
	// MaxAge — TTL хранения в кэше (0 — без ограничения).
	MaxAge time.Duration
	// Timeout — дедлайн одной сборки.
	Timeout time.Duration
	// FallbackWait — сколько ждать сборку при промахе (0 — ждать до конца).
	FallbackWait time.Duration
	Metrics      *metrics.Metrics
}

type Regenerator struct {
	cache cache.PageCache
	opts  Options
	now   func() time.Time

	mu sync.Mutex
	// inflight — ключи с запущенной фоновой пересборкой.
	inflight map[string]struct{}
	group    singleflight.Group
	bg       sync.WaitGroup
}

func New(c cache.PageCache, opts Options) *Regenerator {
	return &Regenerator{
		cache:    c,
		opts:     opts,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

// Serve отдаёт страницу по ключу. revalidate <= 0 — страница не устаревает.
func (r *Regenerator) Serve(ctx context.Context, key string, revalidate time.Duration, build Builder) (*cache.Page, error) {
	const op = "isr.Serve"

	lg := log.From(ctx).With(slog.String("op", op), slog.String("key", key))

	p, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		lg.Warn("page_cache_read_failed", slog.String("err", err.Error()))
		ok = false
	}

	if ok {
		if revalidate <= 0 || r.now().Sub(p.GeneratedAt) < revalidate {
			r.served(ctx, metrics.OutcomeFresh)
			return p, nil
		}

		r.served(ctx, metrics.OutcomeStale)
		r.regenerate(ctx, key, build)
		return p, nil
	}

	r.served(ctx, metrics.OutcomeMiss)

	bctx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		return r.rebuild(bctx, key, build)
	})

	var wait <-chan time.Time
	if r.opts.FallbackWait > 0 {
		t := time.NewTimer(r.opts.FallbackWait)
		defer t.Stop()
		wait = t.C
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("%s: %w", op, res.Err)
		}

		return res.Val.(*cache.Page), nil
	case <-wait:
		r.served(ctx, metrics.OutcomePending)
		lg.Debug("page_pending")
		return nil, ErrPending
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

// Bypass собирает страницу без кэша (режим предпросмотра).
func (r *Regenerator) Bypass(ctx context.Context, build Builder) (*cache.Page, error) {
	r.served(ctx, metrics.OutcomeBypass)

	p, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("isr.Bypass: %w", err)
	}

	return p, nil
}

// Store кладёт готовую страницу в кэш (прогрев, экспорт).
func (r *Regenerator) Store(ctx context.Context, key string, build Builder) (*cache.Page, error) {
	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.rebuild(ctx, key, build)
	})
	if err != nil {
		return nil, fmt.Errorf("isr.Store: %w", err)
	}

	return v.(*cache.Page), nil
}

// served учитывает исход в метриках и аннотирует запись запроса.
// Ожидание после промаха помечается отдельно, исход "miss" остаётся.
func (r *Regenerator) served(ctx context.Context, outcome string) {
	r.opts.Metrics.PageServed(outcome)

	if outcome == metrics.OutcomePending {
		log.Note(ctx, slog.Bool("cache_pending", true))
		return
	}
	log.Note(ctx, slog.String("cache", outcome))
}

// Wait дожидается завершения фоновых пересборок.
func (r *Regenerator) Wait() { r.bg.Wait() }

func (r *Regenerator) regenerate(ctx context.Context, key string, build Builder) {
	r.mu.Lock()
	if _, running := r.inflight[key]; running {
		r.mu.Unlock()
		return
	}
	r.inflight[key] = struct{}{}
	r.mu.Unlock()

	bctx := context.WithoutCancel(ctx)
	lg := log.From(ctx).With(slog.String("op", "isr.regenerate"), slog.String("key", key))

	r.bg.Add(1)
	r.opts.Metrics.RegenerationStarted()
	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.inflight, key)
			r.mu.Unlock()

			r.opts.Metrics.RegenerationDone()
			r.bg.Done()
		}()

		_, err, _ := r.group.Do(key, func() (any, error) {
			return r.rebuild(bctx, key, build)
		})

		switch {
		case err == nil:
			lg.Debug("page_regenerated")
		case errors.Is(err, ErrNotFound):
			lg.Info("page_removed")
		default:
			lg.Warn("page_regenerate_failed", slog.String("err", err.Error()))
		}
	}()
}

func (r *Regenerator) rebuild(ctx context.Context, key string, build Builder) (*cache.Page, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	p, err := build(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.opts.Metrics.Regenerated(metrics.OutcomeNotFound, time.Since(start))
			if derr := r.cache.Delete(ctx, key); derr != nil {
				log.From(ctx).Warn("page_cache_delete_failed", slog.String("key", key), slog.String("err", derr.Error()))
			}
			return nil, err
		}

		r.opts.Metrics.Regenerated(metrics.OutcomeError, time.Since(start))
		return nil, err
	}

	if p.GeneratedAt.IsZero() {
		p.GeneratedAt = r.now()
	}

	// Страница отдаётся, даже если кэш недоступен.
	if err := r.cache.Set(ctx, key, p, r.opts.MaxAge); err != nil {
		log.From(ctx).Warn("page_cache_write_failed", slog.String("key", key), slog.String("err", err.Error()))
	}

	r.opts.Metrics.Regenerated("ok", time.Since(start))
	return p, nil
}
