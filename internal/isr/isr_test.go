package isr

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-spacetraveling/internal/cache"
	"github.com/pribylovaa/go-spacetraveling/internal/metrics"
	"github.com/pribylovaa/go-spacetraveling/mocks"
	"github.com/pribylovaa/go-spacetraveling/pkg/log"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newRegen(t *testing.T, pc cache.PageCache, opts Options) (*Regenerator, *clock) {
	t.Helper()

	if opts.Metrics == nil {
		opts.Metrics = metrics.New(prometheus.NewRegistry())
	}

	clk := &clock{now: time.Date(2021, 3, 10, 12, 0, 0, 0, time.UTC)}
	r := New(pc, opts)
	r.now = clk.Now
	return r, clk
}

// counting возвращает сборщик, который отдаёт body и считает вызовы.
func counting(calls *int32, body string) Builder {
	return func(context.Context) (*cache.Page, error) {
		atomic.AddInt32(calls, 1)
		return &cache.Page{Body: []byte(body), ContentType: "text/html", Status: 200}, nil
	}
}

func TestServe_MissThenFresh(t *testing.T) {
	t.Parallel()

	pc := cache.NewMemoryCache()
	r, _ := newRegen(t, pc, Options{})

	var calls int32
	p, err := r.Serve(context.Background(), "page:/", time.Hour, counting(&calls, "v1"))
	require.NoError(t, err)
	require.Equal(t, "v1", string(p.Body))
	require.False(t, p.GeneratedAt.IsZero())

	p, err = r.Serve(context.Background(), "page:/", time.Hour, counting(&calls, "v2"))
	require.NoError(t, err)
	require.Equal(t, "v1", string(p.Body))
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestServe_StaleServedOnceThenRegenerated(t *testing.T) {
	t.Parallel()

	pc := cache.NewMemoryCache()
	r, clk := newRegen(t, pc, Options{})
	ctx := context.Background()

	var calls int32
	_, err := r.Serve(ctx, "page:/post/p1", 12*time.Hour, counting(&calls, "v1"))
	require.NoError(t, err)

	clk.Advance(13 * time.Hour)

	p, err := r.Serve(ctx, "page:/post/p1", 12*time.Hour, counting(&calls, "v2"))
	require.NoError(t, err)
	require.Equal(t, "v1", string(p.Body), "устаревшая страница отдаётся сразу")

	r.Wait()

	p, err = r.Serve(ctx, "page:/post/p1", 12*time.Hour, counting(&calls, "v3"))
	require.NoError(t, err)
	require.Equal(t, "v2", string(p.Body))
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestServe_StaleTriggersSingleRegeneration(t *testing.T) {
	t.Parallel()

	pc := cache.NewMemoryCache()
	r, clk := newRegen(t, pc, Options{})
	ctx := context.Background()

	var calls int32
	_, err := r.Serve(ctx, "k", time.Minute, counting(&calls, "v1"))
	require.NoError(t, err)

	clk.Advance(time.Hour)

	release := make(chan struct{})
	slow := func(context.Context) (*cache.Page, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &cache.Page{Body: []byte("v2"), Status: 200}, nil
	}

	for i := 0; i < 5; i++ {
		p, err := r.Serve(ctx, "k", time.Minute, slow)
		require.NoError(t, err)
		require.Equal(t, "v1", string(p.Body))
	}

	close(release)
	r.Wait()

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestServe_StaleNotFoundRemovesPage(t *testing.T) {
	t.Parallel()

	pc := cache.NewMemoryCache()
	r, clk := newRegen(t, pc, Options{})
	ctx := context.Background()

	var calls int32
	_, err := r.Serve(ctx, "page:/post/gone", time.Hour, counting(&calls, "v1"))
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)

	gone := func(context.Context) (*cache.Page, error) { return nil, ErrNotFound }
	p, err := r.Serve(ctx, "page:/post/gone", time.Hour, gone)
	require.NoError(t, err)
	require.Equal(t, "v1", string(p.Body))

	r.Wait()

	_, ok, err := pc.Get(ctx, "page:/post/gone")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = r.Serve(ctx, "page:/post/gone", time.Hour, gone)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServe_StaleFailureKeepsPage(t *testing.T) {
	t.Parallel()

	pc := cache.NewMemoryCache()
	r, clk := newRegen(t, pc, Options{})
	ctx := context.Background()

	var calls int32
	_, err := r.Serve(ctx, "k", time.Hour, counting(&calls, "v1"))
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)

	failing := func(context.Context) (*cache.Page, error) { return nil, errors.New("cms unavailable") }
	_, err = r.Serve(ctx, "k", time.Hour, failing)
	require.NoError(t, err)
	r.Wait()

	p, ok, err := pc.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", string(p.Body))
}

func TestServe_ZeroRevalidateNeverStale(t *testing.T) {
	t.Parallel()

	r, clk := newRegen(t, cache.NewMemoryCache(), Options{})

	var calls int32
	_, err := r.Serve(context.Background(), "k", 0, counting(&calls, "v1"))
	require.NoError(t, err)

	clk.Advance(24 * 365 * time.Hour)

	p, err := r.Serve(context.Background(), "k", 0, counting(&calls, "v2"))
	require.NoError(t, err)
	require.Equal(t, "v1", string(p.Body))
	r.Wait()
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestServe_ConcurrentMissBuildsOnce(t *testing.T) {
	t.Parallel()

	r, _ := newRegen(t, cache.NewMemoryCache(), Options{})

	var calls int32
	release := make(chan struct{})
	build := func(context.Context) (*cache.Page, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &cache.Page{Body: []byte("v1"), Status: 200}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := r.Serve(context.Background(), "page:/", time.Hour, build)
			if assert.NoError(t, err) {
				assert.Equal(t, "v1", string(p.Body))
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestServe_FallbackWaitReturnsPending(t *testing.T) {
	t.Parallel()

	pc := cache.NewMemoryCache()
	r, _ := newRegen(t, pc, Options{FallbackWait: 20 * time.Millisecond})

	release := make(chan struct{})
	build := func(context.Context) (*cache.Page, error) {
		<-release
		return &cache.Page{Body: []byte("late"), Status: 200}, nil
	}

	_, err := r.Serve(context.Background(), "page:/post/new", time.Hour, build)
	require.ErrorIs(t, err, ErrPending)

	close(release)

	require.Eventually(t, func() bool {
		p, ok, _ := pc.Get(context.Background(), "page:/post/new")
		return ok && string(p.Body) == "late"
	}, time.Second, 10*time.Millisecond)
}

func TestServe_MissBuildErrorIsReturned(t *testing.T) {
	t.Parallel()

	pc := cache.NewMemoryCache()
	r, _ := newRegen(t, pc, Options{})

	boom := errors.New("boom")
	_, err := r.Serve(context.Background(), "k", time.Hour, func(context.Context) (*cache.Page, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	_, ok, _ := pc.Get(context.Background(), "k")
	require.False(t, ok)
}

func TestServe_BuildHasTimeout(t *testing.T) {
	t.Parallel()

	r, _ := newRegen(t, cache.NewMemoryCache(), Options{Timeout: 10 * time.Millisecond})

	_, err := r.Serve(context.Background(), "k", time.Hour, func(ctx context.Context) (*cache.Page, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestServe_CacheReadErrorIsMiss(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	pc := mocks.NewMockPageCache(ctrl)

	pc.EXPECT().Get(gomock.Any(), "k").Return(nil, false, errors.New("redis: connection refused"))
	pc.EXPECT().Set(gomock.Any(), "k", gomock.Any(), 7*24*time.Hour).Return(errors.New("redis: connection refused"))

	r, _ := newRegen(t, pc, Options{MaxAge: 7 * 24 * time.Hour})

	var calls int32
	p, err := r.Serve(context.Background(), "k", time.Hour, counting(&calls, "v1"))
	require.NoError(t, err, "страница отдаётся даже при недоступном кэше")
	require.Equal(t, "v1", string(p.Body))
}

func TestBypassAndStore(t *testing.T) {
	t.Parallel()

	pc := cache.NewMemoryCache()
	r, _ := newRegen(t, pc, Options{})
	ctx := context.Background()

	var calls int32
	p, err := r.Bypass(ctx, counting(&calls, "draft"))
	require.NoError(t, err)
	require.Equal(t, "draft", string(p.Body))

	_, ok, _ := pc.Get(ctx, "page:/post/p1")
	require.False(t, ok, "предпросмотр не попадает в кэш")

	_, err = r.Store(ctx, "page:/post/p1", counting(&calls, "warm"))
	require.NoError(t, err)

	got, ok, _ := pc.Get(ctx, "page:/post/p1")
	require.True(t, ok)
	require.Equal(t, "warm", string(got.Body))
}

// cacheNote возвращает аннотацию "cache", записанную за запрос.
func cacheNote(ctx context.Context) string {
	for _, a := range log.Notes(ctx) {
		if a.Key == "cache" {
			return a.Value.String()
		}
	}
	return ""
}

func TestServe_AnnotatesRequestWithOutcome(t *testing.T) {
	t.Parallel()

	pc := cache.NewMemoryCache()
	r, clk := newRegen(t, pc, Options{})

	var calls int32
	build := counting(&calls, "v1")

	ctx := log.WithNotes(context.Background())
	_, err := r.Serve(ctx, "page:/", time.Minute, build)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeMiss, cacheNote(ctx))

	ctx = log.WithNotes(context.Background())
	_, err = r.Serve(ctx, "page:/", time.Minute, build)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeFresh, cacheNote(ctx))

	clk.Advance(2 * time.Minute)
	ctx = log.WithNotes(context.Background())
	_, err = r.Serve(ctx, "page:/", time.Minute, build)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeStale, cacheNote(ctx))
	r.Wait()

	ctx = log.WithNotes(context.Background())
	_, err = r.Bypass(ctx, build)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeBypass, cacheNote(ctx))
}

func TestServe_PendingKeepsMissAndMarksWait(t *testing.T) {
	t.Parallel()

	r, _ := newRegen(t, cache.NewMemoryCache(), Options{FallbackWait: 10 * time.Millisecond})

	release := make(chan struct{})
	defer close(release)
	slow := func(context.Context) (*cache.Page, error) {
		<-release
		return &cache.Page{Body: []byte("late"), Status: 200}, nil
	}

	ctx := log.WithNotes(context.Background())
	_, err := r.Serve(ctx, "page:/post/slow", time.Minute, slow)
	require.ErrorIs(t, err, ErrPending)

	assert.Equal(t, metrics.OutcomeMiss, cacheNote(ctx))
	assert.Contains(t, log.Notes(ctx), slog.Bool("cache_pending", true))
}
