package site

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-spacetraveling/internal/cache"
	"github.com/pribylovaa/go-spacetraveling/internal/config"
	"github.com/pribylovaa/go-spacetraveling/internal/isr"
	"github.com/pribylovaa/go-spacetraveling/internal/metrics"
	"github.com/pribylovaa/go-spacetraveling/internal/pages"
	"github.com/pribylovaa/go-spacetraveling/internal/prismic"
	"github.com/pribylovaa/go-spacetraveling/internal/prismic/prismictest"
	"github.com/pribylovaa/go-spacetraveling/internal/service"
)

func day(d int) time.Time { return time.Date(2021, 3, d, 12, 0, 0, 0, time.UTC) }

func newSite(t *testing.T) *Site {
	t.Helper()

	srv := prismictest.New(t,
		prismictest.Post("id-1", "p1", day(3), map[string]any{"title": "P1", "subtitle": "S1", "author": "Caio"}),
		prismictest.Post("id-2", "p2", day(2), map[string]any{
			"title": "P2", "author": "Ana",
			"content": []map[string]any{{
				"heading": "Intro",
				"body":    []map[string]any{{"type": "paragraph", "text": "published text", "spans": []any{}}},
			}},
		}),
	)

	cfg := config.Config{
		Prismic: config.PrismicConfig{Endpoint: srv.Endpoint(), DocumentType: "posts", RefTTL: time.Minute},
		Listing: config.ListingConfig{PageSize: 1},
		Pages:   config.PagesConfig{PrerenderLimit: 10, Location: "UTC"},
	}

	client, err := prismic.New(cfg.Prismic, srv.Client())
	require.NoError(t, err)

	r, err := pages.New(config.SiteConfig{Title: "spacetraveling"}, config.CommentsConfig{})
	require.NoError(t, err)

	return New(service.New(client, cfg), r)
}

func TestKeys(t *testing.T) {
	require.Equal(t, "page:/", HomeKey)
	require.Equal(t, "/post/como-utilizar-hooks", PostPath("como-utilizar-hooks"))
	require.Equal(t, "page:/post/como-utilizar-hooks", PostKey("como-utilizar-hooks"))
	require.Equal(t, "/post/a%2Fb", PostPath("a/b"))
}

func TestHome(t *testing.T) {
	t.Parallel()

	s := newSite(t)
	p, err := s.Home(context.Background())
	require.NoError(t, err)
	require.Equal(t, pages.ContentType, p.ContentType)
	require.Equal(t, 200, p.Status)
	require.Contains(t, string(p.Body), `href="/post/p1"`)
	require.Contains(t, string(p.Body), "Carregar mais posts")
}

func TestPost_FoundAndNotFound(t *testing.T) {
	t.Parallel()

	s := newSite(t)

	p, err := s.Post(context.Background(), "p2", "")
	require.NoError(t, err)
	require.Contains(t, string(p.Body), "<h2>Intro</h2>")
	require.Contains(t, string(p.Body), "1 min")
	require.Contains(t, string(p.Body), `<a href="/post/p1"><span>P1</span><strong>Próximo post</strong></a>`)

	_, err = s.Post(context.Background(), "missing", "")
	require.ErrorIs(t, err, isr.ErrNotFound)
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestWarm_StoresHomeAndSlugs(t *testing.T) {
	t.Parallel()

	s := newSite(t)
	pc := cache.NewMemoryCache()
	regen := isr.New(pc, isr.Options{Metrics: metrics.New(prometheus.NewRegistry())})

	n, err := s.Warm(context.Background(), regen)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	for _, key := range []string{HomeKey, PostKey("p1"), PostKey("p2")} {
		_, ok, err := pc.Get(context.Background(), key)
		require.NoError(t, err)
		require.True(t, ok, key)
	}
}
