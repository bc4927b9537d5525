package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-spacetraveling/internal/cache"
	"github.com/pribylovaa/go-spacetraveling/internal/config"
	"github.com/pribylovaa/go-spacetraveling/internal/http/handlers"
	"github.com/pribylovaa/go-spacetraveling/internal/http/middleware"
	"github.com/pribylovaa/go-spacetraveling/internal/isr"
	"github.com/pribylovaa/go-spacetraveling/internal/metrics"
	"github.com/pribylovaa/go-spacetraveling/internal/pages"
	"github.com/pribylovaa/go-spacetraveling/internal/prismic"
	"github.com/pribylovaa/go-spacetraveling/internal/prismic/prismictest"
	"github.com/pribylovaa/go-spacetraveling/internal/service"
	"github.com/pribylovaa/go-spacetraveling/internal/site"
)

// Сквозные тесты роутера: chi + мидлвары + обработчики + ISR + поддельный Prismic.

func day(d int) time.Time { return time.Date(2021, 3, d, 12, 0, 0, 0, time.UTC) }

type env struct {
	cms *prismictest.Server
	srv *httptest.Server
}

// envOptions — вариации окружения: токен репозитория и префикс монтирования.
type envOptions struct {
	token    string
	basePath string
}

func newEnv(t *testing.T, opts ...func(*envOptions)) *env {
	t.Helper()

	var o envOptions
	for _, fn := range opts {
		fn(&o)
	}

	cms := prismictest.New(t,
		prismictest.Post("id-1", "p1", day(3), map[string]any{"title": "P1", "subtitle": "S1", "author": "Caio"}),
		prismictest.Post("id-2", "p2", day(2), map[string]any{
			"title": "P2", "subtitle": "S2", "author": "Ana",
			"content": []map[string]any{{
				"heading": "Intro",
				"body": []map[string]any{{
					"type": "paragraph", "text": "Lorem ipsum",
					"spans": []map[string]any{{"start": 0, "end": 5, "type": "strong"}},
				}},
			}},
		}),
		prismictest.Post("id-3", "p3", day(1), map[string]any{"title": "P3", "subtitle": "S3", "author": "Bia"}),
	)

	if o.token != "" {
		cms.RequireToken(o.token)
	}

	cfg := config.Config{
		Prismic: config.PrismicConfig{Endpoint: cms.Endpoint(), AccessToken: o.token, DocumentType: "posts", RefTTL: time.Minute},
		Listing: config.ListingConfig{PageSize: 1},
		Pages: config.PagesConfig{
			PrerenderLimit: 10,
			Revalidate:     12 * time.Hour,
			HomeRevalidate: time.Hour,
			Location:       "UTC",
		},
		Comments: config.CommentsConfig{Repo: "acme/comments", IssueTerm: "pathname", Theme: "github-dark"},
		Site:     config.SiteConfig{Title: "spacetraveling", BasePath: o.basePath},
	}

	client, err := prismic.New(cfg.Prismic, cms.Client())
	require.NoError(t, err)

	svc := service.New(client, cfg)
	r, err := pages.New(cfg.Site, cfg.Comments)
	require.NoError(t, err)

	regen := isr.New(cache.NewMemoryCache(), isr.Options{
		Timeout: 5 * time.Second,
		Metrics: metrics.New(prometheus.NewRegistry()),
	})
	t.Cleanup(regen.Wait)

	h := handlers.New(svc, site.New(svc, r), r, regen, cfg.Pages)
	srv := httptest.NewServer(NewRouter(h, Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timeout:  5 * time.Second,
		BasePath: o.basePath,
	}))
	t.Cleanup(srv.Close)

	return &env{cms: cms, srv: srv}
}

// noRedirect — клиент, не следующий редиректам.
func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
}

func (e *env) get(t *testing.T, path string, cookies ...*http.Cookie) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
	require.NoError(t, err)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := noRedirect().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

type pageJSON struct {
	NextPage *string `json:"next_page"`
	Results  []struct {
		UID                  string  `json:"uid"`
		FirstPublicationDate *string `json:"first_publication_date"`
		Data                 struct {
			Title    string `json:"title"`
			Subtitle string `json:"subtitle"`
			Author   string `json:"author"`
		} `json:"data"`
	} `json:"results"`
}

func TestHome_RendersFirstPageWithLoadMore(t *testing.T) {
	e := newEnv(t)

	resp, body := e.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, pages.ContentType, resp.Header.Get("Content-Type"))
	require.Len(t, resp.Header.Get("X-Request-Id"), 32)
	require.Contains(t, body, `href="/post/p1"`)
	require.Contains(t, body, "03 mar 2021")
	require.Contains(t, body, "Carregar mais posts")
	require.NotContains(t, body, `href="/post/p2"`)
}

func TestAPI_LoadMoreUntilExhausted(t *testing.T) {
	e := newEnv(t)

	resp, body := e.get(t, "/api/posts")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var page pageJSON
	require.NoError(t, json.Unmarshal([]byte(body), &page))
	require.Len(t, page.Results, 1)
	require.Equal(t, "p1", page.Results[0].UID)
	require.Equal(t, "03 mar 2021", *page.Results[0].FirstPublicationDate)
	require.NotNil(t, page.NextPage)

	var seen []string
	seen = append(seen, page.Results[0].UID)
	for page.NextPage != nil {
		_, body = e.get(t, "/api/posts?cursor="+url.QueryEscape(*page.NextPage))
		page = pageJSON{}
		require.NoError(t, json.Unmarshal([]byte(body), &page))
		for _, r := range page.Results {
			seen = append(seen, r.UID)
		}
	}

	require.Equal(t, []string{"p1", "p2", "p3"}, seen)
	require.Contains(t, body, `"next_page":null`)
}

func TestAPI_ForeignCursorRejected(t *testing.T) {
	e := newEnv(t)

	resp, body := e.get(t, "/api/posts?cursor="+url.QueryEscape("https://evil.example/api/v2/documents/search?page=2"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body, `"code":"invalid_argument"`)

	resp, _ = e.get(t, "/api/posts?cursor=")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_UpstreamFailureIs502(t *testing.T) {
	e := newEnv(t)

	e.cms.FailNext(1)
	resp, body := e.get(t, "/api/posts")
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Contains(t, body, `"code":"upstream_unavailable"`)
	require.Contains(t, body, `"request_id"`)

	resp, _ = e.get(t, "/api/posts")
	require.Equal(t, http.StatusOK, resp.StatusCode, "повтор после сбоя проходит")
}

func TestPost_RenderedAndCached(t *testing.T) {
	e := newEnv(t)

	resp, body := e.get(t, "/post/p2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Last-Modified"))
	require.Contains(t, body, "<h1 class=\"post-title\">P2</h1>")
	require.Contains(t, body, "02 mar 2021")
	require.Contains(t, body, "1 min")
	require.Contains(t, body, "<p><strong>Lorem</strong> ipsum</p>")
	require.Contains(t, body, `<a href="/post/p1"><span>P1</span><strong>Próximo post</strong></a>`)
	require.Contains(t, body, `<a href="/post/p3"><span>P3</span><strong>Post anterior</strong></a>`)
	require.Contains(t, body, "utteranc.es")

	before := len(e.cms.Requests())
	resp, again := e.get(t, "/post/p2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, body, again)
	require.Len(t, e.cms.Requests(), before, "повторный запрос отдаётся из кэша")
}

func TestPost_UnknownSlugIs404Page(t *testing.T) {
	e := newEnv(t)

	resp, body := e.get(t, "/post/does-not-exist")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, pages.ContentType, resp.Header.Get("Content-Type"))
	require.Contains(t, body, "Post não encontrado")
}

func TestUnknownRouteIs404Page(t *testing.T) {
	e := newEnv(t)

	resp, body := e.get(t, "/nope/nope")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, body, "Post não encontrado")
}

func TestAPI_GetPostJSON(t *testing.T) {
	e := newEnv(t)

	resp, body := e.get(t, "/api/posts/p2")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view struct {
		Post struct {
			UID                  string `json:"uid"`
			FirstPublicationDate string `json:"first_publication_date"`
		} `json:"post"`
		ReadingTime int `json:"reading_time"`
		Navigation  struct {
			Next     *struct{ UID string } `json:"next"`
			Previous *struct{ UID string } `json:"previous"`
		} `json:"navigation"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &view))
	require.Equal(t, "p2", view.Post.UID)
	require.Equal(t, "02 mar 2021", view.Post.FirstPublicationDate)
	require.Equal(t, 1, view.ReadingTime)
	require.Equal(t, "p1", view.Navigation.Next.UID)
	require.Equal(t, "p3", view.Navigation.Previous.UID)

	resp, body = e.get(t, "/api/posts/missing")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, body, `"code":"not_found"`)
}

func TestAPI_GetPostMarkdown(t *testing.T) {
	e := newEnv(t)

	resp, body := e.get(t, "/api/posts/p2/markdown")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/markdown; charset=utf-8", resp.Header.Get("Content-Type"))
	require.True(t, strings.HasPrefix(body, "# P2\n"))
	require.Contains(t, body, "## Intro")
	require.Contains(t, body, "**Lorem** ipsum")
}

func TestPreview_EnterViewAndExit(t *testing.T) {
	e := newEnv(t)

	published := prismictest.Post("id-2", "p2", day(2), map[string]any{"title": "P2 (rascunho)", "author": "Ana"})
	e.cms.AddPreview("draft-7", published)

	// Сначала опубликованная версия попадает в кэш.
	_, body := e.get(t, "/post/p2")
	require.Contains(t, body, ">P2</h1>")

	resp, _ := e.get(t, "/api/preview?token=draft-7&documentId=id-2")
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	require.Equal(t, "/post/p2", resp.Header.Get("Location"))

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.PreviewCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.Equal(t, "draft-7", cookie.Value)
	require.True(t, cookie.HttpOnly)

	resp, body = e.get(t, "/post/p2", cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	require.Contains(t, body, "P2 (rascunho)")
	require.Contains(t, body, "Sair do modo Preview")
	require.NotContains(t, body, "utteranc.es")

	// Черновик не попадает в кэш.
	_, body = e.get(t, "/post/p2")
	require.Contains(t, body, ">P2</h1>")
	require.NotContains(t, body, "rascunho")

	resp, _ = e.get(t, "/api/exit-preview", cookie)
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == middleware.PreviewCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	require.True(t, cleared)
}

func TestPreview_MissingTokenIs400(t *testing.T) {
	e := newEnv(t)

	resp, body := e.get(t, "/api/preview?documentId=id-2")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body, `"code":"invalid_argument"`)
}

func TestPreview_UnknownDocumentRedirectsHome(t *testing.T) {
	e := newEnv(t)
	e.cms.AddPreview("draft-7", prismictest.Post("id-2", "p2", day(2), map[string]any{"title": "P2 (rascunho)"}))

	resp, _ := e.get(t, "/api/preview?token=draft-7&documentId=nope")
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}

func TestAPI_CORSPreflight(t *testing.T) {
	e := newEnv(t)

	req, err := http.NewRequest(http.MethodOptions, e.srv.URL+"/api/posts", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://spacetraveling.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatic(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.get(t, "/static/styles.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/css")
}

func withToken(token string) func(*envOptions) {
	return func(o *envOptions) { o.token = token }
}

func withBasePath(p string) func(*envOptions) {
	return func(o *envOptions) { o.basePath = p }
}

// Курсоры next_page уходят в браузер и не должны содержать access_token.
func TestLoadMore_CursorsNeverCarryAccessToken(t *testing.T) {
	const token = "repo-secret-token"
	e := newEnv(t, withToken(token))

	resp, body := e.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "data-next=")
	require.NotContains(t, body, token)
	require.NotContains(t, body, "access_token")

	resp, body = e.get(t, "/api/posts")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotContains(t, body, token)

	var page pageJSON
	require.NoError(t, json.Unmarshal([]byte(body), &page))
	require.NotNil(t, page.NextPage)

	// Сервер сам добавляет токен при загрузке следующей страницы.
	resp, body = e.get(t, "/api/posts?cursor="+url.QueryEscape(*page.NextPage))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotContains(t, body, token)

	page = pageJSON{}
	require.NoError(t, json.Unmarshal([]byte(body), &page))
	require.Len(t, page.Results, 1)
	require.Equal(t, "p2", page.Results[0].UID)
}

func TestBasePath_LinksAndLoadMore(t *testing.T) {
	e := newEnv(t, withBasePath("/blog"))

	resp, body := e.get(t, "/blog/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `href="/blog/post/p1"`)
	require.Contains(t, body, `href="/blog/static/styles.css"`)
	require.Contains(t, body, `data-api="/blog/api/posts"`)
	require.Contains(t, body, `data-post="/blog/post/"`)
	require.NotContains(t, body, `fetch('/api/posts`)

	resp, _ = e.get(t, "/blog/api/posts")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = e.get(t, "/blog/static/styles.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = e.get(t, "/blog/api/exit-preview")
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	require.Equal(t, "/blog/", resp.Header.Get("Location"))
}
