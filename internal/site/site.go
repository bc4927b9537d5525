// site собирает страницы блога (сервис + шаблоны) в вид, пригодный для кэша и экспорта.
package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/pribylovaa/go-spacetraveling/internal/cache"
	"github.com/pribylovaa/go-spacetraveling/internal/isr"
	"github.com/pribylovaa/go-spacetraveling/internal/pages"
	"github.com/pribylovaa/go-spacetraveling/internal/service"
	"github.com/pribylovaa/go-spacetraveling/pkg/log"
)

// HomeKey — ключ кэша главной.
const HomeKey = "page:/"

// PostKey — ключ кэша страницы поста.
func PostKey(slug string) string { return "page:" + PostPath(slug) }

// PostPath — публичный путь страницы поста.
func PostPath(slug string) string { return "/post/" + url.PathEscape(slug) }

type Site struct {
	svc   *service.Service
	pages *pages.Renderer
}

func New(svc *service.Service, r *pages.Renderer) *Site {
	return &Site{svc: svc, pages: r}
}

// Home собирает главную (первая страница списка).
func (s *Site) Home(ctx context.Context) (*cache.Page, error) {
	const op = "site.Home"

	list, err := s.svc.FirstPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	body, err := s.pages.Home(list)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return htmlPage(body), nil
}

// Post собирает страницу поста. Отсутствующий пост — isr.ErrNotFound
// (вместе с service.ErrNotFound в цепочке).
func (s *Site) Post(ctx context.Context, slug, previewRef string) (*cache.Page, error) {
	const op = "site.Post"

	view, err := s.svc.PostPage(ctx, slug, previewRef)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w: %w", op, isr.ErrNotFound, err)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	body, err := s.pages.Post(view)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return htmlPage(body), nil
}

// HomeBuilder/PostBuilder адаптируют сборку к isr.Builder.
func (s *Site) HomeBuilder() isr.Builder { return s.Home }

func (s *Site) PostBuilder(slug, previewRef string) isr.Builder {
	return func(ctx context.Context) (*cache.Page, error) {
		return s.Post(ctx, slug, previewRef)
	}
}

// Slugs — слаги для пре-рендера.
func (s *Site) Slugs(ctx context.Context) ([]string, error) {
	return s.svc.PostSlugs(ctx)
}

// Warm прогревает кэш: главная и пре-рендеренные посты.
// Ошибки отдельных страниц логируются и не прерывают прогрев.
func (s *Site) Warm(ctx context.Context, regen *isr.Regenerator) (int, error) {
	const op = "site.Warm"

	lg := log.From(ctx)

	warmed := 0
	if _, err := regen.Store(ctx, HomeKey, s.HomeBuilder()); err != nil {
		lg.Warn("warm_page_failed", slog.String("op", op), slog.String("key", HomeKey), slog.String("err", err.Error()))
	} else {
		warmed++
	}

	slugs, err := s.svc.PostSlugs(ctx)
	if err != nil {
		return warmed, fmt.Errorf("%s: %w", op, err)
	}

	for _, slug := range slugs {
		if ctx.Err() != nil {
			return warmed, fmt.Errorf("%s: %w", op, ctx.Err())
		}

		if _, err := regen.Store(ctx, PostKey(slug), s.PostBuilder(slug, "")); err != nil {
			lg.Warn("warm_page_failed", slog.String("op", op), slog.String("key", PostKey(slug)), slog.String("err", err.Error()))
			continue
		}

		warmed++
	}

	lg.Info("warm_done", slog.String("op", op), slog.Int("pages", warmed), slog.Int("slugs", len(slugs)))
	return warmed, nil
}

func htmlPage(body []byte) *cache.Page {
	return &cache.Page{Body: body, ContentType: pages.ContentType, Status: http.StatusOK}
}
