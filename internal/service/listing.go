package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/pribylovaa/go-spacetraveling/internal/models"
	"github.com/pribylovaa/go-spacetraveling/internal/prismic"
	"github.com/pribylovaa/go-spacetraveling/pkg/log"
)

// FirstPage возвращает первую страницу списка постов.
// Поля: title/subtitle/author; размер страницы — cfg.Listing.PageSize;
// порядок — естественный порядок репозитория (по дате публикации, новые сверху).
//
// Ошибки:
// - ErrUpstream — сбой CMS.
func (s *Service) FirstPage(ctx context.Context) (models.PostPagination, error) {
	const op = "service.listing.FirstPage"

	lg := log.From(ctx)

	resp, err := s.repo.Query(ctx, prismic.Query{
		Predicates: []string{s.byType()},
		PageSize:   s.cfg.Listing.PageSize,
		Fetch:      s.fields("title", "subtitle", "author"),
	})
	if err != nil {
		lg.Error("list_posts_upstream_error",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)

		return models.PostPagination{}, fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}

	page, err := s.toPagination(ctx, resp)
	if err != nil {
		return models.PostPagination{}, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("list_posts_ok",
		slog.String("op", op),
		slog.Int("items", len(page.Results)),
		slog.Bool("has_next_page", page.HasNext()),
	)

	return page, nil
}

// NextPage загружает страницу по курсору next_page.
// Одновременные запросы одного курсора (двойной клик) выполняются одним вызовом CMS.
//
// Ошибки:
// - ErrInvalidCursor — пустой или чужой курсор;
// - ErrUpstream — сбой CMS.
func (s *Service) NextPage(ctx context.Context, cursor string) (models.PostPagination, error) {
	const op = "service.listing.NextPage"

	lg := log.From(ctx)

	if cursor == "" {
		return models.PostPagination{}, fmt.Errorf("%s: %w", op, ErrInvalidCursor)
	}

	// Вызов разделяется между запросами: отмена первого не должна обрывать остальных.
	ch := s.sf.DoChan("page:"+cursor, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		if d := s.cfg.Timeouts.Upstream; d > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, d)
			defer cancel()
		}

		resp, err := s.repo.FetchPage(fctx, cursor)
		if err != nil {
			return nil, err
		}

		return s.toPagination(fctx, resp)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return models.PostPagination{}, fmt.Errorf("%s: %w", op, ctx.Err())
	}

	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		if errors.Is(err, prismic.ErrForeignCursor) {
			lg.Warn("next_page_invalid_cursor",
				slog.String("op", op),
			)

			return models.PostPagination{}, fmt.Errorf("%s: %w", op, ErrInvalidCursor)
		}

		lg.Error("next_page_upstream_error",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)

		if errors.Is(err, ErrUpstream) {
			return models.PostPagination{}, fmt.Errorf("%s: %w", op, err)
		}

		return models.PostPagination{}, fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}

	page := v.(models.PostPagination)

	lg.Info("next_page_ok",
		slog.String("op", op),
		slog.Int("items", len(page.Results)),
		slog.Bool("has_next_page", page.HasNext()),
		slog.Bool("shared", shared),
	)

	// Копия: результат singleflight разделяется между вызывающими.
	return Extend(models.PostPagination{}, page), nil
}

// Extend дописывает следующую страницу к уже показанной.
// Чистая функция: p не мутируется, Results — новый срез.
func Extend(p, next models.PostPagination) models.PostPagination {
	results := make([]models.Post, 0, len(p.Results)+len(next.Results))
	results = append(results, p.Results...)
	results = append(results, next.Results...)

	return models.PostPagination{
		NextPage: next.NextPage,
		Results:  results,
	}
}

func (s *Service) toPagination(ctx context.Context, resp *prismic.SearchResponse) (models.PostPagination, error) {
	page := models.PostPagination{
		NextPage: resp.NextPage,
		Results:  make([]models.Post, 0, len(resp.Results)),
	}

	for _, doc := range resp.Results {
		post, err := s.mapListing(ctx, doc)
		if err != nil {
			return models.PostPagination{}, fmt.Errorf("%w: %w", ErrUpstream, err)
		}

		page.Results = append(page.Results, post)
	}

	return page, nil
}
