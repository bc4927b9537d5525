package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/go-spacetraveling/internal/prismic"
	"github.com/pribylovaa/go-spacetraveling/pkg/log"
)

// PostSlugs перечисляет до cfg.Pages.PrerenderLimit слагов для прогрева и экспорта.
// Остальные слаги разрешаются по первому запросу.
func (s *Service) PostSlugs(ctx context.Context) ([]string, error) {
	const op = "service.paths.PostSlugs"

	limit := s.cfg.Pages.PrerenderLimit
	if limit <= 0 {
		return nil, nil
	}

	resp, err := s.repo.Query(ctx, prismic.Query{
		Predicates: []string{s.byType()},
		PageSize:   limit,
		Fetch:      s.fields("title"),
	})
	if err != nil {
		log.From(ctx).Error("post_slugs_upstream_error",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)

		return nil, fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}

	slugs := make([]string, 0, len(resp.Results))
	for _, d := range resp.Results {
		if d.UID == "" {
			continue
		}
		slugs = append(slugs, d.UID)
		if len(slugs) == limit {
			break
		}
	}

	log.From(ctx).Info("post_slugs_ok",
		slog.String("op", op),
		slog.Int("items", len(slugs)),
	)

	return slugs, nil
}
