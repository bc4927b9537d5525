package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pribylovaa/go-spacetraveling/internal/models"
	"github.com/pribylovaa/go-spacetraveling/internal/prismic"
	"github.com/pribylovaa/go-spacetraveling/pkg/log"
)

// Adjacent возвращает соседний пост относительно currentID.
// Next — ближайший более новый (сортировка по возрастанию даты),
// Previous — ближайший более старый (по убыванию). nil — соседа нет.
func (s *Service) Adjacent(ctx context.Context, currentID string, dir models.Direction) (*models.OtherPost, error) {
	const op = "service.navigation.Adjacent"

	ordering := "document.first_publication_date"
	if dir == models.Previous {
		ordering += " desc"
	}

	resp, err := s.repo.Query(ctx, prismic.Query{
		Predicates: []string{s.byType()},
		Orderings:  []string{ordering},
		PageSize:   1,
		After:      currentID,
		Fetch:      s.fields("title"),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}

	if len(resp.Results) == 0 {
		return nil, nil
	}

	doc := resp.Results[0]
	f, err := decodeFields(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}

	return &models.OtherPost{
		UID:  doc.UID,
		Data: models.OtherPostData{Title: string(f.Title)},
	}, nil
}

// Navigation запрашивает оба направления независимо и параллельно.
// Сбой одного запроса оставляет его слот пустым.
func (s *Service) Navigation(ctx context.Context, currentID string) models.Navigation {
	const op = "service.navigation.Navigation"

	var nav models.Navigation
	if currentID == "" {
		return nav
	}

	fetch := func(dir models.Direction, slot **models.OtherPost) func() error {
		return func() error {
			other, err := s.Adjacent(ctx, currentID, dir)
			if err != nil {
				log.From(ctx).Warn("navigation_fetch_failed",
					slog.String("op", op),
					slog.String("direction", dir.String()),
					slog.String("id", currentID),
					slog.String("err", err.Error()),
				)
				return nil
			}

			*slot = other
			return nil
		}
	}

	var g errgroup.Group
	g.Go(fetch(models.Next, &nav.Next))
	g.Go(fetch(models.Previous, &nav.Previous))
	_ = g.Wait()

	return nav
}
