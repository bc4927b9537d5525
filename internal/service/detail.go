package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/go-spacetraveling/internal/models"
	"github.com/pribylovaa/go-spacetraveling/internal/prismic"
	"github.com/pribylovaa/go-spacetraveling/pkg/log"
	"github.com/pribylovaa/go-spacetraveling/pkg/redact"
)

// LookupPost загружает пост по слагу; previewRef (если не пуст) уходит в CMS как ref.
//
// Ошибки:
// - ErrNotFound — слаг пуст или документа нет;
// - ErrUpstream — сбой CMS или битые данные документа.
func (s *Service) LookupPost(ctx context.Context, slug, previewRef string) (models.Post, error) {
	const op = "service.detail.LookupPost"

	lg := log.From(ctx)

	if slug == "" {
		return models.Post{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	doc, err := s.repo.GetByUID(ctx, s.docType(), slug, prismic.Options{
		Fetch: s.fields("title", "banner", "author", "content"),
		Ref:   previewRef,
	})
	if err != nil {
		if errors.Is(err, prismic.ErrNotFound) {
			lg.Warn("post_by_slug_not_found",
				slog.String("op", op),
				slog.String("slug", slug),
			)

			return models.Post{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		lg.Error("post_by_slug_upstream_error",
			slog.String("op", op),
			slog.String("slug", slug),
			slog.Bool("preview", previewRef != ""),
			slog.String("err", err.Error()),
		)

		return models.Post{}, fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}

	post, err := s.mapDetail(ctx, *doc)
	if err != nil {
		lg.Error("post_by_slug_decode_error",
			slog.String("op", op),
			slog.String("slug", slug),
			slog.String("err", err.Error()),
		)

		return models.Post{}, fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}

	lg.Info("post_by_slug_ok",
		slog.String("op", op),
		slog.String("slug", slug),
		slog.Bool("preview", previewRef != ""),
		slog.Int("sections", len(post.Data.Content)),
	)

	return post, nil
}

// PostBySlug — LookupPost с нормализацией: любая ошибка превращается в NotFound
// (причина уже залогирована).
func (s *Service) PostBySlug(ctx context.Context, slug, previewRef string) models.PostLookup {
	post, err := s.LookupPost(ctx, slug, previewRef)
	if err != nil {
		return models.NotFound()
	}

	return models.Found(post)
}

// PostPage собирает всё для детальной страницы: пост, время чтения, навигацию.
// Ошибки — как у LookupPost.
func (s *Service) PostPage(ctx context.Context, slug, previewRef string) (models.PostView, error) {
	post, err := s.LookupPost(ctx, slug, previewRef)
	if err != nil {
		return models.PostView{}, err
	}

	return models.PostView{
		Post:        post,
		ReadingTime: ReadingTime(post.Data.Content),
		Navigation:  s.Navigation(ctx, post.ID),
		Preview:     previewRef != "",
	}, nil
}

// ResolvePreview находит документ черновика и возвращает путь для редиректа.
// Пустой documentID или ненайденный документ — "/".
func (s *Service) ResolvePreview(ctx context.Context, ref, documentID string) (string, error) {
	const op = "service.detail.ResolvePreview"

	if ref == "" {
		return "", fmt.Errorf("%s: empty preview ref: %w", op, ErrInvalidCursor)
	}

	if documentID == "" {
		return "/", nil
	}

	doc, err := s.repo.GetByID(ctx, documentID, prismic.Options{Ref: ref})
	if err != nil {
		if errors.Is(err, prismic.ErrNotFound) {
			return "/", nil
		}

		log.From(ctx).Error("resolve_preview_upstream_error",
			slog.String("op", op),
			slog.String("document_id", documentID),
			slog.String("ref", redact.Ref(ref)),
			slog.String("err", err.Error()),
		)

		return "", fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
	}

	if doc.Type != s.docType() || doc.UID == "" {
		return "/", nil
	}

	return "/post/" + doc.UID, nil
}
