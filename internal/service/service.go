// service содержит бизнес-логику блога: список постов с догрузкой,
// детальную страницу (время чтения, preview) и навигацию между постами.
package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pribylovaa/go-spacetraveling/internal/config"
	"github.com/pribylovaa/go-spacetraveling/internal/prismic"
)

var (
	// ErrNotFound — пост отсутствует.
	// HTTP: 404.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCursor — битый/чужой курсор next_page.
	// HTTP: 400.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrUpstream — сбой обращения к CMS (сеть, статус, декодирование).
	// HTTP: 502.
	ErrUpstream = errors.New("upstream unavailable")
)

// Repository — контракт репозитория контента (реализация: *prismic.Client).
type Repository interface {
	Query(ctx context.Context, q prismic.Query) (*prismic.SearchResponse, error)
	GetByUID(ctx context.Context, typ, uid string, opts prismic.Options) (*prismic.Document, error)
	GetByID(ctx context.Context, id string, opts prismic.Options) (*prismic.Document, error)
	FetchPage(ctx context.Context, pageURL string) (*prismic.SearchResponse, error)
}

// Проверка выполнения контракта клиентом CMS.
var _ Repository = (*prismic.Client)(nil)

// Service — описывает бизнес-логику блога.
type Service struct {
	repo Repository
	cfg  config.Config
	loc  *time.Location
	sf   singleflight.Group
}

// New создает новый экземпляр Service.
func New(repo Repository, cfg config.Config) *Service {
	return &Service{
		repo: repo,
		cfg:  cfg,
		loc:  cfg.Pages.Loc(),
	}
}

// docType — тип документов постов ("posts").
func (s *Service) docType() string {
	if s.cfg.Prismic.DocumentType == "" {
		return "posts"
	}

	return s.cfg.Prismic.DocumentType
}

// fields строит список fetch: posts.title, posts.author, ...
func (s *Service) fields(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = s.docType() + "." + n
	}

	return out
}

func (s *Service) byType() string {
	return prismic.At("document.type", s.docType())
}
