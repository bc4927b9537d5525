package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pribylovaa/go-spacetraveling/internal/config"
	"github.com/pribylovaa/go-spacetraveling/internal/pages"
	"github.com/pribylovaa/go-spacetraveling/internal/prismic"
	"github.com/pribylovaa/go-spacetraveling/internal/service"
	"github.com/pribylovaa/go-spacetraveling/internal/site"
	"github.com/pribylovaa/go-spacetraveling/pkg/interceptors"
)

// content — слой контента, общий для serve и export.
type content struct {
	svc   *service.Service
	pages *pages.Renderer
	site  *site.Site
}

// newContent собирает клиент CMS, сервис и рендерер.
// extra добавляются в цепочку исходящих интерсепторов перед таймаутом.
func newContent(cfg *config.Config, log *slog.Logger, extra ...interceptors.Interceptor) (*content, error) {
	ics := []interceptors.Interceptor{
		interceptors.WithMetadata(cfg.Prismic.UserAgent),
		interceptors.WithLogging(log),
	}
	ics = append(ics, extra...)
	ics = append(ics, interceptors.WithTimeout(cfg.Timeouts.Upstream))

	hc := &http.Client{Transport: interceptors.Chain(http.DefaultTransport, ics...)}

	client, err := prismic.New(cfg.Prismic, hc)
	if err != nil {
		return nil, fmt.Errorf("prismic client: %w", err)
	}

	r, err := pages.New(cfg.Site, cfg.Comments)
	if err != nil {
		return nil, fmt.Errorf("pages: %w", err)
	}

	svc := service.New(client, *cfg)

	return &content{svc: svc, pages: r, site: site.New(svc, r)}, nil
}
