package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-spacetraveling/internal/cache"
	"github.com/pribylovaa/go-spacetraveling/internal/http/middleware"
	"github.com/pribylovaa/go-spacetraveling/internal/isr"
	"github.com/pribylovaa/go-spacetraveling/internal/pages"
	"github.com/pribylovaa/go-spacetraveling/internal/site"
	"github.com/pribylovaa/go-spacetraveling/pkg/log"
)

// Home — главная. В режиме предпросмотра кэш не используется.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.Home"

	ctx := r.Context()
	preview := middleware.PreviewRefFrom(ctx) != ""

	var (
		p   *cache.Page
		err error
	)
	if preview {
		p, err = h.Regen.Bypass(ctx, h.Site.HomeBuilder())
	} else {
		p, err = h.Regen.Serve(ctx, site.HomeKey, h.Cfg.HomeRevalidate, h.Site.HomeBuilder())
	}
	if err != nil {
		log.From(ctx).Error("home_render_failed", slog.String("op", op), slog.String("err", err.Error()))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	writePage(w, p, preview)
}

// Post — страница поста. Любая ошибка сборки отдаётся страницей 404
// (причина уже залогирована сервисом).
func (h *Handlers) Post(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.Post"

	ctx := r.Context()
	slug := chi.URLParam(r, "slug")
	ref := middleware.PreviewRefFrom(ctx)

	var (
		p   *cache.Page
		err error
	)
	if ref != "" {
		p, err = h.Regen.Bypass(ctx, h.Site.PostBuilder(slug, ref))
	} else {
		p, err = h.Regen.Serve(ctx, site.PostKey(slug), h.Cfg.Revalidate, h.Site.PostBuilder(slug, ""))
	}

	switch {
	case err == nil:
		writePage(w, p, ref != "")
	case errors.Is(err, isr.ErrPending):
		h.renderLoading(w, r)
	default:
		if !errors.Is(err, isr.ErrNotFound) {
			log.From(ctx).Warn("post_render_failed", slog.String("op", op), slog.String("slug", slug), slog.String("err", err.Error()))
		}
		h.NotFound(w, r)
	}
}

// NotFound — страница 404.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	body, err := h.Pages.NotFound()
	if err != nil {
		log.From(r.Context()).Error("notfound_render_failed", slog.String("err", err.Error()))
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", pages.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write(body)
}

func (h *Handlers) renderLoading(w http.ResponseWriter, r *http.Request) {
	body, err := h.Pages.Loading()
	if err != nil {
		log.From(r.Context()).Error("loading_render_failed", slog.String("err", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", pages.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writePage(w http.ResponseWriter, p *cache.Page, preview bool) {
	ct := p.ContentType
	if ct == "" {
		ct = pages.ContentType
	}

	status := p.Status
	if status == 0 {
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", ct)
	if preview {
		w.Header().Set("Cache-Control", "no-store")
	} else if !p.GeneratedAt.IsZero() {
		w.Header().Set("Last-Modified", p.GeneratedAt.UTC().Format(http.TimeFormat))
	}

	w.WriteHeader(status)
	_, _ = w.Write(p.Body)
}
