package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/go-spacetraveling/internal/errors"
	"github.com/pribylovaa/go-spacetraveling/internal/http/middleware"
	"github.com/pribylovaa/go-spacetraveling/internal/models"
	"github.com/pribylovaa/go-spacetraveling/internal/richtext"
)

// ListPosts — первая страница списка; с ?cursor=<next_page> — следующая.
func (h *Handlers) ListPosts(w http.ResponseWriter, r *http.Request) {
	var (
		page models.PostPagination
		err  error
	)

	if cursor, ok := r.URL.Query()["cursor"]; ok {
		page, err = h.Service.NextPage(r.Context(), strings.TrimSpace(cursor[0]))
	} else {
		page, err = h.Service.FirstPage(r.Context())
	}
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPagination(page))
}

// GetPost — пост с временем чтения и навигацией.
func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.PostPage(r.Context(), chi.URLParam(r, "slug"), middleware.PreviewRefFrom(r.Context()))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostView(view))
}

// GetPostMarkdown — пост в Markdown: заголовок, затем секции.
func (h *Handlers) GetPostMarkdown(w http.ResponseWriter, r *http.Request) {
	post, err := h.Service.LookupPost(r.Context(), chi.URLParam(r, "slug"), middleware.PreviewRefFrom(r.Context()))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	md, err := postMarkdown(post)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(md))
}

func postMarkdown(p models.Post) (string, error) {
	var sb strings.Builder

	sb.WriteString("# ")
	sb.WriteString(p.Data.Title)
	sb.WriteString("\n")

	for _, s := range p.Data.Content {
		sb.WriteString("\n## ")
		sb.WriteString(s.Heading)
		sb.WriteString("\n")

		body, err := richtext.Markdown(s.Body, richtext.DefaultLinkResolver)
		if err != nil {
			return "", err
		}

		if body = strings.TrimSpace(body); body != "" {
			sb.WriteString("\n")
			sb.WriteString(body)
			sb.WriteString("\n")
		}
	}

	return sb.String(), nil
}
