package handlers

import (
	"net/http"
	"time"

	apierrors "github.com/pribylovaa/go-spacetraveling/internal/errors"
	"github.com/pribylovaa/go-spacetraveling/internal/http/middleware"
)

// previewMaxAge — срок жизни cookie предпросмотра.
const previewMaxAge = 30 * time.Minute

// Preview включает режим предпросмотра: ?token=<ref>&documentId=<id>.
// Ref сохраняется в cookie, затем редирект на страницу документа (или "/").
func (h *Handlers) Preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := q.Get("token")

	path, err := h.Service.ResolvePreview(r.Context(), ref, q.Get("documentId"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.PreviewCookie,
		Value:    ref,
		Path:     "/",
		MaxAge:   int(previewMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.Pages.Path(path), http.StatusTemporaryRedirect)
}

// ExitPreview выключает режим предпросмотра.
func (h *Handlers) ExitPreview(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.PreviewCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.Pages.Path("/"), http.StatusTemporaryRedirect)
}
