package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pribylovaa/go-spacetraveling/pkg/interceptors"
)

// PreviewCookie — cookie режима предпросмотра Prismic.
const PreviewCookie = "io.prismic.preview"

// PreviewRef кладёт ref из cookie предпросмотра в контекст
// по ключу interceptors.CtxPreviewRef. Пустая cookie игнорируется.
func PreviewRef() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(PreviewCookie); err == nil {
				if ref := strings.TrimSpace(c.Value); ref != "" {
					r = r.WithContext(context.WithValue(r.Context(), interceptors.CtxPreviewRef, ref))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PreviewRefFrom достаёт preview ref из контекста ("" — опубликованная версия).
func PreviewRefFrom(ctx context.Context) string {
	ref, _ := ctx.Value(interceptors.CtxPreviewRef).(string)
	return ref
}
