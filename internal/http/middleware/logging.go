package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pribylovaa/go-spacetraveling/pkg/interceptors"
	logctx "github.com/pribylovaa/go-spacetraveling/pkg/log"
)

// Logging кладёт request-scoped логгер в контекст и пишет одну запись "http" на запрос.
// В запись попадают флаг предпросмотра и аннотации, добавленные через logctx.Note
// (например, исход кэша страниц).
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := l
			if rid := r.Header.Get(interceptors.HeaderRequestID); rid != "" {
				reqLogger = reqLogger.With(slog.String("request_id", rid))
			}
			r = r.WithContext(logctx.WithNotes(logctx.Into(r.Context(), reqLogger)))

			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("dur", time.Since(start)),
				slog.Int("bytes", sw.count),
				slog.Bool("preview", hasPreviewCookie(r)),
			}
			attrs = append(attrs, logctx.Notes(r.Context())...)

			logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelInfo, "http", attrs...)
		})
	}
}

func hasPreviewCookie(r *http.Request) bool {
	c, err := r.Cookie(PreviewCookie)
	return err == nil && strings.TrimSpace(c.Value) != ""
}
