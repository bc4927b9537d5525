package interceptors

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-spacetraveling/pkg/log"
)

// WithLogging — логирование исходящих HTTP-вызовов.
// Поведение:
//   - берёт X-Request-Id из заголовков/контекста (или генерирует UUID и добавляет);
//   - добавляет поля method/host/path, прокладывает обогащённый логгер в контекст (pkg/log);
//   - пишет одну финальную запись уровня Info: msg="http_out", status, dur.
//
// Не логирует query (там access_token) и тело.
func WithLogging(base *slog.Logger) Interceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()

			rid := r.Header.Get(HeaderRequestID)
			if rid == "" {
				rid = RequestIDFrom(r)
			}
			if rid == "" {
				rid = uuid.NewString()
			}

			l := base.With(
				slog.String("request_id", rid),
				slog.String("method", r.Method),
				slog.String("host", r.URL.Host),
				slog.String("path", r.URL.Path),
			)

			r = r.Clone(log.Into(r.Context(), l))
			r.Header.Set(HeaderRequestID, rid)

			resp, err := next.RoundTrip(r)

			attrs := []any{slog.Duration("dur", time.Since(start))}
			if resp != nil {
				attrs = append(attrs, slog.Int("status", resp.StatusCode))
			}
			if err != nil {
				attrs = append(attrs, slog.String("err", err.Error()))
				l.Warn("http_out", attrs...)
				return resp, err
			}

			l.Info("http_out", attrs...)
			return resp, nil
		})
	}
}
