package interceptors

import (
	"context"
	"io"
	"net/http"
	"time"
)

// WithTimeout ограничивает исходящий запрос таймаутом d.
// Действует более ранний из двух сроков: d или дедлайн входящего запроса.
//
// Контракт:
//  1. d <= 0 — запрос уходит без изменения контекста;
//  2. существующий дедлайн наступает раньше now+d — не модифицирует его;
//  3. иначе — context.WithTimeout(ctx, d); cancel вызывается при закрытии тела
//     ответа (или сразу, если ответа нет), чтобы чтение тела не обрывалось раньше времени.
func WithTimeout(d time.Duration) Interceptor {
	return func(next http.RoundTripper) http.RoundTripper {
		if d <= 0 {
			return next
		}

		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if dl, ok := r.Context().Deadline(); ok && time.Until(dl) <= d {
				return next.RoundTrip(r)
			}

			ctx, cancel := context.WithTimeout(r.Context(), d)

			resp, err := next.RoundTrip(r.WithContext(ctx))
			if err != nil || resp == nil || resp.Body == nil {
				cancel()
				return resp, err
			}

			resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		})
	}
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
