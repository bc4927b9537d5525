// interceptors предоставляет набор интерсепторов для исходящих HTTP-вызовов
// (клиентская сторона, поверх http.RoundTripper).
//
// Порядок в Chain — от внешнего к внутреннему, как у серверных мидлваров:
//
//	rt := interceptors.Chain(http.DefaultTransport,
//		interceptors.WithMetadata("spacetraveling"),
//		interceptors.WithLogging(log),
//		interceptors.WithTimeout(5*time.Second),
//	)
package interceptors

import (
	"net/http"
)

type CtxKey string

const (
	// CtxRequestID — ключ контекста с id входящего запроса (кладёт HTTP-мидлвар RequestID).
	CtxRequestID CtxKey = "request_id"
	// CtxPreviewRef — ключ контекста с preview ref (кладёт мидлвар PreviewRef).
	CtxPreviewRef CtxKey = "preview_ref"
)

// HeaderRequestID — заголовок для сквозной трассировки.
const HeaderRequestID = "X-Request-Id"

// RoundTripperFunc — адаптер функции к http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Interceptor оборачивает транспорт.
type Interceptor func(next http.RoundTripper) http.RoundTripper

// Chain применяет интерсепторы к транспорту в порядке их перечисления.
// nil-транспорт заменяется на http.DefaultTransport.
func Chain(rt http.RoundTripper, ics ...Interceptor) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}

	for i := len(ics) - 1; i >= 0; i-- {
		rt = ics[i](rt)
	}

	return rt
}

// RequestIDFrom достаёт request id из контекста запроса (или "").
func RequestIDFrom(r *http.Request) string {
	if rid, ok := r.Context().Value(CtxRequestID).(string); ok {
		return rid
	}

	return ""
}
