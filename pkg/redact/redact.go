// redact маскирует секреты для логов и ошибок: access_token в URL запросов к CMS
// и preview ref, который фактически является ключом к черновикам.
package redact

import (
	"net/url"
	"unicode/utf8"
)

// sensitiveParams — query-параметры, значения которых не попадают в логи.
var sensitiveParams = []string{"access_token", "token"}

// Token возвращает литерал-заглушку для токена в логах.
func Token() string { return "[REDACTED_TOKEN]" }

// URL заменяет значения чувствительных query-параметров на Token().
// Непарсящаяся строка целиком заменяется на "***".
//
// Пример:
//
//	"https://repo.cdn.prismic.io/api/v2?access_token=abc&ref=X"
//	-> "https://repo.cdn.prismic.io/api/v2?access_token=%5BREDACTED_TOKEN%5D&ref=X"
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}

	q := u.Query()
	changed := false
	for _, p := range sensitiveParams {
		if q.Has(p) {
			q.Set(p, Token())
			changed = true
		}
	}

	if !changed {
		return raw
	}

	u.RawQuery = q.Encode()
	return u.String()
}

// Ref оставляет первые 4 символа ref и маскирует остальное.
// Короткие ref (≤ 4 символов) маскируются полностью.
func Ref(ref string) string {
	if utf8.RuneCountInString(ref) <= 4 {
		return "***"
	}

	return string([]rune(ref)[:4]) + "***"
}
