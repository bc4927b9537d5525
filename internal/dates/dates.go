// dates разбирает даты публикации из CMS и форматирует их для отображения
// в формате "dd MMM yyyy" с сокращёнными месяцами pt-BR ("10 mar 2021").
package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedDate — строка не распознана ни одним из поддерживаемых форматов.
var ErrMalformedDate = errors.New("malformed date")

// LayoutCMS — формат first_publication_date в ответах Prismic ("2021-03-25T19:25:28+0000").
const LayoutCMS = "2006-01-02T15:04:05-0700"

var layouts = []string{
	LayoutCMS,
	time.RFC3339,
	"2006-01-02",
}

// Сокращения месяцев pt-BR в нижнем регистре, индекс = time.Month-1.
var monthsPtBR = [12]string{
	"jan", "fev", "mar", "abr", "mai", "jun",
	"jul", "ago", "set", "out", "nov", "dez",
}

// Parse разбирает строку даты. Пустая или нераспознанная строка — ErrMalformedDate.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("dates.Parse: empty input: %w", ErrMalformedDate)
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("dates.Parse: %q: %w", s, ErrMalformedDate)
}

// Format форматирует время в его собственной локации.
func Format(t time.Time) string {
	return fmt.Sprintf("%02d %s %d", t.Day(), monthsPtBR[t.Month()-1], t.Year())
}

// FormatPtr — Format с защитой от nil ("" для отсутствующей даты).
func FormatPtr(t *time.Time) string {
	if t == nil {
		return ""
	}

	return Format(*t)
}

// FormatIn форматирует время в заданной локации (nil — UTC).
func FormatIn(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	return Format(t.In(loc))
}
