package richtext

import "strings"

// PlainText склеивает текст блоков через один пробел (аналог asText).
// Блоки без текста (image, embed) пропускаются.
func PlainText(blocks Blocks) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text == "" {
			continue
		}

		parts = append(parts, b.Text)
	}

	return strings.Join(parts, " ")
}
