package service

import (
	"strings"

	"github.com/pribylovaa/go-spacetraveling/internal/models"
	"github.com/pribylovaa/go-spacetraveling/internal/richtext"
)

// WordsPerMinute — скорость чтения для оценки времени.
const WordsPerMinute = 200

// ReadingTime оценивает время чтения в минутах (с округлением вверх).
// Для каждой секции считаются слова заголовка и plain text тела.
func ReadingTime(sections []models.Section) int {
	words := 0
	for _, sec := range sections {
		words += len(strings.Fields(sec.Heading + " " + richtext.PlainText(sec.Body)))
	}

	return (words + WordsPerMinute - 1) / WordsPerMinute
}
