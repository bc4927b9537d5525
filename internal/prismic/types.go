package prismic

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Document — сырой документ репозитория.
// Data разбирается вызывающей стороной под свою схему.
type Document struct {
	ID                   string          `json:"id"`
	UID                  string          `json:"uid"`
	Type                 string          `json:"type"`
	Lang                 string          `json:"lang,omitempty"`
	FirstPublicationDate string          `json:"first_publication_date"`
	LastPublicationDate  string          `json:"last_publication_date"`
	Data                 json.RawMessage `json:"data"`
}

// SearchResponse — ответ /documents/search.
// NextPage — абсолютный URL следующей страницы или "" в конце выдачи.
type SearchResponse struct {
	Page             int        `json:"page"`
	ResultsPerPage   int        `json:"results_per_page"`
	ResultsSize      int        `json:"results_size"`
	TotalResultsSize int        `json:"total_results_size"`
	TotalPages       int        `json:"total_pages"`
	NextPage         string     `json:"-"`
	PrevPage         string     `json:"-"`
	Results          []Document `json:"results"`
}

// UnmarshalJSON учитывает, что next_page/prev_page приходят как null.
func (r *SearchResponse) UnmarshalJSON(b []byte) error {
	type plain SearchResponse
	aux := struct {
		*plain
		NextPage *string `json:"next_page"`
		PrevPage *string `json:"prev_page"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	if aux.NextPage != nil {
		r.NextPage = *aux.NextPage
	}
	if aux.PrevPage != nil {
		r.PrevPage = *aux.PrevPage
	}

	return nil
}

// Ref — версия контента (master или preview/release).
type Ref struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

type apiRoot struct {
	Refs []Ref `json:"refs"`
}

// Query — параметры поиска документов.
type Query struct {
	// Predicates — предикаты, собранные через At/Any.
	Predicates []string
	PageSize   int
	// Orderings — поля сортировки без скобок, например "document.first_publication_date desc".
	Orderings []string
	// After — id документа-курсора (исключительно).
	After string
	// Fetch — ограничение полей ("posts.title").
	Fetch []string
	// Ref — preview/release ref; пустой — master.
	Ref string
}

// Options — параметры запроса одного документа.
type Options struct {
	Fetch []string
	Ref   string
}

// At — предикат точного совпадения: [at(path, "value")].
func At(path, value string) string {
	return fmt.Sprintf("[at(%s, %s)]", path, strconv.Quote(value))
}

// Any — предикат вхождения в множество: [any(path, ["a", "b"])].
func Any(path string, values ...string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}

	return fmt.Sprintf("[any(%s, [%s])]", path, strings.Join(quoted, ", "))
}

// encodeOrderings кодирует сортировки в формат параметра orderings.
func encodeOrderings(o []string) string {
	if len(o) == 0 {
		return ""
	}

	return "[" + strings.Join(o, ",") + "]"
}
