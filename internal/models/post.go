// models — доменные структуры блога (read-only проекции документов CMS).
package models

import (
	"time"

	"github.com/pribylovaa/go-spacetraveling/internal/richtext"
)

// Post — пост блога.
// ID — идентификатор документа в CMS (курсор навигации), UID — слаг для маршрута.
type Post struct {
	ID                   string     `json:"id"`
	UID                  string     `json:"uid"`
	FirstPublicationDate *time.Time `json:"first_publication_date"`
	Data                 PostData   `json:"data"`
}

// PostData — поля документа типа posts.
// У карточки списка заполнены Title/Subtitle/Author, у детальной — Title/Banner/Author/Content.
type PostData struct {
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle,omitempty"`
	Author   string    `json:"author"`
	Banner   *Banner   `json:"banner,omitempty"`
	Content  []Section `json:"content,omitempty"`
}

// Banner — изображение в шапке поста.
type Banner struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// Section — секция поста: заголовок и rich-text тело.
type Section struct {
	Heading string          `json:"heading"`
	Body    richtext.Blocks `json:"body"`
}

// PostPagination — страница списка постов.
// Пустой NextPage — список исчерпан.
type PostPagination struct {
	NextPage string `json:"next_page"`
	Results  []Post `json:"results"`
}

// HasNext сообщает, есть ли следующая страница.
func (p PostPagination) HasNext() bool { return p.NextPage != "" }

// PostLookup — результат поиска поста по слагу: Found или NotFound.
type PostLookup struct {
	Post  Post
	Found bool
}

// Found оборачивает найденный пост.
func Found(p Post) PostLookup { return PostLookup{Post: p, Found: true} }

// NotFound — пост не найден (или не загружен).
func NotFound() PostLookup { return PostLookup{} }
