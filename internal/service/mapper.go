package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/go-spacetraveling/internal/dates"
	"github.com/pribylovaa/go-spacetraveling/internal/models"
	"github.com/pribylovaa/go-spacetraveling/internal/prismic"
	"github.com/pribylovaa/go-spacetraveling/internal/richtext"
	"github.com/pribylovaa/go-spacetraveling/pkg/log"
)

// textField принимает как Key Text ("строка"), так и Rich Text / Title
// ([{"type":"heading1","text":"..."}]).
type textField string

func (f *textField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
		return nil
	case b[0] == '[':
		var blocks richtext.Blocks
		if err := json.Unmarshal(b, &blocks); err != nil {
			return err
		}
		*f = textField(richtext.PlainText(blocks))
		return nil
	default:
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = textField(s)
		return nil
	}
}

type postFields struct {
	Title    textField `json:"title"`
	Subtitle textField `json:"subtitle"`
	Author   textField `json:"author"`
	Banner   *struct {
		URL string `json:"url"`
		Alt string `json:"alt"`
	} `json:"banner"`
	Content []struct {
		Heading textField       `json:"heading"`
		Body    richtext.Blocks `json:"body"`
	} `json:"content"`
}

// mapListing — карточка списка: uid, дата, title/subtitle/author.
func (s *Service) mapListing(ctx context.Context, doc prismic.Document) (models.Post, error) {
	const op = "service.mapper.mapListing"

	f, err := decodeFields(doc)
	if err != nil {
		return models.Post{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.Post{
		ID:                   doc.ID,
		UID:                  doc.UID,
		FirstPublicationDate: s.publicationDate(ctx, doc),
		Data: models.PostData{
			Title:    string(f.Title),
			Subtitle: string(f.Subtitle),
			Author:   string(f.Author),
		},
	}, nil
}

// mapDetail — детальная форма: дополнительно banner и content.
func (s *Service) mapDetail(ctx context.Context, doc prismic.Document) (models.Post, error) {
	const op = "service.mapper.mapDetail"

	f, err := decodeFields(doc)
	if err != nil {
		return models.Post{}, fmt.Errorf("%s: %w", op, err)
	}

	post := models.Post{
		ID:                   doc.ID,
		UID:                  doc.UID,
		FirstPublicationDate: s.publicationDate(ctx, doc),
		Data: models.PostData{
			Title:    string(f.Title),
			Subtitle: string(f.Subtitle),
			Author:   string(f.Author),
		},
	}

	if f.Banner != nil && f.Banner.URL != "" {
		post.Data.Banner = &models.Banner{URL: f.Banner.URL, Alt: f.Banner.Alt}
	}

	if len(f.Content) > 0 {
		post.Data.Content = make([]models.Section, 0, len(f.Content))
		for _, c := range f.Content {
			post.Data.Content = append(post.Data.Content, models.Section{
				Heading: string(c.Heading),
				Body:    c.Body,
			})
		}
	}

	return post, nil
}

func decodeFields(doc prismic.Document) (postFields, error) {
	var f postFields
	if len(doc.Data) == 0 {
		return f, nil
	}

	if err := json.Unmarshal(doc.Data, &f); err != nil {
		return f, fmt.Errorf("decode data of %q: %w", doc.ID, err)
	}

	return f, nil
}

// publicationDate разбирает дату публикации; нераспознанная дата -> nil.
func (s *Service) publicationDate(ctx context.Context, doc prismic.Document) *time.Time {
	if doc.FirstPublicationDate == "" {
		return nil
	}

	t, err := dates.Parse(doc.FirstPublicationDate)
	if err != nil {
		log.From(ctx).Warn("date_parse_failed",
			slog.String("op", "service.mapper.publicationDate"),
			slog.String("id", doc.ID),
			slog.String("value", doc.FirstPublicationDate),
			slog.String("err", err.Error()),
		)
		return nil
	}

	t = t.In(s.loc)
	return &t
}
