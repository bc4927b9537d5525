// handlers — HTTP-обработчики блога: HTML-страницы (через ISR) и JSON-API.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pribylovaa/go-spacetraveling/internal/config"
	"github.com/pribylovaa/go-spacetraveling/internal/dates"
	"github.com/pribylovaa/go-spacetraveling/internal/isr"
	"github.com/pribylovaa/go-spacetraveling/internal/models"
	"github.com/pribylovaa/go-spacetraveling/internal/pages"
	"github.com/pribylovaa/go-spacetraveling/internal/service"
	"github.com/pribylovaa/go-spacetraveling/internal/site"
)

// Handlers агрегирует зависимости.
type Handlers struct {
	Service *service.Service
	Site    *site.Site
	Pages   *pages.Renderer
	Regen   *isr.Regenerator
	Cfg     config.PagesConfig
}

func New(svc *service.Service, s *site.Site, r *pages.Renderer, regen *isr.Regenerator, cfg config.PagesConfig) *Handlers {
	return &Handlers{Service: svc, Site: s, Pages: r, Regen: regen, Cfg: cfg}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// postCard — карточка списка; дата уже отформатирована для отображения.
type postCard struct {
	UID                  string          `json:"uid"`
	FirstPublicationDate *string         `json:"first_publication_date"`
	Data                 models.PostData `json:"data"`
}

// pagination — ответ /api/posts. next_page == null — список исчерпан.
type pagination struct {
	NextPage *string    `json:"next_page"`
	Results  []postCard `json:"results"`
}

type postJSON struct {
	ID                   string          `json:"id"`
	UID                  string          `json:"uid"`
	FirstPublicationDate *string         `json:"first_publication_date"`
	Data                 models.PostData `json:"data"`
}

type postViewJSON struct {
	Post        postJSON          `json:"post"`
	ReadingTime int               `json:"reading_time"`
	Navigation  models.Navigation `json:"navigation"`
	Preview     bool              `json:"preview"`
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}

	s := dates.Format(*t)
	return &s
}

func toPagination(p models.PostPagination) pagination {
	out := pagination{Results: make([]postCard, 0, len(p.Results))}
	if p.HasNext() {
		next := p.NextPage
		out.NextPage = &next
	}

	for _, post := range p.Results {
		out.Results = append(out.Results, postCard{
			UID:                  post.UID,
			FirstPublicationDate: formatDate(post.FirstPublicationDate),
			Data:                 post.Data,
		})
	}

	return out
}

func toPostView(v models.PostView) postViewJSON {
	return postViewJSON{
		Post: postJSON{
			ID:                   v.Post.ID,
			UID:                  v.Post.UID,
			FirstPublicationDate: formatDate(v.Post.FirstPublicationDate),
			Data:                 v.Post.Data,
		},
		ReadingTime: v.ReadingTime,
		Navigation:  v.Navigation,
		Preview:     v.Preview,
	}
}
