// prismictest — поддельный репозиторий Prismic поверх httptest для тестов.
//
// Поддерживает: корень API с refs, /documents/search с предикатами
// at(document.type|document.id|my.<type>.uid), pageSize/page, orderings по
// first_publication_date, after, preview ref и access_token.
package prismictest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pribylovaa/go-spacetraveling/internal/prismic"
)

const MasterRef = "master-ref"

// Server — поддельный репозиторий.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	docs     []prismic.Document
	previews map[string]map[string]prismic.Document
	token    string
	requests []url.Values
	failNext int
	rootHits int
}

// New запускает сервер; он закрывается автоматически по t.Cleanup.
func New(t testing.TB, docs ...prismic.Document) *Server {
	t.Helper()

	s := &Server{
		docs:     docs,
		previews: make(map[string]map[string]prismic.Document),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2", s.handleRoot)
	mux.HandleFunc("/api/v2/documents/search", s.handleSearch)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)

	return s
}

// Endpoint — корень API для config.PrismicConfig.
func (s *Server) Endpoint() string { return s.URL + "/api/v2" }

// RequireToken включает проверку access_token.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// AddPreview регистрирует черновик документа под ref.
func (s *Server) AddPreview(ref string, doc prismic.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.previews[ref] == nil {
		s.previews[ref] = make(map[string]prismic.Document)
	}
	s.previews[ref][doc.ID] = doc
}

// FailNext заставляет n следующих поисковых запросов вернуть 503.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// Requests — параметры всех поисковых запросов (копия).
func (s *Server) Requests() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]url.Values, len(s.requests))
	copy(out, s.requests)
	return out
}

// RootHits — сколько раз запрашивался корень API (получение master ref).
func (s *Server) RootHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootHits
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.rootHits++
	token := s.token
	s.mu.Unlock()

	if token != "" && r.URL.Query().Get("access_token") != token {
		http.Error(w, `{"error":"invalid access token"}`, http.StatusUnauthorized)
		return
	}

	writeJSON(w, map[string]any{
		"refs": []prismic.Ref{{ID: "master", Ref: MasterRef, Label: "Master", IsMasterRef: true}},
	})
}

var atRe = regexp.MustCompile(`at\(([^,]+),\s*"([^"]*)"\)`)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.Lock()
	s.requests = append(s.requests, q)
	fail := s.failNext > 0
	if fail {
		s.failNext--
	}
	token := s.token
	preview, isPreview := s.previews[q.Get("ref")]
	docs := make([]prismic.Document, len(s.docs))
	copy(docs, s.docs)
	s.mu.Unlock()

	if fail {
		http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	if token != "" && q.Get("access_token") != token {
		http.Error(w, `{"error":"invalid access token"}`, http.StatusUnauthorized)
		return
	}

	if q.Get("ref") != MasterRef && !isPreview {
		http.Error(w, `{"error":"Ref not found"}`, http.StatusBadRequest)
		return
	}

	if isPreview {
		for i, d := range docs {
			if p, ok := preview[d.ID]; ok {
				docs[i] = p
			}
		}
	}

	docs = filter(docs, q.Get("q"))
	sortDocs(docs, q.Get("orderings"))

	if after := q.Get("after"); after != "" {
		for i, d := range docs {
			if d.ID == after {
				docs = docs[i+1:]
				break
			}
		}
	}

	pageSize := atoiDefault(q.Get("pageSize"), 20)
	page := atoiDefault(q.Get("page"), 1)
	total := len(docs)
	totalPages := (total + pageSize - 1) / pageSize

	from := min((page-1)*pageSize, total)
	to := min(from+pageSize, total)

	resp := map[string]any{
		"page":               page,
		"results_per_page":   pageSize,
		"results_size":       to - from,
		"total_results_size": total,
		"total_pages":        totalPages,
		"next_page":          nil,
		"prev_page":          nil,
		"results":            docs[from:to],
	}

	// Как и Prismic, курсоры повторяют исходный запрос вместе с access_token.
	cursor := func(p int) string {
		u := *r.URL
		u.Scheme = "http"
		u.Host = r.Host
		uq := u.Query()
		uq.Set("page", strconv.Itoa(p))
		u.RawQuery = uq.Encode()
		return u.String()
	}

	if page < totalPages {
		resp["next_page"] = cursor(page + 1)
	}
	if page > 1 {
		resp["prev_page"] = cursor(page - 1)
	}

	writeJSON(w, resp)
}

func filter(docs []prismic.Document, q string) []prismic.Document {
	out := docs[:0]
	for _, d := range docs {
		ok := true
		for _, m := range atRe.FindAllStringSubmatch(q, -1) {
			path, val := strings.TrimSpace(m[1]), m[2]
			switch {
			case path == "document.type":
				ok = ok && d.Type == val
			case path == "document.id":
				ok = ok && d.ID == val
			case strings.HasPrefix(path, "my.") && strings.HasSuffix(path, ".uid"):
				typ := strings.TrimSuffix(strings.TrimPrefix(path, "my."), ".uid")
				ok = ok && d.Type == typ && d.UID == val
			}
		}

		if ok {
			out = append(out, d)
		}
	}

	return out
}

// По умолчанию — по убыванию даты публикации.
func sortDocs(docs []prismic.Document, orderings string) {
	asc := strings.Contains(orderings, "document.first_publication_date") &&
		!strings.Contains(orderings, "desc")

	sort.SliceStable(docs, func(i, j int) bool {
		if asc {
			return docs[i].FirstPublicationDate < docs[j].FirstPublicationDate
		}
		return docs[i].FirstPublicationDate > docs[j].FirstPublicationDate
	})
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}

	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Post собирает документ типа posts.
func Post(id, uid string, published time.Time, data map[string]any) prismic.Document {
	raw, _ := json.Marshal(data)
	return prismic.Document{
		ID:                   id,
		UID:                  uid,
		Type:                 "posts",
		FirstPublicationDate: published.UTC().Format("2006-01-02T15:04:05-0700"),
		LastPublicationDate:  published.UTC().Format("2006-01-02T15:04:05-0700"),
		Data:                 raw,
	}
}
