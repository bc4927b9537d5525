// pages рендерит HTML-страницы блога из встроенных шаблонов (html/template + embed).
//
// Каждая страница — отдельный набор layout.html + <page>.html, чтобы блоки
// "content"/"head" не конфликтовали между страницами.
package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/pribylovaa/go-spacetraveling/internal/config"
	"github.com/pribylovaa/go-spacetraveling/internal/dates"
	"github.com/pribylovaa/go-spacetraveling/internal/models"
	"github.com/pribylovaa/go-spacetraveling/internal/richtext"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// ContentType — тип содержимого всех страниц.
const ContentType = "text/html; charset=utf-8"

const (
	pageHome     = "home"
	pagePost     = "post"
	pageLoading  = "loading"
	pageNotFound = "notfound"
)

type Renderer struct {
	site     config.SiteConfig
	comments config.CommentsConfig
	pages    map[string]*template.Template
}

type base struct {
	Site  config.SiteConfig
	Title string
}

type homeData struct {
	base
	Posts models.PostPagination
}

type postData struct {
	base
	View     models.PostView
	Comments config.CommentsConfig
}

// navSlot — ячейка навигации: пост (или nil) и подпись.
type navSlot struct {
	Post  *models.OtherPost
	Label string
}

func New(site config.SiteConfig, comments config.CommentsConfig) (*Renderer, error) {
	funcs := template.FuncMap{
		"date": dates.FormatPtr,
		"richtext": func(b richtext.Blocks) template.HTML {
			return richtext.HTMLWith(b, richtext.DefaultLinkResolver)
		},
		"slot": func(p *models.OtherPost, label string) navSlot {
			return navSlot{Post: p, Label: label}
		},
	}

	r := &Renderer{site: site, comments: comments, pages: make(map[string]*template.Template)}
	funcs["path"] = r.Path
	for _, name := range []string{pageHome, pagePost, pageLoading, pageNotFound} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("pages.New: %s: %w", name, err)
		}

		r.pages[name] = t
	}

	return r, nil
}

// Home — главная со списком и кнопкой «Carregar mais posts» (если есть next_page).
func (r *Renderer) Home(p models.PostPagination) ([]byte, error) {
	return r.render(pageHome, homeData{base: r.base(""), Posts: p})
}

// Post — страница поста.
func (r *Renderer) Post(v models.PostView) ([]byte, error) {
	return r.render(pagePost, postData{base: r.base(v.Post.Data.Title), View: v, Comments: r.comments})
}

// Loading — заглушка, пока страница собирается (fallback).
func (r *Renderer) Loading() ([]byte, error) {
	return r.render(pageLoading, r.base("Carregando..."))
}

func (r *Renderer) NotFound() ([]byte, error) {
	return r.render(pageNotFound, r.base("Post não encontrado"))
}

// Path добавляет к пути сайта префикс BasePath: Path("/post/p1") -> "/blog/post/p1".
func (r *Renderer) Path(p string) string {
	base := strings.TrimRight(r.site.BasePath, "/")
	if base == "" {
		return p
	}
	if p == "/" {
		return base + "/"
	}

	return base + p
}

// Static раздаёт встроенные статические файлы (монтируется на /static/).
func (r *Renderer) Static() http.Handler {
	return http.FileServerFS(r.Assets())
}

// Assets — встроенные статические файлы (корень = /static/).
func (r *Renderer) Assets() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// embed гарантирует наличие каталога.
		panic(err)
	}

	return sub
}

func (r *Renderer) base(title string) base {
	return base{Site: r.site, Title: title}
}

func (r *Renderer) render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, fmt.Errorf("pages.render: %s: %w", name, err)
	}

	return buf.Bytes(), nil
}
