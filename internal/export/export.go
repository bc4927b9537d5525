package export

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"path"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pribylovaa/go-spacetraveling/internal/pages"
	"github.com/pribylovaa/go-spacetraveling/internal/site"
	"github.com/pribylovaa/go-spacetraveling/pkg/log"
)

// concurrency — сколько страниц собирается одновременно.
const concurrency = 4

// Report — итог выгрузки.
type Report struct {
	Files []string
}

type Exporter struct {
	site  *site.Site
	pages *pages.Renderer
	sink  Sink
}

func New(s *site.Site, r *pages.Renderer, sink Sink) *Exporter {
	return &Exporter{site: s, pages: r, sink: sink}
}

// Run выгружает index.html, post/<slug>/index.html для пре-рендеренных слагов,
// 404.html и статические файлы. Ошибка любой страницы прерывает выгрузку.
func (e *Exporter) Run(ctx context.Context) (Report, error) {
	const op = "export.Run"

	lg := log.From(ctx)

	slugs, err := e.site.Slugs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("%s: %w", op, err)
	}

	var (
		mu    sync.Mutex
		files []string
	)
	put := func(ctx context.Context, name string, body []byte, contentType string) error {
		if err := e.sink.Put(ctx, name, body, contentType); err != nil {
			return err
		}

		mu.Lock()
		files = append(files, name)
		mu.Unlock()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	g.Go(func() error {
		p, err := e.site.Home(gctx)
		if err != nil {
			return err
		}
		return put(gctx, "index.html", p.Body, p.ContentType)
	})

	for _, slug := range slugs {
		g.Go(func() error {
			p, err := e.site.Post(gctx, slug, "")
			if err != nil {
				return fmt.Errorf("post %q: %w", slug, err)
			}
			return put(gctx, postFile(slug), p.Body, p.ContentType)
		})
	}

	g.Go(func() error {
		body, err := e.pages.NotFound()
		if err != nil {
			return err
		}
		return put(gctx, "404.html", body, pages.ContentType)
	})

	g.Go(func() error {
		return fs.WalkDir(e.pages.Assets(), ".", func(name string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}

			body, err := fs.ReadFile(e.pages.Assets(), name)
			if err != nil {
				return err
			}

			return put(gctx, path.Join("static", name), body, mime.TypeByExtension(path.Ext(name)))
		})
	})

	if err := g.Wait(); err != nil {
		lg.Error("export_failed", slog.String("op", op), slog.String("err", err.Error()))
		return Report{}, fmt.Errorf("%s: %w", op, err)
	}

	sort.Strings(files)
	lg.Info("export_done", slog.String("op", op), slog.Int("files", len(files)), slog.Int("posts", len(slugs)))

	return Report{Files: files}, nil
}

// postFile — путь файла страницы поста в выгрузке.
func postFile(slug string) string {
	return path.Join(site.PostPath(slug)[1:], "index.html")
}
