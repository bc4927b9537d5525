package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/pribylovaa/go-spacetraveling/internal/http/handlers"
	"github.com/pribylovaa/go-spacetraveling/internal/http/middleware"
	"github.com/pribylovaa/go-spacetraveling/pkg/interceptors"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/blog"; если пустой — роуты регистрируются на корне.
	// AllowedOrigins — CORS для /api (пусто — "*").
	AllowedOrigins []string
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(h *handlers.Handlers, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
		middleware.PreviewRef(),         // ref предпросмотра из cookie в контекст
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, opts)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, opts)
	return root
}

// registerRoutes — единая точка регистрации всех маршрутов.
func registerRoutes(r chi.Router, h *handlers.Handlers, opts Options) {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// pages
	r.Get("/", h.Home)
	r.Get("/post/{slug}", h.Post)
	r.Handle("/static/*", http.StripPrefix(opts.BasePath+"/static/", h.Pages.Static()))
	r.NotFound(h.NotFound)

	// api
	r.Route("/api", func(api chi.Router) {
		api.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", interceptors.HeaderRequestID},
			ExposedHeaders:   []string{interceptors.HeaderRequestID},
			AllowCredentials: false,
			MaxAge:           300,
		}))

		api.Get("/posts", h.ListPosts)
		api.Get("/posts/{slug}", h.GetPost)
		api.Get("/posts/{slug}/markdown", h.GetPostMarkdown)
		api.Get("/preview", h.Preview)
		api.Get("/exit-preview", h.ExitPreview)
	})
}
