package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pribylovaa/go-spacetraveling/internal/cache"
	gwhttp "github.com/pribylovaa/go-spacetraveling/internal/http"
	"github.com/pribylovaa/go-spacetraveling/internal/http/handlers"
	"github.com/pribylovaa/go-spacetraveling/internal/isr"
	"github.com/pribylovaa/go-spacetraveling/internal/metrics"
	"github.com/pribylovaa/go-spacetraveling/pkg/log"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "HTTP-сервер блога с регенерацией страниц",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg, lg := a.cfg, a.log
	lg.Info("starting blog", "env", cfg.Env)

	rootCtx, rootCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	m := metrics.New(nil)

	c, err := newContent(cfg, lg, m.Interceptor())
	if err != nil {
		lg.Error("content_init_failed", slog.String("err", err.Error()))
		return err
	}

	pc, err := cache.New(cfg.Cache)
	if err != nil {
		lg.Error("cache_init_failed", slog.String("driver", cfg.Cache.Driver), slog.String("err", err.Error()))
		return err
	}

	defer func() {
		if cerr := pc.Close(); cerr != nil {
			lg.Warn("cache_close_failed", slog.String("err", cerr.Error()))
		}
	}()

	regen := isr.New(pc, isr.Options{
		MaxAge:       cfg.Cache.MaxAge,
		Timeout:      cfg.Timeouts.Regenerate,
		FallbackWait: cfg.Pages.FallbackWait,
		Metrics:      m,
	})

	h := handlers.New(c.svc, c.site, c.pages, regen, cfg.Pages)
	appHandler := gwhttp.NewRouter(h, gwhttp.Options{
		Logger:         lg,
		Timeout:        cfg.Timeouts.Service,
		BasePath:       cfg.Site.BasePath,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	var ready int32 // 0 — not ready; 1 — ready

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}

		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", appHandler)

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		lg.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		return err
	}

	lg.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	// Прогрев не блокирует готовность: холодные страницы соберутся по запросу.
	warmCtx, warmCancel := context.WithCancel(log.Into(rootCtx, lg))
	defer warmCancel()
	go func() {
		if _, err := c.site.Warm(warmCtx, regen); err != nil {
			lg.Warn("warm_failed", slog.String("err", err.Error()))
		}
	}()

	atomic.StoreInt32(&ready, 1)
	lg.Info("blog_ready")

	var serveErr error
	select {
	case <-rootCtx.Done():
		lg.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		if serveErr != nil {
			lg.Error("http_serve_failed", slog.String("err", serveErr.Error()))
		}
	}

	atomic.StoreInt32(&ready, 0)
	warmCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		lg.Info("http_stopped")
	}

	regen.Wait()
	lg.Info("service_stopped")

	return serveErr
}
