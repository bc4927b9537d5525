package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pribylovaa/go-spacetraveling/internal/export"
	"github.com/pribylovaa/go-spacetraveling/pkg/log"
)

func newExportCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Выгрузить главную, пре-рендеренные посты и статику",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir != "" {
				a.cfg.Export.Sink = "dir"
				a.cfg.Export.Dir = dir
			}

			return a.export(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&dir, "out", "", "output directory (overrides export.sink)")

	return cmd
}

func (a *app) export(ctx context.Context) error {
	cfg, lg := a.cfg, a.log

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = log.Into(ctx, lg)

	c, err := newContent(cfg, lg)
	if err != nil {
		lg.Error("content_init_failed", slog.String("err", err.Error()))
		return err
	}

	sink, err := export.NewSink(ctx, cfg.Export)
	if err != nil {
		lg.Error("export_sink_init_failed", slog.String("sink", cfg.Export.Sink), slog.String("err", err.Error()))
		return err
	}

	rep, err := export.New(c.site, c.pages, sink).Run(ctx)
	if err != nil {
		return err
	}

	lg.Info("export_finished", slog.String("sink", cfg.Export.Sink), slog.Int("files", len(rep.Files)))
	return nil
}
