package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-spacetraveling/internal/prismic/prismictest"
)

func TestSetupLogger_Levels(t *testing.T) {
	ctx := context.Background()

	require.True(t, setupLogger(envLocal).Enabled(ctx, slog.LevelDebug))
	require.True(t, setupLogger(envDev).Enabled(ctx, slog.LevelDebug))
	require.False(t, setupLogger(envProd).Enabled(ctx, slog.LevelDebug))
	require.True(t, setupLogger(envProd).Enabled(ctx, slog.LevelInfo))
	require.True(t, setupLogger("unknown").Enabled(ctx, slog.LevelDebug))
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	require.Contains(t, names, "serve")
	require.Contains(t, names, "export")
	require.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestExportCmd_WritesDir(t *testing.T) {
	srv := prismictest.New(t,
		prismictest.Post("id-1", "p1", time.Date(2021, 3, 3, 12, 0, 0, 0, time.UTC), map[string]any{"title": "P1", "author": "Caio"}),
	)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("env: prod\npages:\n  location: UTC\n"), 0o600))
	t.Setenv("PRISMIC_API_ENDPOINT", srv.Endpoint())

	out := filepath.Join(dir, "out")

	root := newRootCmd()
	root.SetArgs([]string{"--config", cfgPath, "export", "--out", out})
	require.NoError(t, root.Execute())

	_, err := os.Stat(filepath.Join(out, "index.html"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "post", "p1", "index.html"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "404.html"))
	require.NoError(t, err)
}

func TestExportCmd_InvalidConfig(t *testing.T) {
	dir := t.TempDir()

	root := newRootCmd()
	root.SetArgs([]string{"--config", filepath.Join(dir, "missing.yaml"), "export"})
	require.Error(t, root.Execute())
}
