package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stageline/internal/config"
	"stageline/internal/domain"
)

func TestOpenMigratesWorkspace(t *testing.T) {
	workspace := t.TempDir()
	cfg := config.Default()
	cfg.Logger.Level = "error"

	a, err := Open(context.Background(), workspace, cfg)
	require.NoError(t, err)
	defer a.Close()

	_, err = os.Stat(filepath.Join(workspace, ".stageline", "stageline.db"))
	require.NoError(t, err)

	stages, seeded, err := a.Engine.SeedStages(context.Background(), "t1", domain.Actor{UserID: "u1"}, nil)
	require.NoError(t, err)
	assert.True(t, seeded)
	assert.Len(t, stages, len(cfg.Pipeline.DefaultStages))
}

func TestOpenHonoursDatabasePath(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Logger.Level = "error"
	cfg.Database.Path = filepath.Join(dir, "data", "pipeline.db")

	a, err := Open(context.Background(), dir, cfg)
	require.NoError(t, err)
	defer a.Close()

	_, err = os.Stat(cfg.Database.Path)
	assert.NoError(t, err)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.DefaultPageSize = 0
	_, err := Open(context.Background(), t.TempDir(), cfg)
	assert.Error(t, err)
}

func TestLoadConfigPrefersExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  default_page_size: 7\n"), 0o644))

	cfg, err := LoadConfig(dir, path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Pipeline.DefaultPageSize)

	cfg, err = LoadConfig(dir, "")
	require.NoError(t, err)
	assert.Equal(t, config.Default().Pipeline.DefaultPageSize, cfg.Pipeline.DefaultPageSize)
}
