// Package app wires configuration, logging, storage and the engine for the
// CLI and the HTTP server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"stageline/internal/config"
	"stageline/internal/db"
	"stageline/internal/engine"
	"stageline/internal/logger"
	"stageline/internal/migrate"
)

type App struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
	Logger    *slog.Logger
}

// LoadConfig reads the config at path, or the workspace stageline.yml when
// path is empty. A missing workspace file yields the defaults.
func LoadConfig(workspace, path string) (*config.Config, error) {
	if path != "" {
		return config.FromFile(path)
	}
	return config.Load(workspace)
}

// Open builds the logger, opens and migrates the database and returns an
// engine bound to it. cfg is validated again since callers may have applied
// overrides after loading it.
func Open(ctx context.Context, workspace string, cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	conn, err := db.Open(db.Config{
		Workspace:   workspace,
		Path:        cfg.Database.Path,
		BusyTimeout: cfg.BusyTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	version, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debug("database ready", "workspace", workspace, "schema_version", version)
	e := engine.New(conn, cfg)
	e.Logger = log
	return &App{
		Workspace: workspace,
		Config:    cfg,
		DB:        conn,
		Engine:    e,
		Logger:    log,
	}, nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
