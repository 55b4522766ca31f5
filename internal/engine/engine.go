// Package engine implements the pipeline operations: the stage registry, the
// card store with its position reconciler, SLA deadlines, the timeline read
// side and the Kanban board. Every mutation commits its rows and its timeline
// event in one transaction.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"stageline/internal/apperr"
	"stageline/internal/config"
	"stageline/internal/logger"
	"stageline/internal/metrics"
	"stageline/internal/repo"
	"stageline/internal/timeline"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Timeline timeline.Writer
	Config   *config.Config
	Logger   *slog.Logger
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Timeline: timeline.Writer{},
		Config:   cfg,
		Logger:   slog.Default(),
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logger.Discard()
}

func (e Engine) writer() timeline.Writer {
	w := e.Timeline
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// inTx runs fn inside one write transaction. Any error rolls back every
// statement fn issued, including the timeline append.
func (e Engine) inTx(ctx context.Context, fn func(tx *sql.Tx, r repo.Repo) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Persistence("begin transaction", err)
	}
	defer tx.Rollback()
	if err := fn(tx, e.Repo.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Persistence("commit transaction", err)
	}
	return nil
}

// inReadTx runs fn inside a read-only transaction. It begins DEFERRED, so
// it reads one snapshot without taking the write lock.
func (e Engine) inReadTx(ctx context.Context, fn func(r repo.Repo) error) error {
	tx, err := e.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return apperr.Persistence("begin read transaction", err)
	}
	defer tx.Rollback()
	if err := fn(e.Repo.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Persistence("commit read transaction", err)
	}
	return nil
}

// track records metrics for an operation and logs storage failures.
func (e Engine) track(op string, started time.Time, errp *error) {
	result := "ok"
	if errp != nil && *errp != nil {
		result = string(apperr.TypeOf(*errp))
		if result == "" {
			result = string(apperr.TypePersistence)
		}
		if errors.Is(*errp, apperr.ErrPersistence) {
			e.log().Error("pipeline operation failed", "op", op, "error", *errp)
		} else {
			e.log().Debug("pipeline operation rejected", "op", op, "error", *errp)
		}
	}
	metrics.Observe(op, result, time.Since(started))
}

// storeErr maps repository errors onto the typed taxonomy. Missing rows and
// rows of another tenant both surface as NotFound.
func storeErr(err error, op, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.NotFound(entity + " not found")
	}
	return apperr.Persistence(op, err)
}

func (e Engine) pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = e.Config.Pipeline.DefaultPageSize
	}
	if maxLimit := e.Config.Pipeline.MaxPageSize; maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
