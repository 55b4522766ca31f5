package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"stageline/internal/domain"
)

// Querier is the subset of *sql.DB and *sql.Tx the repository needs.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repo runs hand-written SQL against a database or an open transaction.
type Repo struct {
	DB Querier
}

var ErrNotFound = errors.New("not found")

// WithTx returns a Repo bound to tx. Reads made through it observe the
// transaction's own writes.
func (r Repo) WithTx(tx *sql.Tx) Repo {
	return Repo{DB: tx}
}

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(domain.TimestampLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(domain.TimestampLayout, v)
	if err != nil {
		return time.Parse(time.RFC3339Nano, v)
	}
	return t, nil
}

func parseTimePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalTags(raw string) ([]string, error) {
	tags := []string{}
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
