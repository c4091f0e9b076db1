// Package catalog mirrors created jobs into Postgres so they can be queried
// by status. The artifact store stays the source of truth.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"inmoveo/internal/manifest"
	apperr "inmoveo/internal/pkg/errors"
)

const (
	StatusDryRun     = "DRY_RUN"
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusSkipped    = "SKIPPED"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

var statuses = []string{StatusDryRun, StatusQueued, StatusProcessing, StatusSkipped, StatusDone, StatusFailed}

// ValidStatus reports whether s is one of the catalog statuses.
func ValidStatus(s string) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

const schema = `
CREATE TABLE IF NOT EXISTS video_jobs (
	slug             TEXT PRIMARY KEY,
	aspect_ratio     TEXT NOT NULL DEFAULT '',
	style            TEXT NOT NULL DEFAULT '',
	objetivo_negocio TEXT NOT NULL DEFAULT '',
	dry_run          BOOLEAN NOT NULL,
	num_escenas      INTEGER NOT NULL,
	status           TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// DB is the subset of *pgxpool.Pool the catalog uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Job struct {
	Slug            string    `json:"slug"`
	AspectRatio     string    `json:"aspect_ratio"`
	Style           string    `json:"style"`
	ObjetivoNegocio string    `json:"objetivo_negocio"`
	DryRun          bool      `json:"dry_run"`
	NumEscenas      int       `json:"num_escenas"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return apperr.Unavailable("catalog.schema", "postgres", err)
	}
	return nil
}

// Record upserts the job described by m. Re-creating a slug resets its row.
func (r *Repository) Record(ctx context.Context, m manifest.Manifest) error {
	status := StatusQueued
	if m.DryRun {
		status = StatusDryRun
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO video_jobs (slug, aspect_ratio, style, objetivo_negocio, dry_run, num_escenas, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
		ON CONFLICT (slug) DO UPDATE SET
			aspect_ratio = EXCLUDED.aspect_ratio,
			style = EXCLUDED.style,
			objetivo_negocio = EXCLUDED.objetivo_negocio,
			dry_run = EXCLUDED.dry_run,
			num_escenas = EXCLUDED.num_escenas,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			updated_at = now()
	`, m.Slug, m.AspectRatio, m.Style, m.ObjetivoNegocio, m.DryRun, m.NumEscenas, status, m.CreatedAt)
	return r.wrap(err, "catalog.record", m.Slug)
}

func (r *Repository) MarkStatus(ctx context.Context, slug, status string) error {
	tag, err := r.db.Exec(ctx, `UPDATE video_jobs SET status=$2, updated_at=now() WHERE slug=$1`, slug, status)
	if err != nil {
		return r.wrap(err, "catalog.mark_status", slug)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("job", slug)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, slug string) (*Job, error) {
	var j Job
	err := r.db.QueryRow(ctx, `
		SELECT slug, aspect_ratio, style, objetivo_negocio, dry_run, num_escenas, status, created_at, updated_at
		FROM video_jobs WHERE slug=$1
	`, slug).Scan(&j.Slug, &j.AspectRatio, &j.Style, &j.ObjetivoNegocio, &j.DryRun, &j.NumEscenas, &j.Status, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("job", slug)
	}
	if err != nil {
		return nil, r.wrap(err, "catalog.get", slug)
	}
	return &j, nil
}

// List returns the newest jobs first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status string, limit int) ([]Job, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	if status != "" {
		rows, err = r.db.Query(ctx, `
			SELECT slug, aspect_ratio, style, objetivo_negocio, dry_run, num_escenas, status, created_at, updated_at
			FROM video_jobs WHERE status=$1
			ORDER BY created_at DESC
			LIMIT $2`, status, limit)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT slug, aspect_ratio, style, objetivo_negocio, dry_run, num_escenas, status, created_at, updated_at
			FROM video_jobs
			ORDER BY created_at DESC
			LIMIT $1`, limit)
	}
	if err != nil {
		return nil, r.wrap(err, "catalog.list", "")
	}
	defer rows.Close()

	out := make([]Job, 0, limit)
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.Slug, &j.AspectRatio, &j.Style, &j.ObjetivoNegocio, &j.DryRun, &j.NumEscenas, &j.Status, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, r.wrap(err, "catalog.list", "")
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, r.wrap(err, "catalog.list", "")
	}
	return out, nil
}

func (r *Repository) wrap(err error, op, slug string) error {
	if err == nil {
		return nil
	}
	if IsUndefinedTable(err) {
		return apperr.WrapWithCode(err, apperr.CodeFailedPrecond, op, "catalog schema is missing")
	}
	e := apperr.Unavailable(op, "postgres", err)
	if slug != "" {
		e = e.WithField("slug", slug)
	}
	return e
}
