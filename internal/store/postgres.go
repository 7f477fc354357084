package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the production Store backed by a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the tables and the partial unique index that enforces
// the single-active-job rule at the database level.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_jobs (
			id UUID PRIMARY KEY,
			org_id TEXT NOT NULL,
			period TEXT NOT NULL,
			status TEXT NOT NULL,
			planned_ref TEXT NOT NULL DEFAULT '',
			actual_ref TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS analysis_jobs_active_uq
			ON analysis_jobs (org_id, period)
			WHERE status IN ('QUEUED','RUNNING')`,
		`CREATE INDEX IF NOT EXISTS analysis_jobs_org_period_idx
			ON analysis_jobs (org_id, period, status)`,
		`CREATE TABLE IF NOT EXISTS analysis_artifacts (
			job_id UUID NOT NULL REFERENCES analysis_jobs(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			storage_key TEXT NOT NULL,
			size BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (job_id, kind)
		)`,
		`CREATE TABLE IF NOT EXISTS metric_snapshots (
			org_id TEXT NOT NULL,
			period TEXT NOT NULL,
			job_id UUID NOT NULL,
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (org_id, period)
		)`,
	}
	for _, s := range stmts {
		if _, err := p.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) CreateJob(ctx context.Context, j Job) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO analysis_jobs (id, org_id, period, status, planned_ref, actual_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		j.ID, j.OrgID, j.Period, string(j.Status), j.PlannedRef, j.ActualRef, j.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

const jobColumns = `id, org_id, period, status, planned_ref, actual_ref, error_message, created_at, updated_at`

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	var status string
	err := row.Scan(&j.ID, &j.OrgID, &j.Period, &status, &j.PlannedRef, &j.ActualRef,
		&j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, fmt.Errorf("scan job: %w", err)
	}
	j.Status = JobStatus(status)
	return j, nil
}

func (p *Postgres) GetJob(ctx context.Context, id string) (Job, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (p *Postgres) TransitionJob(ctx context.Context, id string, from, to JobStatus, errMsg string) error {
	// Terminal rows never match: the status guard keeps SUCCEEDED/FAILED
	// immutable even when the caller passes a terminal expected status.
	tag, err := p.pool.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $1, error_message = $2, updated_at = now()
		WHERE id = $3 AND status = $4 AND status IN ('QUEUED','RUNNING')`,
		string(to), errMsg, id, string(from))
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := p.GetJob(ctx, id); errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return ErrStale
}

func (p *Postgres) StaleJobs(ctx context.Context, cutoff time.Time) ([]Job, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM analysis_jobs
		WHERE status IN ('QUEUED','RUNNING') AND updated_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query stale jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (p *Postgres) LatestSucceeded(ctx context.Context, orgID, period string) (Job, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM analysis_jobs
		WHERE org_id = $1 AND period = $2 AND status = 'SUCCEEDED'
		ORDER BY updated_at DESC LIMIT 1`, orgID, period)
	return scanJob(row)
}

func (p *Postgres) PutArtifact(ctx context.Context, a ArtifactRef) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO analysis_artifacts (job_id, kind, storage_key, size, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id, kind) DO UPDATE
		SET storage_key = EXCLUDED.storage_key, size = EXCLUDED.size, created_at = EXCLUDED.created_at`,
		a.JobID, a.Kind, a.StorageKey, a.Size, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert artifact ref: %w", err)
	}
	return nil
}

func (p *Postgres) GetArtifact(ctx context.Context, jobID, kind string) (ArtifactRef, error) {
	var a ArtifactRef
	err := p.pool.QueryRow(ctx, `
		SELECT job_id, kind, storage_key, size, created_at
		FROM analysis_artifacts WHERE job_id = $1 AND kind = $2`, jobID, kind).
		Scan(&a.JobID, &a.Kind, &a.StorageKey, &a.Size, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ArtifactRef{}, ErrNotFound
		}
		return ArtifactRef{}, fmt.Errorf("scan artifact ref: %w", err)
	}
	return a, nil
}

func (p *Postgres) UpsertSnapshot(ctx context.Context, s Snapshot) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO metric_snapshots (org_id, period, job_id, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (org_id, period) DO UPDATE
		SET job_id = EXCLUDED.job_id, payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		s.OrgID, s.Period, s.JobID, s.Payload, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (p *Postgres) GetSnapshot(ctx context.Context, orgID, period string) (Snapshot, error) {
	var s Snapshot
	err := p.pool.QueryRow(ctx, `
		SELECT org_id, period, job_id, payload, updated_at
		FROM metric_snapshots WHERE org_id = $1 AND period = $2`, orgID, period).
		Scan(&s.OrgID, &s.Period, &s.JobID, &s.Payload, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	return s, nil
}

func (p *Postgres) ListPeriods(ctx context.Context, orgID string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT period FROM metric_snapshots WHERE org_id = $1 ORDER BY period DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query periods: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
