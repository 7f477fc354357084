// Package store persists analysis jobs, artifact references and metric
// snapshots, and holds the raw input/artifact bytes in a pluggable blob
// backend.
package store

import (
	"context"
	"errors"
	"time"
)

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
)

// Terminal reports whether no further transition is permitted.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job is one reconciliation run for an organization and period.
type Job struct {
	ID           string    `json:"id"`
	OrgID        string    `json:"organization_id"`
	Period       string    `json:"period"`
	Status       JobStatus `json:"status"`
	PlannedRef   string    `json:"planned_ref"`
	ActualRef    string    `json:"actual_ref"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ArtifactRef points at one stored output of a succeeded job.
type ArtifactRef struct {
	JobID      string    `json:"job_id"`
	Kind       string    `json:"kind"`
	StorageKey string    `json:"storage_key"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}

// Snapshot is the pre-aggregated metrics payload for (org, period),
// overwritten by each successful run.
type Snapshot struct {
	OrgID     string    `json:"organization_id"`
	Period    string    `json:"period"`
	JobID     string    `json:"job_id"`
	Payload   []byte    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict: a non-terminal job already exists for the (org, period).
	ErrConflict = errors.New("job already in flight for organization and period")
	// ErrStale: a conditional status update lost the race or targeted a
	// terminal job.
	ErrStale = errors.New("job status changed concurrently")
)

// Store is the persistence surface for jobs, artifacts and snapshots.
type Store interface {
	// CreateJob inserts a QUEUED job, failing with ErrConflict while another
	// non-terminal job holds the same (org, period).
	CreateJob(ctx context.Context, j Job) error
	GetJob(ctx context.Context, id string) (Job, error)
	// TransitionJob moves id from the expected status to next, compare-and-
	// swap style. Terminal rows never match an expected non-terminal status,
	// so they stay immutable. Returns ErrStale when the swap does not apply.
	TransitionJob(ctx context.Context, id string, from, to JobStatus, errMsg string) error
	// StaleJobs returns non-terminal jobs untouched since the cutoff; the
	// recovery sweep fails them.
	StaleJobs(ctx context.Context, cutoff time.Time) ([]Job, error)
	// LatestSucceeded returns the most recent SUCCEEDED job for the pair.
	LatestSucceeded(ctx context.Context, orgID, period string) (Job, error)

	PutArtifact(ctx context.Context, a ArtifactRef) error
	GetArtifact(ctx context.Context, jobID, kind string) (ArtifactRef, error)

	UpsertSnapshot(ctx context.Context, s Snapshot) error
	GetSnapshot(ctx context.Context, orgID, period string) (Snapshot, error)
	// ListPeriods returns every period with a snapshot for the org, newest
	// first.
	ListPeriods(ctx context.Context, orgID string) ([]string, error)
}
