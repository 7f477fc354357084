package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and local development. Same
// semantics as Postgres, including the single-active-job rule and terminal
// immutability.
type Memory struct {
	mu        sync.Mutex
	jobs      map[string]Job
	artifacts map[string]ArtifactRef // jobID + "/" + kind
	snapshots map[string]Snapshot    // orgID + "/" + period
}

func NewMemory() *Memory {
	return &Memory{
		jobs:      map[string]Job{},
		artifacts: map[string]ArtifactRef{},
		snapshots: map[string]Snapshot{},
	}
}

func (m *Memory) CreateJob(_ context.Context, j Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.jobs {
		if existing.OrgID == j.OrgID && existing.Period == j.Period && !existing.Status.Terminal() {
			return ErrConflict
		}
	}
	j.UpdatedAt = j.CreatedAt
	m.jobs[j.ID] = j
	return nil
}

func (m *Memory) GetJob(_ context.Context, id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (m *Memory) TransitionJob(_ context.Context, id string, from, to JobStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() || j.Status != from {
		return ErrStale
	}
	j.Status = to
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
	m.jobs[id] = j
	return nil
}

func (m *Memory) StaleJobs(_ context.Context, cutoff time.Time) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Job
	for _, j := range m.jobs {
		if !j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *Memory) LatestSucceeded(_ context.Context, orgID, period string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best Job
	found := false
	for _, j := range m.jobs {
		if j.OrgID != orgID || j.Period != period || j.Status != JobSucceeded {
			continue
		}
		if !found || j.UpdatedAt.After(best.UpdatedAt) {
			best, found = j, true
		}
	}
	if !found {
		return Job{}, ErrNotFound
	}
	return best, nil
}

func (m *Memory) PutArtifact(_ context.Context, a ArtifactRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[a.JobID+"/"+a.Kind] = a
	return nil
}

func (m *Memory) GetArtifact(_ context.Context, jobID, kind string) (ArtifactRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.artifacts[jobID+"/"+kind]
	if !ok {
		return ArtifactRef{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) UpsertSnapshot(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[s.OrgID+"/"+s.Period] = s
	return nil
}

func (m *Memory) GetSnapshot(_ context.Context, orgID, period string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[orgID+"/"+period]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) ListPeriods(_ context.Context, orgID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.snapshots {
		if s.OrgID == orgID {
			out = append(out, s.Period)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}
