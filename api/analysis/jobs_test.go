package analysis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pavssv/internal/artifact"
	"pavssv/internal/store"
)

func artifactRouter(st store.Store, blob store.BlobStore) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/analysis/jobs/{id}/artifacts/{kind}", GetArtifact(st, blob)).Methods(http.MethodGet)
	return r
}

func seedJob(t *testing.T, st store.Store, id, period string, status store.JobStatus) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.CreateJob(ctx, store.Job{
		ID: id, OrgID: "org1", Period: period, Status: store.JobQueued, CreatedAt: time.Now().UTC(),
	}))
	if status == store.JobQueued {
		return
	}
	require.NoError(t, st.TransitionJob(ctx, id, store.JobQueued, store.JobRunning, ""))
	if status == store.JobRunning {
		return
	}
	errMsg := ""
	if status == store.JobFailed {
		errMsg = "processing failed during snapshot"
	}
	require.NoError(t, st.TransitionJob(ctx, id, store.JobRunning, status, errMsg))
}

func seedArtifact(t *testing.T, st store.Store, blob store.BlobStore, jobID string, data []byte) {
	t.Helper()
	ctx := context.Background()
	key := "jobs/" + jobID + "/artifacts/" + artifact.KindDataset
	require.NoError(t, blob.Put(ctx, key, data, "application/vnd.apache.parquet"))
	require.NoError(t, st.PutArtifact(ctx, store.ArtifactRef{
		JobID: jobID, Kind: artifact.KindDataset, StorageKey: key,
		Size: int64(len(data)), CreatedAt: time.Now().UTC(),
	}))
}

func TestGetArtifactRequiresSucceededJob(t *testing.T) {
	st := store.NewMemory()
	blob := store.NewMemoryBlob()
	router := artifactRouter(st, blob)

	// Artifacts land before the status flip; a job that dies afterwards must
	// not expose them.
	seedJob(t, st, "job-failed", "2025-04", store.JobRunning)
	seedArtifact(t, st, blob, "job-failed", []byte("partial-bytes"))
	require.NoError(t, st.TransitionJob(context.Background(), "job-failed", store.JobRunning, store.JobFailed, "boom"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analysis/jobs/job-failed/artifacts/"+artifact.KindDataset, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "false")

	// A job still RUNNING hides its artifacts too.
	seedJob(t, st, "job-running", "2025-05", store.JobRunning)
	seedArtifact(t, st, blob, "job-running", []byte("partial-bytes"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analysis/jobs/job-running/artifacts/"+artifact.KindDataset, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetArtifactStreamsSucceededJob(t *testing.T) {
	st := store.NewMemory()
	blob := store.NewMemoryBlob()
	router := artifactRouter(st, blob)

	seedJob(t, st, "job-ok", "2025-04", store.JobSucceeded)
	seedArtifact(t, st, blob, "job-ok", []byte("dataset-bytes"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analysis/jobs/job-ok/artifacts/"+artifact.KindDataset, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dataset-bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "conciliacion_2025-04.parquet")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analysis/jobs/job-ok/artifacts/bogus", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
