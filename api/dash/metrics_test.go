package dash

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pavssv/internal/artifact"
	"pavssv/internal/engine"
	"pavssv/internal/store"
)

func detailFixture(key, clientName string, actual int64) engine.JoinedRow {
	r := engine.JoinedRow{
		Key:            key,
		PlannedPresent: true,
		ActualPresent:  true,
		Planned:        decimal.NewFromInt(1),
		Actual:         decimal.NewFromInt(actual),
		Categories:     map[string]string{engine.CatClientName: clientName},
		Status:         engine.StatusUnderstaffed,
	}
	r.ClientCode, r.UnitCode, r.ServiceCode = engine.SplitKey(key)
	return r
}

func seedSucceededRun(t *testing.T, st store.Store, blob store.BlobStore, rows []engine.JoinedRow) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.CreateJob(ctx, store.Job{
		ID: "job1", OrgID: "org1", Period: "2025-04", Status: store.JobQueued, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, st.TransitionJob(ctx, "job1", store.JobQueued, store.JobRunning, ""))

	data, err := artifact.WriteDataset(rows)
	require.NoError(t, err)
	key := "jobs/job1/artifacts/" + artifact.KindDataset
	require.NoError(t, blob.Put(ctx, key, data, "application/vnd.apache.parquet"))
	require.NoError(t, st.PutArtifact(ctx, store.ArtifactRef{
		JobID: "job1", Kind: artifact.KindDataset, StorageKey: key,
		Size: int64(len(data)), CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, st.TransitionJob(ctx, "job1", store.JobRunning, store.JobSucceeded, ""))
}

func detailsResponse(t *testing.T, st store.Store, blob store.BlobStore, query string) map[string]interface{} {
	t.Helper()
	rec := httptest.NewRecorder()
	GetDetails(st, blob)(rec, httptest.NewRequest(http.MethodGet, "/dash/details?organization_id=org1&period=2025-04"+query, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func detailClients(body map[string]interface{}) []string {
	var out []string
	for _, raw := range body["rows"].([]interface{}) {
		out = append(out, raw.(map[string]interface{})["client_name"].(string))
	}
	return out
}

func TestGetDetailsSearch(t *testing.T) {
	st := store.NewMemory()
	blob := store.NewMemoryBlob()
	seedSucceededRun(t, st, blob, []engine.JoinedRow{
		detailFixture("C1||U1||S1", "ACME INDUSTRIAL", 5),
		detailFixture("C2||U2||S2", "BETA SERVICES", 2),
		detailFixture("C3||U3||S3", "GAMA CORP", 9),
	})

	body := detailsResponse(t, st, blob, "&search=acme")
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, []string{"ACME INDUSTRIAL"}, detailClients(body))

	// Codes match too.
	body = detailsResponse(t, st, blob, "&search=c3")
	assert.Equal(t, []string{"GAMA CORP"}, detailClients(body))

	body = detailsResponse(t, st, blob, "&search=nadie")
	assert.Equal(t, float64(0), body["total"])
}

func TestGetDetailsSort(t *testing.T) {
	st := store.NewMemory()
	blob := store.NewMemoryBlob()
	seedSucceededRun(t, st, blob, []engine.JoinedRow{
		detailFixture("C1||U1||S1", "ACME INDUSTRIAL", 5),
		detailFixture("C2||U2||S2", "BETA SERVICES", 2),
		detailFixture("C3||U3||S3", "GAMA CORP", 9),
	})

	body := detailsResponse(t, st, blob, "&sort_by=actual&sort_order=desc")
	assert.Equal(t, []string{"GAMA CORP", "ACME INDUSTRIAL", "BETA SERVICES"}, detailClients(body))

	body = detailsResponse(t, st, blob, "&sort_by=actual&sort_order=asc")
	assert.Equal(t, []string{"BETA SERVICES", "ACME INDUSTRIAL", "GAMA CORP"}, detailClients(body))

	// Unknown column keeps the stored key order.
	body = detailsResponse(t, st, blob, "&sort_by=bogus")
	assert.Equal(t, []string{"ACME INDUSTRIAL", "BETA SERVICES", "GAMA CORP"}, detailClients(body))
}
