package dash

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"pavssv/api/constants"
	"pavssv/internal/artifact"
	"pavssv/internal/engine"
	"pavssv/internal/store"
)

func respondWithError(w http.ResponseWriter, status int, errMsg string) {
	log.Println("[ERROR]", errMsg)
	w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errMsg,
	})
}

func respondWithJSON(w http.ResponseWriter, status int, payload map[string]interface{}) {
	w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// filterFromQuery picks the supported filter dimensions out of the query
// string. Empty values are ignored.
func filterFromQuery(r *http.Request) engine.Filter {
	f := engine.Filter{}
	for _, c := range engine.FilterCategories {
		if v := r.URL.Query().Get(c); v != "" {
			f[c] = v
		}
	}
	if v := r.URL.Query().Get("status"); v != "" {
		f["status"] = v
	}
	if len(f) == 0 {
		return nil
	}
	return f
}

// loadRows fetches the full dataset of the latest succeeded job for the
// period.
func loadRows(ctx context.Context, st store.Store, blob store.BlobStore, orgID, period string) ([]engine.JoinedRow, error) {
	job, err := st.LatestSucceeded(ctx, orgID, period)
	if err != nil {
		return nil, err
	}
	ref, err := st.GetArtifact(ctx, job.ID, artifact.KindDataset)
	if err != nil {
		return nil, err
	}
	data, err := blob.Get(ctx, ref.StorageKey)
	if err != nil {
		return nil, err
	}
	return artifact.ReadDataset(data)
}

// loadMetrics serves from the snapshot when possible and falls back to
// recomputing from the dataset artifact. Filtered requests always recompute
// since snapshots hold the unfiltered rollup.
func loadMetrics(ctx context.Context, st store.Store, blob store.BlobStore, orgID, period string, f engine.Filter) (engine.Metrics, error) {
	if len(f) == 0 {
		if snap, err := st.GetSnapshot(ctx, orgID, period); err == nil {
			var m engine.Metrics
			if err := json.Unmarshal(snap.Payload, &m); err == nil {
				return m, nil
			}
			log.Printf("WARN: corrupt snapshot for org=%s period=%s, recomputing", orgID, period)
		}
	}

	rows, err := loadRows(ctx, st, blob, orgID, period)
	if err != nil {
		return engine.Metrics{}, err
	}
	m := engine.Aggregate(rows, f, engine.DefaultParams(), engine.Diagnostics{})
	m.Period = period

	// Self-heal the missing snapshot on the unfiltered path.
	if len(f) == 0 {
		if payload, err := json.Marshal(m); err == nil {
			job, jerr := st.LatestSucceeded(ctx, orgID, period)
			if jerr == nil {
				_ = st.UpsertSnapshot(ctx, store.Snapshot{
					OrgID: orgID, Period: period, JobID: job.ID,
					Payload: payload, UpdatedAt: time.Now().UTC(),
				})
			}
		}
	}
	return m, nil
}

func requireOrgPeriod(w http.ResponseWriter, r *http.Request) (orgID, period string, ok bool) {
	orgID = r.URL.Query().Get("organization_id")
	if orgID == "" {
		respondWithError(w, http.StatusBadRequest, constants.ErrMissingOrgID)
		return "", "", false
	}
	rawPeriod := r.URL.Query().Get("period")
	p, err := engine.ParsePeriod(rawPeriod)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, constants.ErrInvalidPeriod)
		return "", "", false
	}
	return orgID, p.String(), true
}

// Handler: GetMetrics
func GetMetrics(st store.Store, blob store.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, period, ok := requireOrgPeriod(w, r)
		if !ok {
			return
		}

		m, err := loadMetrics(r.Context(), st, blob, orgID, period, filterFromQuery(r))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(w, http.StatusNotFound, constants.ErrPeriodNotFound)
				return
			}
			respondWithError(w, http.StatusInternalServerError, constants.ErrDB)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"metrics": m,
		})
	}
}

// Handler: CompareMetrics diffs a period against a previous one (defaults to
// the immediately preceding month).
func CompareMetrics(st store.Store, blob store.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, period, ok := requireOrgPeriod(w, r)
		if !ok {
			return
		}

		prevRaw := r.URL.Query().Get("previous_period")
		if prevRaw == "" {
			p, _ := engine.ParsePeriod(period)
			prevRaw = previousPeriod(p).String()
		}
		prev, err := engine.ParsePeriod(prevRaw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, constants.ErrInvalidPeriod)
			return
		}

		cur, err := loadMetrics(r.Context(), st, blob, orgID, period, nil)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(w, http.StatusNotFound, constants.ErrPeriodNotFound)
				return
			}
			respondWithError(w, http.StatusInternalServerError, constants.ErrDB)
			return
		}
		prevM, err := loadMetrics(r.Context(), st, blob, orgID, prev.String(), nil)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(w, http.StatusNotFound, constants.ErrPeriodNotFound)
				return
			}
			respondWithError(w, http.StatusInternalServerError, constants.ErrDB)
			return
		}
		cur.Period, prevM.Period = period, prev.String()

		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"comparison": engine.Compare(cur, prevM, engine.DefaultParams()),
		})
	}
}

func previousPeriod(p engine.Period) engine.Period {
	if p.Month == 1 {
		return engine.Period{Year: p.Year - 1, Month: 12}
	}
	return engine.Period{Year: p.Year, Month: p.Month - 1}
}

// Handler: ListPeriods
func ListPeriods(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := r.URL.Query().Get("organization_id")
		if orgID == "" {
			respondWithError(w, http.StatusBadRequest, constants.ErrMissingOrgID)
			return
		}
		periods, err := st.ListPeriods(r.Context(), orgID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, constants.ErrDB)
			return
		}
		if periods == nil {
			periods = []string{}
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"periods": periods,
		})
	}
}

// Handler: GetDetails pages through the joined rows of the latest succeeded
// run, straight from the dataset artifact.
func GetDetails(st store.Store, blob store.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, period, ok := requireOrgPeriod(w, r)
		if !ok {
			return
		}
		page := queryInt(r, "page", 1)
		pageSize := queryInt(r, "page_size", 100)
		if pageSize > 1000 {
			pageSize = 1000
		}

		rows, err := loadRows(r.Context(), st, blob, orgID, period)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(w, http.StatusNotFound, constants.ErrPeriodNotFound)
				return
			}
			respondWithError(w, http.StatusInternalServerError, constants.ErrDB)
			return
		}
		if f := filterFromQuery(r); f != nil {
			filtered := rows[:0]
			for _, row := range rows {
				if matchesDetail(f, row) {
					filtered = append(filtered, row)
				}
			}
			rows = filtered
		}
		if search := r.URL.Query().Get("search"); search != "" {
			filtered := rows[:0]
			for _, row := range rows {
				if matchesSearch(search, row) {
					filtered = append(filtered, row)
				}
			}
			rows = filtered
		}
		sortDetails(rows, r.URL.Query().Get("sort_by"), r.URL.Query().Get("sort_order"))

		total := len(rows)
		start := (page - 1) * pageSize
		if start > total {
			start = total
		}
		end := start + pageSize
		if end > total {
			end = total
		}

		out := make([]map[string]interface{}, 0, end-start)
		for _, row := range rows[start:end] {
			out = append(out, detailRow(row))
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
			"rows":      out,
		})
	}
}

func matchesDetail(f engine.Filter, row engine.JoinedRow) bool {
	for k, want := range f {
		var got string
		if k == "status" {
			got = engine.StatusLabel(row.Status)
		} else {
			got = row.Categories[k]
		}
		if got != want {
			return false
		}
	}
	return true
}

// matchesSearch does a case-insensitive substring match over the client, unit
// and service codes and names.
func matchesSearch(search string, row engine.JoinedRow) bool {
	needle := strings.ToLower(search)
	for _, hay := range []string{
		row.ClientCode, row.UnitCode, row.ServiceCode,
		row.Categories[engine.CatClientName],
		row.Categories[engine.CatUnitName],
		row.Categories[engine.CatServiceName],
	} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

// sortDetails orders the rows by the requested column. An empty or unknown
// sort_by keeps the stored key order.
func sortDetails(rows []engine.JoinedRow, sortBy, sortOrder string) {
	var less func(a, b engine.JoinedRow) bool
	switch sortBy {
	case "planned":
		less = func(a, b engine.JoinedRow) bool { return a.Planned.LessThan(b.Planned) }
	case "actual":
		less = func(a, b engine.JoinedRow) bool { return a.Actual.LessThan(b.Actual) }
	case "difference":
		less = func(a, b engine.JoinedRow) bool { return a.Difference().LessThan(b.Difference()) }
	case "client_code":
		less = func(a, b engine.JoinedRow) bool { return a.ClientCode < b.ClientCode }
	case "unit_code":
		less = func(a, b engine.JoinedRow) bool { return a.UnitCode < b.UnitCode }
	case "service_code":
		less = func(a, b engine.JoinedRow) bool { return a.ServiceCode < b.ServiceCode }
	case "status":
		less = func(a, b engine.JoinedRow) bool {
			return engine.StatusLabel(a.Status) < engine.StatusLabel(b.Status)
		}
	default:
		return
	}
	desc := sortOrder != "asc"
	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
}

func detailRow(row engine.JoinedRow) map[string]interface{} {
	out := map[string]interface{}{
		"key":          row.Key,
		"client_code":  row.ClientCode,
		"unit_code":    row.UnitCode,
		"service_code": row.ServiceCode,
		"status":       engine.StatusLabel(row.Status),
		"difference":   row.Difference(),
	}
	if row.PlannedPresent {
		out["planned"] = row.Planned
	}
	if row.ActualPresent {
		out["actual"] = row.Actual
	}
	for k, v := range row.Categories {
		out[k] = v
	}
	return out
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return def
	}
	return v
}
