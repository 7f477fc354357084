package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"pavssv/api/constants"
	"pavssv/internal/artifact"
	"pavssv/internal/config"
	"pavssv/internal/engine"
	"pavssv/internal/jobs"
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

func readFormFile(r *http.Request, field string) (string, []byte, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, err
	}
	return hdr.Filename, data, nil
}

// Handler: SubmitJob accepts a multipart form with organization_id, period
// and the two roster files, validates headers synchronously and enqueues the
// reconciliation.
func SubmitJob(orch *jobs.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(config.MaxUploadBytes); err != nil {
			respondWithError(w, http.StatusBadRequest, "Failed to parse multipart form")
			return
		}

		orgID := r.FormValue(constants.FieldOrgID)
		if orgID == "" {
			respondWithError(w, http.StatusBadRequest, constants.ErrMissingOrgID)
			return
		}
		period, err := engine.ParsePeriod(r.FormValue(constants.FieldPeriod))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, constants.ErrInvalidPeriod)
			return
		}

		sub := jobs.Submission{OrgID: orgID, Period: period}
		for _, part := range []struct {
			field string
			dst   *jobs.InputFile
		}{
			{constants.FieldPlanned, &sub.Planned},
			{constants.FieldActual, &sub.Actual},
		} {
			name, data, err := readFormFile(r, part.field)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, constants.ErrMissingFile)
				return
			}
			table, err := parseUpload(data, getFileExt(name))
			if err != nil {
				respondWithError(w, http.StatusUnprocessableEntity, fmt.Sprintf("%s: %s", constants.ErrUnsupportedFile, part.field))
				return
			}
			*part.dst = jobs.InputFile{Name: name, Bytes: data, Table: table}
		}

		job, err := orch.Submit(r.Context(), sub)
		if err != nil {
			var se *engine.SchemaError
			switch {
			case errors.As(err, &se):
				respondWithError(w, http.StatusUnprocessableEntity, se.Error())
			case errors.Is(err, store.ErrConflict):
				respondWithError(w, http.StatusConflict, constants.ErrJobInFlight)
			case errors.Is(err, jobs.ErrBusy):
				respondWithError(w, http.StatusServiceUnavailable, constants.ErrQueueFull)
			default:
				respondWithError(w, http.StatusInternalServerError, constants.ErrInternalProcessing)
			}
			return
		}

		respondWithJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"job": map[string]interface{}{
				"id":              job.ID,
				"organization_id": job.OrgID,
				"period":          job.Period,
				"status":          job.Status,
				"created_at":      job.CreatedAt,
			},
		})
	}
}

// Handler: GetJobStatus
func GetJobStatus(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		job, err := st.GetJob(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(w, http.StatusNotFound, constants.ErrJobNotFound)
				return
			}
			respondWithError(w, http.StatusInternalServerError, constants.ErrDB)
			return
		}

		payload := map[string]interface{}{
			"success":         true,
			"id":              job.ID,
			"organization_id": job.OrgID,
			"period":          job.Period,
			"status":          job.Status,
			"created_at":      job.CreatedAt,
			"updated_at":      job.UpdatedAt,
		}
		if job.ErrorMessage != "" {
			payload["error_message"] = job.ErrorMessage
		}
		respondWithJSON(w, http.StatusOK, payload)
	}
}

// Handler: GetArtifact streams a produced artifact for a succeeded job.
func GetArtifact(st store.Store, blob store.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		id, kind := vars["id"], vars["kind"]

		ct, err := artifact.ContentType(kind)
		if err != nil {
			respondWithError(w, http.StatusNotFound, constants.ErrArtifactNotFound)
			return
		}
		job, err := st.GetJob(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(w, http.StatusNotFound, constants.ErrJobNotFound)
				return
			}
			respondWithError(w, http.StatusInternalServerError, constants.ErrDB)
			return
		}
		// Artifacts are written before the status flip; only a SUCCEEDED job
		// may expose them.
		if job.Status != store.JobSucceeded {
			respondWithError(w, http.StatusNotFound, constants.ErrArtifactNotFound)
			return
		}

		ref, err := st.GetArtifact(r.Context(), id, kind)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(w, http.StatusNotFound, constants.ErrArtifactNotFound)
				return
			}
			respondWithError(w, http.StatusInternalServerError, constants.ErrDB)
			return
		}
		data, err := blob.Get(r.Context(), ref.StorageKey)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, constants.ErrDB)
			return
		}

		name, _ := artifact.FileName(kind, job.Period)
		w.Header().Set(constants.ContentTypeText, ct)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}
