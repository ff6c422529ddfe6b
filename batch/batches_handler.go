package batch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"orchardtrace/faults"
	"orchardtrace/infrastructure/audit"
	"orchardtrace/infrastructure/respond"
	"orchardtrace/infrastructure/sqlite"
	"orchardtrace/models"
)

// CreateCommandHandler aggregates completed requests into a batch.
func CreateCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	type request struct {
		ActorID int64 `json:"actorId"`
		CreateInput
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.Error(w, faults.Validation("invalid request body"))
			return
		}
		created, err := Create(r.Context(), db, auditSvc, req.ActorID, req.CreateInput)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusCreated, created)
	}
}

// GetQueryHandler returns a batch with its member requests.
func GetQueryHandler(db *sqlite.DB) http.HandlerFunc {
	type response struct {
		models.Batch
		Members []models.HarvestRequest `json:"members"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := parseBatchID(r)
		if err != nil {
			respond.Error(w, err)
			return
		}
		found, err := Get(r.Context(), db, batchID)
		if err != nil {
			respond.Error(w, err)
			return
		}
		members, err := Members(r.Context(), db, batchID)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, response{Batch: found, Members: members})
	}
}

// ManifestQueryHandler streams the batch manifest as CSV.
func ManifestQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := parseBatchID(r)
		if err != nil {
			respond.Error(w, err)
			return
		}
		found, err := Get(r.Context(), db, batchID)
		if err != nil {
			respond.Error(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", found.Code+"-manifest.csv"))
		if err := writeManifestCSV(r.Context(), db, w, batchID); err != nil {
			slog.Error("write manifest csv failed", slog.Int64("batch_id", batchID), slog.Any("err", err))
		}
	}
}

func parseBatchID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, faults.Validation("invalid batch id")
	}
	return id, nil
}
