package qrlabel

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"orchardtrace/batch"
	"orchardtrace/faults"
	"orchardtrace/infrastructure/audit"
	"orchardtrace/infrastructure/respond"
	"orchardtrace/infrastructure/sqlite"
)

// IssueCommandHandler issues the batch identifier. Calling it on a
// batch that already has one returns the existing record with 200.
func IssueCommandHandler(db *sqlite.DB, auditSvc *audit.Service, baseURL string) http.HandlerFunc {
	type request struct {
		ActorID int64 `json:"actorId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := parseBatchID(r)
		if err != nil {
			respond.Error(w, err)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.Error(w, faults.Validation("invalid request body"))
			return
		}
		record, err := Issue(r.Context(), db, auditSvc, req.ActorID, batchID, baseURL)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, record)
	}
}

// ImageQueryHandler serves the stored QR PNG.
func ImageQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := parseBatchID(r)
		if err != nil {
			respond.Error(w, err)
			return
		}
		record, err := GetByBatch(r.Context(), db, batchID)
		if err != nil {
			respond.Error(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "private, max-age=3600")
		_, _ = w.Write(record.ImagePNG)
	}
}

// LabelPDFQueryHandler renders the printable batch label.
func LabelPDFQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := parseBatchID(r)
		if err != nil {
			respond.Error(w, err)
			return
		}
		target, err := batch.Get(r.Context(), db, batchID)
		if err != nil {
			respond.Error(w, err)
			return
		}
		record, err := GetByBatch(r.Context(), db, batchID)
		if err != nil {
			respond.Error(w, err)
			return
		}
		pdfBytes, err := renderBatchLabelPDF(target, record)
		if err != nil {
			respond.Error(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", target.Code+"-label.pdf"))
		_, _ = w.Write(pdfBytes)
	}
}

// ScanCommandHandler increments the scan counter for a scanned payload
// or bare batch code and returns the new count.
func ScanCommandHandler(db *sqlite.DB) http.HandlerFunc {
	type request struct {
		Ref string `json:"ref"`
	}
	type response struct {
		ScanCount int64 `json:"scanCount"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.Error(w, faults.Validation("invalid request body"))
			return
		}
		count, err := RecordScan(r.Context(), db, req.Ref)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, response{ScanCount: count})
	}
}

func parseBatchID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, faults.Validation("invalid batch id")
	}
	return id, nil
}
