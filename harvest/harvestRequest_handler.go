package harvest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"orchardtrace/faults"
	"orchardtrace/infrastructure/audit"
	"orchardtrace/infrastructure/respond"
	"orchardtrace/infrastructure/sqlite"
	"orchardtrace/models"
)

// SubmitCommandHandler creates a request; submission is the PHI gate.
func SubmitCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	type request struct {
		ActorID int64 `json:"actorId"`
		SubmitInput
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.Error(w, faults.Validation("invalid request body"))
			return
		}
		created, err := Submit(r.Context(), db, auditSvc, req.ActorID, req.SubmitInput)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusCreated, created)
	}
}

// ApproveCommandHandler and friends are thin wrappers over the state
// machine; status codes come from the fault mapping.
func ApproveCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return statusTransitionHandler(db, auditSvc, Approve)
}

func RejectCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return statusTransitionHandler(db, auditSvc, Reject)
}

func CompleteCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return statusTransitionHandler(db, auditSvc, Complete)
}

func CheckInCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	type request struct {
		ActorID int64 `json:"actorId"`
		CheckInInput
	}
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := parseRequestID(r)
		if err != nil {
			respond.Error(w, err)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.Error(w, faults.Validation("invalid request body"))
			return
		}
		updated, err := CheckIn(r.Context(), db, auditSvc, req.ActorID, requestID, req.CheckInInput)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, updated)
	}
}

func GetQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := parseRequestID(r)
		if err != nil {
			respond.Error(w, err)
			return
		}
		found, err := Get(r.Context(), db, requestID)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, found)
	}
}

func ListQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		requests, err := List(r.Context(), db, status)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, requests)
	}
}

type transitionFunc func(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actorID, requestID int64) (models.HarvestRequest, error)

func statusTransitionHandler(db *sqlite.DB, auditSvc *audit.Service, fn transitionFunc) http.HandlerFunc {
	type request struct {
		ActorID int64 `json:"actorId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := parseRequestID(r)
		if err != nil {
			respond.Error(w, err)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.Error(w, faults.Validation("invalid request body"))
			return
		}
		updated, err := fn(r.Context(), db, auditSvc, req.ActorID, requestID)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, updated)
	}
}

func parseRequestID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, faults.Validation("invalid request id")
	}
	return id, nil
}
