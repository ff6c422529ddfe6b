package registry

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"orchardtrace/faults"
	"orchardtrace/infrastructure/audit"
	"orchardtrace/infrastructure/respond"
	"orchardtrace/infrastructure/sqlite"
)

// ListRulesQueryHandler returns every chemical rule.
func ListRulesQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := ListRules(r.Context(), db)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, rules)
	}
}

// GetRuleQueryHandler returns the rule for one chemical name.
func GetRuleQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rule, err := GetRule(r.Context(), db, chi.URLParam(r, "name"))
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, rule)
	}
}

// UpsertRuleCommandHandler creates or updates a chemical rule.
func UpsertRuleCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	type request struct {
		ActorID int64 `json:"actorId"`
		RuleInput
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.Error(w, faults.Validation("invalid request body"))
			return
		}
		if req.ActorID <= 0 {
			respond.Error(w, faults.Validation("actorId is required"))
			return
		}
		rule, err := UpsertRule(r.Context(), db, auditSvc, req.ActorID, req.RuleInput)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, rule)
	}
}
