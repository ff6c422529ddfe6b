package safety

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"orchardtrace/faults"
	"orchardtrace/infrastructure/respond"
	"orchardtrace/infrastructure/sqlite"
)

// TreeSafetyQueryHandler exposes the evaluator read-only, so client
// flows can show early feedback without reimplementing the PHI rule.
// Defaults to today when no date is supplied.
func TreeSafetyQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		treeID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || treeID <= 0 {
			respond.Error(w, faults.Validation("invalid tree id"))
			return
		}

		asOf := time.Now()
		if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
			asOf, err = time.Parse("2006-01-02", raw)
			if err != nil {
				respond.Error(w, faults.Validation("date must be YYYY-MM-DD"))
				return
			}
		}

		verdict, err := EvaluateTree(r.Context(), db, treeID, asOf)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, verdict)
	}
}
