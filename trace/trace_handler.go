package trace

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"orchardtrace/infrastructure/respond"
	"orchardtrace/infrastructure/sqlite"
)

// ResolveQueryHandler serves the public provenance view. It is a pure
// read: resolving by code does not touch the scan counter.
func ResolveQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := Resolve(r.Context(), db, chi.URLParam(r, "code"))
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, record)
	}
}
