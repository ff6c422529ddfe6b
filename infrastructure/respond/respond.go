// Package respond centralizes JSON responses and the mapping from
// fault categories to HTTP status codes, so every handler surfaces the
// same error shape.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"orchardtrace/faults"
)

// JSON writes v as a JSON body with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", slog.Any("err", err))
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	DaysRemaining *int   `json:"daysRemaining,omitempty"`
	Banned        *bool  `json:"banned,omitempty"`
	Chemical      string `json:"chemical,omitempty"`
}

// Error maps the error's fault category to a status code and writes the
// structured error body callers branch on.
func Error(w http.ResponseWriter, err error) {
	detail := errorDetail{Kind: faults.Kind(err), Message: err.Error()}

	var notSafe *faults.NotSafeError
	if errors.As(err, &notSafe) {
		days := notSafe.DaysRemaining
		banned := notSafe.Banned
		detail.DaysRemaining = &days
		detail.Banned = &banned
		detail.Chemical = notSafe.Chemical
	}

	status := http.StatusInternalServerError
	switch detail.Kind {
	case "validation":
		status = http.StatusUnprocessableEntity
	case "invalid_state", "conflict", "not_safe":
		status = http.StatusConflict
	case "not_found":
		status = http.StatusNotFound
	case "configuration":
		status = http.StatusInternalServerError
	default:
		// Internal details stay out of the response body.
		slog.Error("internal error", slog.Any("err", err))
		detail.Message = "internal error"
	}
	JSON(w, status, errorBody{Error: detail})
}
