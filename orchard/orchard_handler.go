package orchard

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"orchardtrace/faults"
	"orchardtrace/infrastructure/audit"
	"orchardtrace/infrastructure/respond"
	"orchardtrace/infrastructure/sqlite"
)

func CreateFarmerCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input FarmerInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			respond.Error(w, faults.Validation("invalid request body"))
			return
		}
		farmer, err := CreateFarmer(r.Context(), db, input)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusCreated, farmer)
	}
}

func CreateFarmCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input FarmInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			respond.Error(w, faults.Validation("invalid request body"))
			return
		}
		farm, err := CreateFarm(r.Context(), db, input)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusCreated, farm)
	}
}

func CreateTreeCommandHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input TreeInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			respond.Error(w, faults.Validation("invalid request body"))
			return
		}
		tree, err := CreateTree(r.Context(), db, input)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusCreated, tree)
	}
}

func GetTreeQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		treeID, err := parseTreeID(r)
		if err != nil {
			respond.Error(w, err)
			return
		}
		tree, err := GetTree(r.Context(), db, treeID)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, tree)
	}
}

func DeactivateTreeCommandHandler(db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	type request struct {
		ActorID int64 `json:"actorId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		treeID, err := parseTreeID(r)
		if err != nil {
			respond.Error(w, err)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ActorID <= 0 {
			respond.Error(w, faults.Validation("actorId is required"))
			return
		}
		if err := DeactivateTree(r.Context(), db, auditSvc, req.ActorID, treeID); err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, map[string]any{"id": treeID, "active": false})
	}
}

func AppendActivityCommandHandler(db *sqlite.DB) http.HandlerFunc {
	type request struct {
		ActorID int64 `json:"actorId"`
		ActivityInput
	}
	return func(w http.ResponseWriter, r *http.Request) {
		treeID, err := parseTreeID(r)
		if err != nil {
			respond.Error(w, err)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.Error(w, faults.Validation("invalid request body"))
			return
		}
		activity, err := AppendActivity(r.Context(), db, req.ActorID, treeID, req.ActivityInput)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusCreated, activity)
	}
}

func ListActivitiesQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		treeID, err := parseTreeID(r)
		if err != nil {
			respond.Error(w, err)
			return
		}
		activities, err := ListActivities(r.Context(), db, treeID)
		if err != nil {
			respond.Error(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, activities)
	}
}

func parseTreeID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, faults.Validation("invalid tree id")
	}
	return id, nil
}
