package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dzlearn/masar/pkg/models"
	"github.com/dzlearn/masar/pkg/repository"
	"github.com/gorilla/mux"
)

type ResourcesHandler struct {
	resourceRepo repository.ResourceRepo
}

func NewResourcesHandler(rr repository.ResourceRepo) *ResourcesHandler {
	return &ResourcesHandler{resourceRepo: rr}
}

// Search runs a catalog search. Query params: q (text), difficulty,
// language, type, free (true/false), limit.
func (h *ResourcesHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := make(map[string]any)
	if v := q.Get("difficulty"); v != "" {
		filters["difficulty"] = v
	}
	if v := q.Get("language"); v != "" {
		filters["language"] = v
	}
	if v := q.Get("type"); v != "" {
		filters["resource_type"] = v
	}
	if v := q.Get("free"); v != "" {
		filters["is_free"] = v == "true" || v == "1"
	}

	limit := 20
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}

	items, err := h.resourceRepo.SearchResources(r.Context(), strings.TrimSpace(q.Get("q")), filters, limit)
	if err != nil {
		http.Error(w, "Error searching resources", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []models.Resource{}
	}

	writeJSON(w, map[string]any{"items": items, "limit": limit}, http.StatusOK)
}

type voteRequest struct {
	Direction string `json:"direction"`
}

// Vote records an up or down vote on a resource. Quality scores are
// recomputed from the tallies by the maintenance scheduler, not here.
func (h *ResourcesHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid resource id", http.StatusBadRequest)
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Direction != "up" && req.Direction != "down" {
		http.Error(w, "Direction must be up or down", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	res, err := h.resourceRepo.GetResourceByID(ctx, id)
	if err != nil {
		http.Error(w, "Error loading resource", http.StatusInternalServerError)
		return
	}
	if res == nil {
		http.Error(w, "Resource not found", http.StatusNotFound)
		return
	}

	if err := h.resourceRepo.VoteResource(ctx, id, req.Direction == "up"); err != nil {
		http.Error(w, "Error recording vote", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"id": id, "direction": req.Direction}, http.StatusOK)
}
