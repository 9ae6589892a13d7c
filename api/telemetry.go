package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dzlearn/masar/pkg/models"
	"github.com/dzlearn/masar/pkg/repository"
)

type TelemetryHandler struct {
	telemetryRepo repository.TelemetryRepo
}

func NewTelemetryHandler(tr repository.TelemetryRepo) *TelemetryHandler {
	return &TelemetryHandler{telemetryRepo: tr}
}

type postActivityRequest struct {
	Activity  string `json:"activity"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

type postActivityResponse struct {
	ID int64 `json:"id"`
}

// CreateActivity records a learner activity event. The inactivity scan in
// the maintenance scheduler reads these to find silent learners.
func (h *TelemetryHandler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID <= 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req postActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	req.Activity = strings.TrimSpace(req.Activity)
	if req.Activity == "" {
		http.Error(w, "missing fields", http.StatusBadRequest)
		return
	}
	if len(req.Activity) > 2000 {
		http.Error(w, "activity too long", http.StatusBadRequest)
		return
	}

	if req.Timestamp == nil || *req.Timestamp <= 0 {
		now := time.Now().UTC().UnixMilli()
		req.Timestamp = &now
	}

	a := &models.UserActivity{UserID: userID, Activity: req.Activity, Created: *req.Timestamp}
	id, err := h.telemetryRepo.CreateActivity(r.Context(), a)
	if err != nil {
		http.Error(w, "failed to store activity", http.StatusInternalServerError)
		return
	}

	writeJSON(w, postActivityResponse{ID: id}, http.StatusCreated)
}

// Progress lists the caller's daily progress snapshots, newest first.
func (h *TelemetryHandler) Progress(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID <= 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := 30
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 365 {
			limit = v
		}
	}

	snapshots, err := h.telemetryRepo.ListSnapshotsByUser(r.Context(), userID, limit)
	if err != nil {
		http.Error(w, "failed to list snapshots", http.StatusInternalServerError)
		return
	}
	if snapshots == nil {
		snapshots = []models.ProgressSnapshot{}
	}

	writeJSON(w, map[string]any{"items": snapshots, "limit": limit}, http.StatusOK)
}
