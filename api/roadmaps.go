package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dzlearn/masar/internal/orchestrator"
	"github.com/dzlearn/masar/pkg/models"
	"github.com/dzlearn/masar/pkg/repository"
	"github.com/gorilla/mux"
	"github.com/qri-io/jsonschema"
)

//go:embed export_schema.json
var exportSchemaJSON []byte

// statusTransitions is the allowed roadmap lifecycle:
// draft -> active -> completed/archived, active -> archived and back.
var statusTransitions = map[string][]string{
	models.RoadmapDraft:     {models.RoadmapActive, models.RoadmapArchived},
	models.RoadmapActive:    {models.RoadmapCompleted, models.RoadmapArchived},
	models.RoadmapArchived:  {models.RoadmapActive},
	models.RoadmapCompleted: {},
}

type RoadmapsHandler struct {
	roadmapRepo repository.RoadmapRepo
	orc         *orchestrator.Orchestrator
}

func NewRoadmapsHandler(rr repository.RoadmapRepo, orc *orchestrator.Orchestrator) *RoadmapsHandler {
	return &RoadmapsHandler{roadmapRepo: rr, orc: orc}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}

// roadmapOf loads a roadmap and enforces ownership by the caller.
func (h *RoadmapsHandler) roadmapOf(r *http.Request) (*models.Roadmap, int) {
	userID := userIDFrom(r)
	if userID <= 0 {
		return nil, http.StatusUnauthorized
	}
	id, err := pathID(r)
	if err != nil {
		return nil, http.StatusBadRequest
	}
	rm, err := h.roadmapRepo.GetRoadmapByID(r.Context(), id)
	if err != nil {
		return nil, http.StatusInternalServerError
	}
	if rm == nil || rm.UserID != userID {
		return nil, http.StatusNotFound
	}
	return rm, 0
}

type roadmapSummary struct {
	models.Roadmap
	ProgressPct float64 `json:"progress_pct"`
}

func (h *RoadmapsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID <= 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roadmaps, err := h.roadmapRepo.ListRoadmapsByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, "Error listing roadmaps", http.StatusInternalServerError)
		return
	}

	items := make([]roadmapSummary, 0, len(roadmaps))
	for i := range roadmaps {
		steps, err := h.roadmapRepo.ListSteps(r.Context(), roadmaps[i].ID)
		if err != nil {
			http.Error(w, "Error listing steps", http.StatusInternalServerError)
			return
		}
		items = append(items, roadmapSummary{Roadmap: roadmaps[i], ProgressPct: roadmaps[i].Progress(steps)})
	}

	writeJSON(w, map[string]any{"items": items}, http.StatusOK)
}

type roadmapDetail struct {
	Roadmap     *models.Roadmap      `json:"roadmap"`
	Steps       []models.RoadmapStep `json:"steps"`
	ProgressPct float64              `json:"progress_pct"`
}

func (h *RoadmapsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rm, code := h.roadmapOf(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}

	steps, err := h.roadmapRepo.ListSteps(r.Context(), rm.ID)
	if err != nil {
		http.Error(w, "Error listing steps", http.StatusInternalServerError)
		return
	}

	writeJSON(w, roadmapDetail{Roadmap: rm, Steps: steps, ProgressPct: rm.Progress(steps)}, http.StatusOK)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *RoadmapsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	rm, code := h.roadmapOf(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	allowed := false
	for _, next := range statusTransitions[rm.Status] {
		if next == req.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		http.Error(w, fmt.Sprintf("cannot move roadmap from %s to %s", rm.Status, req.Status), http.StatusConflict)
		return
	}

	if err := h.roadmapRepo.UpdateRoadmapStatus(r.Context(), rm.ID, req.Status); err != nil {
		http.Error(w, "Error updating status", http.StatusInternalServerError)
		return
	}
	rm.Status = req.Status

	writeJSON(w, rm, http.StatusOK)
}

type exportPayload struct {
	SchemaVersion string               `json:"schema_version"`
	ExportedAt    string               `json:"exported_at"`
	Roadmap       *models.Roadmap      `json:"roadmap"`
	Steps         []models.RoadmapStep `json:"steps"`
}

// Export produces a versioned JSON document of the roadmap graph and
// checks it against the embedded export schema before writing it out.
func (h *RoadmapsHandler) Export(w http.ResponseWriter, r *http.Request) {
	rm, code := h.roadmapOf(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}

	steps, err := h.roadmapRepo.ListSteps(r.Context(), rm.ID)
	if err != nil {
		http.Error(w, "Error listing steps", http.StatusInternalServerError)
		return
	}

	payload := exportPayload{
		SchemaVersion: rm.SchemaVersion,
		ExportedAt:    time.Now().UTC().Format(time.RFC3339),
		Roadmap:       rm,
		Steps:         steps,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Error encoding export", http.StatusInternalServerError)
		return
	}

	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(exportSchemaJSON, rs); err != nil {
		http.Error(w, "Error loading export schema", http.StatusInternalServerError)
		return
	}
	errs, err := rs.ValidateBytes(r.Context(), b)
	if err != nil || len(errs) > 0 {
		http.Error(w, "Export failed schema validation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=roadmap-%d.json", rm.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// stepOf loads a step plus its siblings and enforces ownership. Siblings
// come from ListSteps so prerequisite edges are populated.
func (h *RoadmapsHandler) stepOf(r *http.Request) (*models.RoadmapStep, []models.RoadmapStep, *models.Roadmap, int) {
	userID := userIDFrom(r)
	if userID <= 0 {
		return nil, nil, nil, http.StatusUnauthorized
	}
	id, err := pathID(r)
	if err != nil {
		return nil, nil, nil, http.StatusBadRequest
	}

	ctx := r.Context()
	step, err := h.roadmapRepo.GetStepByID(ctx, id)
	if err != nil {
		return nil, nil, nil, http.StatusInternalServerError
	}
	if step == nil {
		return nil, nil, nil, http.StatusNotFound
	}
	rm, err := h.roadmapRepo.GetRoadmapByID(ctx, step.RoadmapID)
	if err != nil {
		return nil, nil, nil, http.StatusInternalServerError
	}
	if rm == nil || rm.UserID != userID {
		return nil, nil, nil, http.StatusNotFound
	}

	siblings, err := h.roadmapRepo.ListSteps(ctx, rm.ID)
	if err != nil {
		return nil, nil, nil, http.StatusInternalServerError
	}
	for i := range siblings {
		if siblings[i].ID == step.ID {
			step = &siblings[i]
			break
		}
	}
	return step, siblings, rm, 0
}

type completeStepRequest struct {
	ActualHours *float64 `json:"actual_hours,omitempty"`
}

// CompleteStep marks a step completed and unlocks any locked sibling whose
// prerequisites are now all done.
func (h *RoadmapsHandler) CompleteStep(w http.ResponseWriter, r *http.Request) {
	h.finishStep(w, r, models.StepCompleted)
}

// SkipStep marks a step skipped; skipped steps satisfy prerequisites the
// same way completed ones do.
func (h *RoadmapsHandler) SkipStep(w http.ResponseWriter, r *http.Request) {
	h.finishStep(w, r, models.StepSkipped)
}

func (h *RoadmapsHandler) finishStep(w http.ResponseWriter, r *http.Request, status string) {
	step, siblings, _, code := h.stepOf(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}
	if step.Status == models.StepCompleted || step.Status == models.StepSkipped {
		http.Error(w, "Step already finished", http.StatusConflict)
		return
	}

	// body is optional for both endpoints; a malformed one is still rejected
	var req completeStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	step.Status = status
	if status == models.StepCompleted && req.ActualHours != nil && *req.ActualHours >= 0 {
		step.ActualHours = req.ActualHours
	}
	if err := h.roadmapRepo.UpdateStep(ctx, step); err != nil {
		http.Error(w, "Error updating step", http.StatusInternalServerError)
		return
	}

	unlocked, err := h.unlockReady(ctx, step, siblings)
	if err != nil {
		http.Error(w, "Error unlocking steps", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"step": step, "unlocked": unlocked}, http.StatusOK)
}

// unlockReady flips locked siblings to active once every prerequisite is
// completed or skipped.
func (h *RoadmapsHandler) unlockReady(ctx context.Context, finished *models.RoadmapStep, siblings []models.RoadmapStep) ([]models.RoadmapStep, error) {
	done := make(map[int64]bool, len(siblings))
	for i := range siblings {
		s := &siblings[i]
		if s.ID == finished.ID {
			s.Status = finished.Status
		}
		if s.Status == models.StepCompleted || s.Status == models.StepSkipped {
			done[s.ID] = true
		}
	}

	var unlocked []models.RoadmapStep
	for i := range siblings {
		s := &siblings[i]
		if s.Status != models.StepLocked {
			continue
		}
		ready := true
		for _, prereqID := range s.PrereqIDs {
			if !done[prereqID] {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		s.Status = models.StepActive
		if err := h.roadmapRepo.UpdateStep(ctx, s); err != nil {
			return nil, err
		}
		unlocked = append(unlocked, *s)
	}
	return unlocked, nil
}

type updateStepRequest struct {
	Sequence           *int     `json:"sequence,omitempty"`
	UserNotes          *string  `json:"user_notes,omitempty"`
	IsPinned           *bool    `json:"is_pinned,omitempty"`
	ActualHours        *float64 `json:"actual_hours,omitempty"`
	MasteryCheckPassed *bool    `json:"mastery_check_passed,omitempty"`
}

// UpdateStep applies a guarded partial update. Sequence moves are rejected
// when they would place the step at or before one of its prerequisites.
func (h *RoadmapsHandler) UpdateStep(w http.ResponseWriter, r *http.Request) {
	step, siblings, _, code := h.stepOf(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}

	var req updateStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Sequence != nil && *req.Sequence != step.Sequence {
		if *req.Sequence < 1 {
			http.Error(w, "Sequence must be positive", http.StatusBadRequest)
			return
		}
		if err := h.orc.Validator().ValidateStepMove(step, *req.Sequence, siblings); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		step.Sequence = *req.Sequence
	}
	if req.UserNotes != nil {
		step.UserNotes = *req.UserNotes
	}
	if req.IsPinned != nil {
		step.IsPinned = *req.IsPinned
	}
	if req.ActualHours != nil && *req.ActualHours >= 0 {
		step.ActualHours = req.ActualHours
	}
	if req.MasteryCheckPassed != nil {
		step.MasteryCheckPassed = *req.MasteryCheckPassed
	}

	if err := h.roadmapRepo.UpdateStep(r.Context(), step); err != nil {
		http.Error(w, "Error updating step", http.StatusInternalServerError)
		return
	}

	writeJSON(w, step, http.StatusOK)
}

// StepResources lists the catalog resources attached to a step.
func (h *RoadmapsHandler) StepResources(w http.ResponseWriter, r *http.Request) {
	step, _, _, code := h.stepOf(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}

	attachments, err := h.roadmapRepo.ListStepResources(r.Context(), step.ID)
	if err != nil {
		http.Error(w, "Error listing step resources", http.StatusInternalServerError)
		return
	}
	if attachments == nil {
		attachments = []models.StepResource{}
	}

	writeJSON(w, map[string]any{"items": attachments}, http.StatusOK)
}
