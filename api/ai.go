package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/dzlearn/masar/internal/jobs"
	"github.com/dzlearn/masar/internal/orchestrator"
	"github.com/dzlearn/masar/pkg/models"
	"github.com/dzlearn/masar/pkg/repository"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type AIHandler struct {
	profileRepo repository.ProfileRepo
	aiJobRepo   repository.AIJobRepo
	roadmapRepo repository.RoadmapRepo
	pool        *jobs.WorkerPool
	orc         *orchestrator.Orchestrator
}

func NewAIHandler(
	pr repository.ProfileRepo,
	jr repository.AIJobRepo,
	rr repository.RoadmapRepo,
	pool *jobs.WorkerPool,
	orc *orchestrator.Orchestrator,
) *AIHandler {
	return &AIHandler{profileRepo: pr, aiJobRepo: jr, roadmapRepo: rr, pool: pool, orc: orc}
}

func (h *AIHandler) profileOf(r *http.Request) (*models.LearnerProfile, int) {
	userID := userIDFrom(r)
	if userID <= 0 {
		return nil, http.StatusUnauthorized
	}
	p, err := h.profileRepo.GetProfileByUserID(r.Context(), userID)
	if err != nil {
		return nil, http.StatusInternalServerError
	}
	if p == nil {
		return nil, http.StatusNotFound
	}
	return p, 0
}

type generateRequest struct {
	Sync bool `json:"sync,omitempty"`
}

type generateResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Generate kicks off roadmap generation for the caller's profile. The
// default is asynchronous: a pending job record comes back immediately and
// the worker pool drives the pipeline. With sync=true the pipeline runs
// inline and the full result is returned.
func (h *AIHandler) Generate(w http.ResponseWriter, r *http.Request) {
	p, code := h.profileOf(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}

	// body is optional; an empty one means async defaults
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	if problems := orchestrator.NewNormalizer().ValidateProfile(p); len(problems) > 0 {
		writeJSON(w, map[string]any{"problems": problems}, http.StatusBadRequest)
		return
	}

	active, err := h.aiJobRepo.HasActiveJob(ctx, p.ID)
	if err != nil {
		http.Error(w, "Error checking jobs", http.StatusInternalServerError)
		return
	}
	if active {
		http.Error(w, "A generation job is already running for this profile", http.StatusConflict)
		return
	}

	if req.Sync {
		result, err := h.orc.Run(ctx, p, nil)
		if err != nil {
			http.Error(w, "Generation failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, result, http.StatusOK)
		return
	}

	aiJob := &models.AIJob{
		PublicID:  uuid.NewString(),
		UserID:    p.UserID,
		ProfileID: p.ID,
		JobType:   jobs.TypeGenerateRoadmap,
		Status:    models.JobPending,
	}
	id, err := h.aiJobRepo.CreateAIJob(ctx, aiJob)
	if err != nil {
		http.Error(w, "Error creating job", http.StatusInternalServerError)
		return
	}
	aiJob.ID = id

	payload := jobs.GeneratePayload{JobID: aiJob.PublicID, UserID: p.UserID, ProfileID: p.ID}
	queueID, err := h.pool.Enqueue(ctx, jobs.TypeGenerateRoadmap, payload, 10, 3)
	if err != nil {
		http.Error(w, "Error enqueueing job", http.StatusInternalServerError)
		return
	}
	aiJob.QueueJobID = queueID
	if err := h.aiJobRepo.UpdateAIJob(ctx, aiJob); err != nil {
		http.Error(w, "Error updating job", http.StatusInternalServerError)
		return
	}

	writeJSON(w, generateResponse{JobID: aiJob.PublicID, Status: aiJob.Status}, http.StatusAccepted)
}

// jobOf loads an AI job by public id and enforces ownership.
func (h *AIHandler) jobOf(r *http.Request) (*models.AIJob, int) {
	userID := userIDFrom(r)
	if userID <= 0 {
		return nil, http.StatusUnauthorized
	}
	publicID := mux.Vars(r)["id"]
	if publicID == "" {
		return nil, http.StatusBadRequest
	}
	j, err := h.aiJobRepo.GetAIJobByPublicID(r.Context(), publicID)
	if err != nil {
		return nil, http.StatusInternalServerError
	}
	if j == nil || j.UserID != userID {
		return nil, http.StatusNotFound
	}
	return j, 0
}

func (h *AIHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	j, code := h.jobOf(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}
	writeJSON(w, j, http.StatusOK)
}

// Cancel marks a pending or running job cancelled. The worker checks the
// flag before starting work; a run already in flight finishes its current
// stage and is then discarded.
func (h *AIHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	j, code := h.jobOf(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}

	switch j.Status {
	case models.JobCompleted, models.JobFailed, models.JobCancelled:
		http.Error(w, "Job already finished", http.StatusConflict)
		return
	}

	j.Status = models.JobCancelled
	now := nowMilli()
	j.CompletedAt = &now
	if err := h.aiJobRepo.UpdateAIJob(r.Context(), j); err != nil {
		http.Error(w, "Error cancelling job", http.StatusInternalServerError)
		return
	}

	writeJSON(w, j, http.StatusOK)
}

// Estimate projects completion time for the caller's profile without
// creating anything.
func (h *AIHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	p, code := h.profileOf(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}

	est, err := h.orc.EstimateCompletion(p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, est, http.StatusOK)
}

type validateRequest struct {
	RoadmapID int64 `json:"roadmap_id"`
}

// Validate re-runs the roadmap validator against a stored roadmap and
// returns the report. Findings are advisory; nothing is mutated.
func (h *AIHandler) Validate(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID <= 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoadmapID <= 0 {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	rm, err := h.roadmapRepo.GetRoadmapByID(ctx, req.RoadmapID)
	if err != nil {
		http.Error(w, "Error loading roadmap", http.StatusInternalServerError)
		return
	}
	if rm == nil || rm.UserID != userID {
		http.Error(w, "Roadmap not found", http.StatusNotFound)
		return
	}

	report, err := h.orc.ValidateExisting(ctx, rm)
	if err != nil {
		http.Error(w, "Error validating roadmap", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"valid": report.Valid(), "issues": report.Issues}, http.StatusOK)
}
