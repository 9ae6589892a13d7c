package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dzlearn/masar/pkg/models"
	"github.com/dzlearn/masar/pkg/repository"
)

// AssessmentsHandler manages per-step mastery quizzes. An attempt scoring at
// or above the quiz pass score marks the step's mastery check passed.
type AssessmentsHandler struct {
	roadmapRepo    repository.RoadmapRepo
	assessmentRepo repository.AssessmentRepo
	telemetryRepo  repository.TelemetryRepo
}

func NewAssessmentsHandler(rr repository.RoadmapRepo, ar repository.AssessmentRepo, tr repository.TelemetryRepo) *AssessmentsHandler {
	return &AssessmentsHandler{roadmapRepo: rr, assessmentRepo: ar, telemetryRepo: tr}
}

// ownedStep loads the step in the path and enforces that its roadmap belongs
// to the caller.
func (h *AssessmentsHandler) ownedStep(r *http.Request) (*models.RoadmapStep, int) {
	userID := userIDFrom(r)
	if userID <= 0 {
		return nil, http.StatusUnauthorized
	}
	id, err := pathID(r)
	if err != nil {
		return nil, http.StatusBadRequest
	}
	step, err := h.roadmapRepo.GetStepByID(r.Context(), id)
	if err != nil {
		return nil, http.StatusInternalServerError
	}
	if step == nil {
		return nil, http.StatusNotFound
	}
	rm, err := h.roadmapRepo.GetRoadmapByID(r.Context(), step.RoadmapID)
	if err != nil {
		return nil, http.StatusInternalServerError
	}
	if rm == nil || rm.UserID != userID {
		return nil, http.StatusNotFound
	}
	return step, 0
}

type createAssessmentRequest struct {
	Title     string   `json:"title"`
	Questions []string `json:"questions"`
	PassScore float64  `json:"pass_score,omitempty"`
}

func (h *AssessmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	step, code := h.ownedStep(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}

	var req createAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || len(req.Questions) == 0 {
		http.Error(w, "Title and questions are required", http.StatusBadRequest)
		return
	}
	if req.PassScore < 0 || req.PassScore > 1 {
		http.Error(w, "Pass score must be between 0 and 1", http.StatusBadRequest)
		return
	}

	a := &models.Assessment{
		StepID:    step.ID,
		Title:     req.Title,
		Questions: req.Questions,
		PassScore: req.PassScore,
	}
	id, err := h.assessmentRepo.CreateAssessment(r.Context(), a)
	if err != nil {
		http.Error(w, "Error creating assessment", http.StatusInternalServerError)
		return
	}
	a.ID = id
	a.Created = nowMilli()

	writeJSON(w, a, http.StatusCreated)
}

func (h *AssessmentsHandler) ListForStep(w http.ResponseWriter, r *http.Request) {
	step, code := h.ownedStep(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}

	items, err := h.assessmentRepo.ListAssessmentsByStep(r.Context(), step.ID)
	if err != nil {
		http.Error(w, "Error listing assessments", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []models.Assessment{}
	}

	writeJSON(w, map[string]any{"items": items}, http.StatusOK)
}

type attemptRequest struct {
	Score float64 `json:"score"`
}

type attemptResponse struct {
	Attempt       *models.AssessmentAttempt `json:"attempt"`
	MasteryPassed bool                      `json:"mastery_passed"`
}

// Attempt records a self-scored run of the quiz. Scores are fractions in
// [0, 1]; passing flips the step's mastery check.
func (h *AssessmentsHandler) Attempt(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID <= 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid assessment id", http.StatusBadRequest)
		return
	}

	var req attemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if req.Score < 0 || req.Score > 1 {
		http.Error(w, "Score must be between 0 and 1", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	a, err := h.assessmentRepo.GetAssessmentByID(ctx, id)
	if err != nil {
		http.Error(w, "Error loading assessment", http.StatusInternalServerError)
		return
	}
	if a == nil {
		http.Error(w, "Assessment not found", http.StatusNotFound)
		return
	}

	step, err := h.roadmapRepo.GetStepByID(ctx, a.StepID)
	if err != nil || step == nil {
		http.Error(w, "Error loading step", http.StatusInternalServerError)
		return
	}
	rm, err := h.roadmapRepo.GetRoadmapByID(ctx, step.RoadmapID)
	if err != nil {
		http.Error(w, "Error loading roadmap", http.StatusInternalServerError)
		return
	}
	if rm == nil || rm.UserID != userID {
		http.Error(w, "Assessment not found", http.StatusNotFound)
		return
	}

	attempt := &models.AssessmentAttempt{
		AssessmentID: a.ID,
		UserID:       userID,
		Score:        req.Score,
		Passed:       req.Score >= a.PassScore,
	}
	attemptID, err := h.assessmentRepo.CreateAttempt(ctx, attempt)
	if err != nil {
		http.Error(w, "Error recording attempt", http.StatusInternalServerError)
		return
	}
	attempt.ID = attemptID
	attempt.Created = nowMilli()

	if attempt.Passed && !step.MasteryCheckPassed {
		step.MasteryCheckPassed = true
		if err := h.roadmapRepo.UpdateStep(ctx, step); err != nil {
			http.Error(w, "Error updating step", http.StatusInternalServerError)
			return
		}
	}

	activity := &models.UserActivity{
		UserID:   userID,
		Activity: fmt.Sprintf("assessment attempt: %s (score %.2f)", a.Title, req.Score),
	}
	if _, err := h.telemetryRepo.CreateActivity(ctx, activity); err != nil {
		logger.Warn("failed to record assessment activity", "error", err)
	}

	writeJSON(w, attemptResponse{Attempt: attempt, MasteryPassed: step.MasteryCheckPassed}, http.StatusCreated)
}

func (h *AssessmentsHandler) RecentAttempts(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID <= 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}

	items, err := h.assessmentRepo.ListAttemptsByUser(r.Context(), userID, limit)
	if err != nil {
		http.Error(w, "Error listing attempts", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []models.AssessmentAttempt{}
	}

	writeJSON(w, map[string]any{"items": items, "limit": limit}, http.StatusOK)
}
