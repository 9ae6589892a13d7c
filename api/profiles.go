package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dzlearn/masar/internal/orchestrator"
	"github.com/dzlearn/masar/pkg/models"
	"github.com/dzlearn/masar/pkg/repository"
	"github.com/gorilla/mux"
)

type ProfilesHandler struct {
	profileRepo  repository.ProfileRepo
	questionRepo repository.QuestionRepo
	orc          *orchestrator.Orchestrator
}

func NewProfilesHandler(pr repository.ProfileRepo, qr repository.QuestionRepo, orc *orchestrator.Orchestrator) *ProfilesHandler {
	return &ProfilesHandler{profileRepo: pr, questionRepo: qr, orc: orc}
}

// profileOf resolves the caller's learner profile from the JWT context.
func (h *ProfilesHandler) profileOf(r *http.Request) (*models.LearnerProfile, int) {
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

func (h *ProfilesHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	p, code := h.profileOf(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}
	writeJSON(w, p, http.StatusOK)
}

type updateProfileRequest struct {
	Subject            *string        `json:"subject,omitempty"`
	Level              *string        `json:"level,omitempty"`
	Goals              *string        `json:"goals,omitempty"`
	WeeklyHours        *int           `json:"weekly_hours,omitempty"`
	Deadline           *time.Time     `json:"deadline,omitempty"`
	Language           *string        `json:"language,omitempty"`
	AgeRange           *string        `json:"age_range,omitempty"`
	Preferences        map[string]any `json:"preferences,omitempty"`
	OnboardingComplete *bool          `json:"onboarding_complete,omitempty"`
}

// UpdateMe applies a partial update to the caller's profile. Field-level
// validation problems come back as a 400 with a "problems" list.
func (h *ProfilesHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	p, code := h.profileOf(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Subject != nil {
		p.Subject = strings.TrimSpace(*req.Subject)
	}
	if req.Level != nil {
		p.Level = *req.Level
	}
	if req.Goals != nil {
		p.Goals = *req.Goals
	}
	if req.WeeklyHours != nil {
		p.WeeklyHours = *req.WeeklyHours
	}
	if req.Deadline != nil {
		p.Deadline = req.Deadline
	}
	if req.Language != nil {
		p.Language = *req.Language
	}
	if req.AgeRange != nil {
		p.AgeRange = *req.AgeRange
	}
	if req.Preferences != nil {
		p.Preferences = req.Preferences
	}
	if req.OnboardingComplete != nil {
		p.OnboardingComplete = *req.OnboardingComplete
	}

	if problems := orchestrator.NewNormalizer().ValidateProfile(p); len(problems) > 0 {
		writeJSON(w, map[string]any{"problems": problems}, http.StatusBadRequest)
		return
	}

	if err := h.profileRepo.UpdateProfile(r.Context(), p); err != nil {
		http.Error(w, "Error updating profile", http.StatusInternalServerError)
		return
	}

	writeJSON(w, p, http.StatusOK)
}

func (h *ProfilesHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	p, code := h.profileOf(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}

	questions, err := h.questionRepo.ListUnansweredByProfile(r.Context(), p.ID)
	if err != nil {
		http.Error(w, "Error listing questions", http.StatusInternalServerError)
		return
	}
	if questions == nil {
		questions = []models.ClarifyingQuestion{}
	}

	writeJSON(w, map[string]any{"items": questions}, http.StatusOK)
}

type answerRequest struct {
	AnswerText string  `json:"answer_text"`
	Confidence float64 `json:"confidence,omitempty"`
}

type answerResponse struct {
	Profile     *models.LearnerProfile      `json:"profile"`
	Questions   []models.ClarifyingQuestion `json:"clarifying_questions"`
	Uncertainty float64                     `json:"uncertainty"`
}

// AnswerQuestion records an answer, folds it into the profile and, when the
// answer changed the subject or language, regenerates the open questions.
func (h *ProfilesHandler) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	p, code := h.profileOf(r)
	if code != 0 {
		http.Error(w, http.StatusText(code), code)
		return
	}

	questionID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || questionID <= 0 {
		http.Error(w, "Invalid question id", http.StatusBadRequest)
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	req.AnswerText = strings.TrimSpace(req.AnswerText)
	if req.AnswerText == "" {
		http.Error(w, "Missing answer_text", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	question, err := h.questionRepo.GetQuestionByID(ctx, questionID)
	if err != nil {
		http.Error(w, "Error loading question", http.StatusInternalServerError)
		return
	}
	if question == nil || question.ProfileID != p.ID {
		http.Error(w, "Question not found", http.StatusNotFound)
		return
	}

	answer := models.Answer{
		QuestionID: questionID,
		AnswerText: req.AnswerText,
		Confidence: req.Confidence,
	}
	if _, err := h.questionRepo.CreateAnswer(ctx, &answer); err != nil {
		http.Error(w, "Error storing answer", http.StatusInternalServerError)
		return
	}

	questions := map[int64]models.ClarifyingQuestion{questionID: *question}
	if err := h.orc.ApplyAnswers(ctx, p, []models.Answer{answer}, questions); err != nil {
		http.Error(w, "Error applying answer", http.StatusInternalServerError)
		return
	}

	resp := answerResponse{Profile: p}
	if question.TargetField == "subject" || question.TargetField == "language" {
		open, uncertainty, err := h.orc.RefreshQuestions(ctx, p)
		if err != nil {
			http.Error(w, "Error refreshing questions", http.StatusInternalServerError)
			return
		}
		resp.Questions = open
		resp.Uncertainty = uncertainty
	} else {
		open, err := h.questionRepo.ListUnansweredByProfile(ctx, p.ID)
		if err != nil {
			http.Error(w, "Error listing questions", http.StatusInternalServerError)
			return
		}
		resp.Questions = open
	}
	if resp.Questions == nil {
		resp.Questions = []models.ClarifyingQuestion{}
	}

	writeJSON(w, resp, http.StatusOK)
}
