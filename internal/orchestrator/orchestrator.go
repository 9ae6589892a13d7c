// Package orchestrator implements the roadmap generation pipeline: profile
// normalization, uncertainty scoring, planning, resource attachment and
// validation.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dzlearn/masar/internal/llm"
	"github.com/dzlearn/masar/internal/resources"
	"github.com/dzlearn/masar/pkg/models"
	"github.com/dzlearn/masar/pkg/repository"
)

// Pipeline stages in execution order. NeedsClarification and Failed are the
// alternative terminals.
const (
	StageNormalize          = "normalize"
	StageUncertainty        = "uncertainty"
	StageNeedsClarification = "needs_clarification"
	StagePlanning           = "planning"
	StageCreating           = "creating"
	StageResources          = "resources"
	StageValidation         = "validation"
	StageComplete           = "complete"
	StageFailed             = "failed"
)

// Progress percentages persisted onto the job row per stage.
var StageProgress = map[string]int{
	StageNormalize:   10,
	StageUncertainty: 25,
	StagePlanning:    40,
	StageCreating:    60,
	StageResources:   80,
	StageValidation:  90,
	StageComplete:    100,
}

// ClarificationThreshold is the uncertainty above which the pipeline stops
// to ask clarifying questions instead of planning.
const ClarificationThreshold = 0.5

// Store is the persistence surface the pipeline needs.
type Store interface {
	repository.ProfileRepo
	repository.QuestionRepo
	repository.RoadmapRepo
}

// ProgressFunc receives stage transitions. May be nil for synchronous runs.
type ProgressFunc func(stage string, progress int)

// Result is the outcome of one pipeline run. Either Roadmap or Questions is
// set; Questions means the profile needs clarification first.
type Result struct {
	Stage       string                      `json:"stage"`
	Uncertainty float64                     `json:"uncertainty"`
	Roadmap     *models.Roadmap             `json:"roadmap,omitempty"`
	Steps       []models.RoadmapStep        `json:"steps,omitempty"`
	Questions   []models.ClarifyingQuestion `json:"clarifying_questions,omitempty"`
	Report      Report                      `json:"validation,omitempty"`
	UsedLLM     bool                        `json:"used_llm"`
}

// Orchestrator sequences the pipeline components. The LLM engine is
// optional; when absent or failing, the rule-based planner produces the
// roadmap.
type Orchestrator struct {
	store     Store
	retriever *resources.Retriever
	engine    *llm.Engine
	logger    *slog.Logger

	normalizer *Normalizer
	scorer     *Scorer
	planner    *Planner
	validator  *Validator
}

func New(store Store, retriever *resources.Retriever, engine *llm.Engine, logger *slog.Logger) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	planner, err := NewPlanner()
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		store:      store,
		retriever:  retriever,
		engine:     engine,
		logger:     logger,
		normalizer: NewNormalizer(),
		scorer:     NewScorer(),
		planner:    planner,
		validator:  NewValidator(),
	}, nil
}

// Run executes the full pipeline for a profile. Roadmap, steps, prerequisite
// edges and resource attachments are persisted in one transaction; a failure
// partway leaves no partial state.
func (o *Orchestrator) Run(ctx context.Context, profile *models.LearnerProfile, progress ProgressFunc) (*Result, error) {
	report := func(stage string) {
		if progress != nil {
			progress(stage, StageProgress[stage])
		}
	}

	report(StageNormalize)
	if errs := o.normalizer.ValidateProfile(profile); len(errs) > 0 {
		return nil, fmt.Errorf("profile validation failed: %s", strings.Join(errs, "; "))
	}
	np, err := o.normalizer.Normalize(profile)
	if err != nil {
		return nil, err
	}

	report(StageUncertainty)
	uncertainty := o.scorer.Uncertainty(profile)

	if uncertainty > ClarificationThreshold {
		questions, err := o.replaceQuestions(ctx, profile, uncertainty)
		if err != nil {
			return nil, err
		}
		if progress != nil {
			progress(StageNeedsClarification, 100)
		}
		return &Result{Stage: StageNeedsClarification, Uncertainty: uncertainty, Questions: questions}, nil
	}

	report(StagePlanning)
	plan, modelVersion, usedLLM := o.buildPlan(ctx, profile, np)
	if len(plan) == 0 {
		return nil, fmt.Errorf("failed to generate roadmap plan")
	}

	report(StageCreating)
	rm, steps := o.assemble(profile, np, plan, modelVersion)

	report(StageResources)
	attachments := o.gatherAttachments(ctx, profile, plan)

	roadmapID, err := o.store.CreateRoadmapGraph(ctx, rm, steps, attachments)
	if err != nil {
		return nil, fmt.Errorf("persist roadmap: %w", err)
	}

	report(StageValidation)
	stored, err := o.store.ListSteps(ctx, roadmapID)
	if err != nil {
		return nil, fmt.Errorf("reload steps: %w", err)
	}
	counts := make(map[int64]int64, len(stored))
	for _, s := range stored {
		n, err := o.store.CountStepResources(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("count step resources: %w", err)
		}
		counts[s.ID] = n
	}
	validation := o.validator.Validate(rm, stored, profile, counts)
	if !validation.Valid() {
		// advisory only; creation already happened
		o.logger.Warn("roadmap validation reported errors",
			"roadmap_id", roadmapID, "errors", len(validation.Errors()), "warnings", len(validation.Warnings()))
	}

	report(StageComplete)
	return &Result{
		Stage:       StageComplete,
		Uncertainty: uncertainty,
		Roadmap:     rm,
		Steps:       stored,
		Report:      validation,
		UsedLLM:     usedLLM,
	}, nil
}

// replaceQuestions regenerates the profile's clarifying questions.
func (o *Orchestrator) replaceQuestions(ctx context.Context, profile *models.LearnerProfile, uncertainty float64) ([]models.ClarifyingQuestion, error) {
	count := o.scorer.RequiredQuestionCount(uncertainty)
	questions := o.scorer.GenerateQuestions(profile, count)

	if err := o.store.DeleteQuestionsByProfile(ctx, profile.ID); err != nil {
		return nil, fmt.Errorf("clear old questions: %w", err)
	}
	for i := range questions {
		id, err := o.store.CreateQuestion(ctx, &questions[i])
		if err != nil {
			return nil, fmt.Errorf("persist question: %w", err)
		}
		questions[i].ID = id
	}

	return questions, nil
}

// buildPlan tries the LLM engine first and falls back to the rule-based
// planner on any failure.
func (o *Orchestrator) buildPlan(ctx context.Context, profile *models.LearnerProfile, np *NormalizedProfile) ([]PlannedStep, string, bool) {
	if o.engine != nil && o.engine.Enabled() {
		generated, err := o.engine.GenerateRoadmap(ctx, llmInput(profile, np))
		if err != nil {
			o.logger.Warn("llm generation failed, using rule-based planner", "error", err)
		} else if plan := fromGenerated(generated); len(plan) > 0 {
			return plan, "llm", true
		}
	}

	return o.planner.Plan(np), "rule-based", false
}

func llmInput(profile *models.LearnerProfile, np *NormalizedProfile) llm.ProfileInput {
	deadline := ""
	if np.Deadline != nil {
		deadline = np.Deadline.Format("2006-01-02")
	}
	return llm.ProfileInput{
		Subject:            profile.Subject,
		Level:              np.LevelCanonical,
		Goals:              profile.Goals,
		WeeklyHours:        profile.WeeklyHours,
		Deadline:           deadline,
		PreferredResources: strings.Join(resources.PreferredTypes(profile.Preferences), ", "),
		Language:           profile.Language,
	}
}

// fromGenerated converts a model-produced roadmap into planned steps. Model
// output declares no prerequisite edges, so steps chain sequentially.
func fromGenerated(g *llm.GeneratedRoadmap) []PlannedStep {
	out := make([]PlannedStep, len(g.Steps))
	for i, s := range g.Steps {
		hours := s.EstimatedHours
		if hours < 1 {
			hours = 1
		}
		step := PlannedStep{
			GraphID:     i + 1,
			Title:       s.Title,
			Description: s.Description,
			Topics:      s.Topics,
			Objectives:  s.Objectives,
			Sequence:    i + 1,
			Hours:       hours,
		}
		if i > 0 {
			step.Prereqs = []int{i}
		}
		out[i] = step
	}
	return out
}

// assemble maps the plan onto persistable models. Step prerequisite IDs are
// expressed as sequences; edges pointing at steps dropped by level filtering
// are discarded.
func (o *Orchestrator) assemble(profile *models.LearnerProfile, np *NormalizedProfile, plan []PlannedStep, modelVersion string) (*models.Roadmap, []models.RoadmapStep) {
	rm := &models.Roadmap{
		UserID:              profile.UserID,
		ProfileID:           profile.ID,
		Title:               "Learning Path: " + profile.Subject,
		Description:         "Personalized roadmap for learning " + profile.Subject,
		Status:              models.RoadmapActive,
		TotalEstimatedHours: TotalHours(plan),
		SchemaVersion:       "1.0",
		ModelVersions:       map[string]string{"planner": PlannerVersion, "llm": modelVersion},
		InputProfileHash:    np.Hash,
	}

	seqByGraphID := make(map[int]int, len(plan))
	for _, p := range plan {
		seqByGraphID[p.GraphID] = p.Sequence
	}

	steps := make([]models.RoadmapStep, len(plan))
	for i, p := range plan {
		var prereqSeqs []int64
		for _, graphID := range p.Prereqs {
			if seq, ok := seqByGraphID[graphID]; ok {
				prereqSeqs = append(prereqSeqs, int64(seq))
			}
		}

		steps[i] = models.RoadmapStep{
			Title:          p.Title,
			Description:    p.Description,
			Objectives:     p.Objectives,
			Sequence:       p.Sequence,
			EstimatedHours: p.Hours,
			PrereqIDs:      prereqSeqs,
		}
	}

	return rm, steps
}

// gatherAttachments searches the catalog per step and keeps the top ranked
// resources, first one required. Search failures on a single step degrade to
// no attachments for that step.
func (o *Orchestrator) gatherAttachments(ctx context.Context, profile *models.LearnerProfile, plan []PlannedStep) map[int][]models.StepResource {
	preferred := resources.PreferredTypes(profile.Preferences)

	attachments := make(map[int][]models.StepResource)
	for _, p := range plan {
		top, err := o.retriever.TopForStep(ctx, p.Title, p.Sequence, preferred)
		if err != nil {
			o.logger.Warn("resource search failed for step", "step", p.Title, "error", err)
			continue
		}
		for i, res := range top {
			attachments[p.Sequence] = append(attachments[p.Sequence], models.StepResource{
				ResourceID: res.ID,
				Ord:        i,
				IsRequired: i == 0,
			})
		}
	}

	return attachments
}

// ApplyAnswers folds clarifying-question answers back into the profile and
// persists it. Unknown target fields land in the preferences map.
func (o *Orchestrator) ApplyAnswers(ctx context.Context, profile *models.LearnerProfile, answers []models.Answer, questions map[int64]models.ClarifyingQuestion) error {
	for _, a := range answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			continue
		}

		switch q.TargetField {
		case "subject":
			profile.Subject = a.AnswerText
		case "level":
			profile.Level = o.normalizer.normalizeLevel(a.AnswerText)
		case "goals":
			if profile.Goals != "" {
				profile.Goals += "\n"
			}
			profile.Goals += a.AnswerText
		case "":
			// nothing to update
		default:
			if profile.Preferences == nil {
				profile.Preferences = make(map[string]any)
			}
			profile.Preferences[q.TargetField] = a.AnswerText
		}
	}

	return o.store.UpdateProfile(ctx, profile)
}

// RefreshQuestions rescores the profile and rebuilds its clarifying
// questions. When uncertainty has dropped to the threshold or below the
// stale questions are cleared and none are generated.
func (o *Orchestrator) RefreshQuestions(ctx context.Context, profile *models.LearnerProfile) ([]models.ClarifyingQuestion, float64, error) {
	uncertainty := o.scorer.Uncertainty(profile)
	if uncertainty <= ClarificationThreshold {
		if err := o.store.DeleteQuestionsByProfile(ctx, profile.ID); err != nil {
			return nil, uncertainty, fmt.Errorf("clear questions: %w", err)
		}
		return nil, uncertainty, nil
	}

	questions, err := o.replaceQuestions(ctx, profile, uncertainty)
	if err != nil {
		return nil, uncertainty, err
	}
	return questions, uncertainty, nil
}

// Estimate is a completion-time projection without creating a roadmap.
type Estimate struct {
	TotalHours       float64 `json:"total_hours"`
	Weeks            float64 `json:"weeks"`
	Months           float64 `json:"months"`
	WeeklyCommitment int     `json:"weekly_commitment"`
}

// EstimateCompletion projects how long the plan would take at the profile's
// weekly pace.
func (o *Orchestrator) EstimateCompletion(profile *models.LearnerProfile) (*Estimate, error) {
	if profile.WeeklyHours <= 0 {
		return nil, fmt.Errorf("profile has no weekly hours")
	}

	np, err := o.normalizer.Normalize(profile)
	if err != nil {
		return nil, err
	}

	total := TotalHours(o.planner.Plan(np))
	weeks := total / float64(profile.WeeklyHours)

	return &Estimate{
		TotalHours:       total,
		Weeks:            math.Round(weeks*10) / 10,
		Months:           math.Round(weeks/4*10) / 10,
		WeeklyCommitment: profile.WeeklyHours,
	}, nil
}

// ValidateExisting re-runs validation over a persisted roadmap.
func (o *Orchestrator) ValidateExisting(ctx context.Context, rm *models.Roadmap) (Report, error) {
	steps, err := o.store.ListSteps(ctx, rm.ID)
	if err != nil {
		return Report{}, fmt.Errorf("load steps: %w", err)
	}

	var profile *models.LearnerProfile
	if rm.ProfileID != 0 {
		profile, err = o.store.GetProfileByID(ctx, rm.ProfileID)
		if err != nil {
			return Report{}, fmt.Errorf("load profile: %w", err)
		}
	}

	counts := make(map[int64]int64, len(steps))
	for _, s := range steps {
		n, err := o.store.CountStepResources(ctx, s.ID)
		if err != nil {
			return Report{}, fmt.Errorf("count step resources: %w", err)
		}
		counts[s.ID] = n
	}

	return o.validator.Validate(rm, steps, profile, counts), nil
}

// Validator exposes step-move checks to the API layer.
func (o *Orchestrator) Validator() *Validator {
	return o.validator
}

func nowTime() time.Time {
	return time.Now().UTC()
}
