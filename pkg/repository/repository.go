package repository

import (
	"context"

	"github.com/dzlearn/masar/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id int64) error
}

type ProfileRepo interface {
	CreateProfile(ctx context.Context, p *models.LearnerProfile) (int64, error)
	GetProfileByID(ctx context.Context, id int64) (*models.LearnerProfile, error)
	GetProfileByUserID(ctx context.Context, userID int64) (*models.LearnerProfile, error)
	UpdateProfile(ctx context.Context, p *models.LearnerProfile) error
	DeleteProfile(ctx context.Context, id int64) error
}

type QuestionRepo interface {
	CreateQuestion(ctx context.Context, q *models.ClarifyingQuestion) (int64, error)
	GetQuestionByID(ctx context.Context, id int64) (*models.ClarifyingQuestion, error)
	ListQuestionsByProfile(ctx context.Context, profileID int64) ([]models.ClarifyingQuestion, error)
	ListUnansweredByProfile(ctx context.Context, profileID int64) ([]models.ClarifyingQuestion, error)
	DeleteQuestionsByProfile(ctx context.Context, profileID int64) error
	CreateAnswer(ctx context.Context, a *models.Answer) (int64, error)
}

type RoadmapRepo interface {
	// CreateRoadmapGraph persists a roadmap, its steps, prerequisite edges
	// and resource attachments in one transaction.
	CreateRoadmapGraph(ctx context.Context, r *models.Roadmap, steps []models.RoadmapStep, attachments map[int][]models.StepResource) (int64, error)
	GetRoadmapByID(ctx context.Context, id int64) (*models.Roadmap, error)
	ListRoadmapsByUser(ctx context.Context, userID int64) ([]models.Roadmap, error)
	ListActiveRoadmaps(ctx context.Context) ([]models.Roadmap, error)
	UpdateRoadmapStatus(ctx context.Context, id int64, status string) error
	ListSteps(ctx context.Context, roadmapID int64) ([]models.RoadmapStep, error)
	GetStepByID(ctx context.Context, id int64) (*models.RoadmapStep, error)
	UpdateStep(ctx context.Context, s *models.RoadmapStep) error
	ListStepResources(ctx context.Context, stepID int64) ([]models.StepResource, error)
	CountStepResources(ctx context.Context, stepID int64) (int64, error)
}

type ResourceRepo interface {
	CreateResource(ctx context.Context, r *models.Resource) (int64, error)
	GetResourceByID(ctx context.Context, id int64) (*models.Resource, error)
	SearchResources(ctx context.Context, query string, filters map[string]any, limit int) ([]models.Resource, error)
	ListActiveResources(ctx context.Context) ([]models.Resource, error)
	VoteResource(ctx context.Context, id int64, up bool) error
	UpdateQualityScore(ctx context.Context, id int64, score float64) error
}

type AssessmentRepo interface {
	CreateAssessment(ctx context.Context, a *models.Assessment) (int64, error)
	GetAssessmentByID(ctx context.Context, id int64) (*models.Assessment, error)
	ListAssessmentsByStep(ctx context.Context, stepID int64) ([]models.Assessment, error)
	CreateAttempt(ctx context.Context, at *models.AssessmentAttempt) (int64, error)
	ListAttemptsByUser(ctx context.Context, userID int64, limit int) ([]models.AssessmentAttempt, error)
}

type AIJobRepo interface {
	CreateAIJob(ctx context.Context, j *models.AIJob) (int64, error)
	GetAIJobByPublicID(ctx context.Context, publicID string) (*models.AIJob, error)
	UpdateAIJob(ctx context.Context, j *models.AIJob) error
	HasActiveJob(ctx context.Context, profileID int64) (bool, error)
}

type QueueRepo interface {
	Enqueue(ctx context.Context, j *models.BackgroundJob) (int64, error)
	FetchNext(ctx context.Context) (*models.BackgroundJob, error)
	UpdateJob(ctx context.Context, j *models.BackgroundJob) error
	MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error
}

type TelemetryRepo interface {
	CreateActivity(ctx context.Context, a *models.UserActivity) (int64, error)
	LastActivityByUser(ctx context.Context, userID int64) (*models.UserActivity, error)
	CreateSnapshot(ctx context.Context, s *models.ProgressSnapshot) (int64, error)
	ListSnapshotsByUser(ctx context.Context, userID int64, limit int) ([]models.ProgressSnapshot, error)
	CreateErrorLog(ctx context.Context, e *models.ErrorLog) (int64, error)
	PurgeResolvedErrorLogs(ctx context.Context, olderThan int64) (int64, error)
}
