package models

import (
	"encoding/json"
	"time"
)

// Learner levels.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
	LevelExpert       = "expert"
)

// Roadmap statuses.
const (
	RoadmapDraft     = "draft"
	RoadmapActive    = "active"
	RoadmapCompleted = "completed"
	RoadmapArchived  = "archived"
)

// Step statuses.
const (
	StepLocked    = "locked"
	StepActive    = "active"
	StepCompleted = "completed"
	StepSkipped   = "skipped"
)

// AI job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// Resource types.
const (
	ResourceYoutubeVideo    = "youtube_video"
	ResourceYoutubePlaylist = "youtube_playlist"
	ResourceYoutubeTutorial = "youtube_tutorial"
	ResourceArticle         = "article"
	ResourceBook            = "book"
	ResourceEbook           = "ebook"
	ResourceCourse          = "course"
)

// Clarifying question types.
const (
	QuestionSingleChoice   = "single_choice"
	QuestionMultipleChoice = "multiple_choice"
	QuestionText           = "text"
	QuestionScale          = "scale"
	QuestionYesNo          = "yes_no"
)

type User struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name" validate:"required"`
	Email        string `json:"email" db:"email" validate:"required,email"`
	PasswordHash string `json:"password_hash,omitempty" db:"password_hash"`
	Created      int64  `json:"created" db:"created"`
	Updated      int64  `json:"updated" db:"updated"`
}

type LearnerProfile struct {
	ID                 int64          `json:"id" db:"id"`
	UserID             int64          `json:"user_id" db:"user_id"`
	Subject            string         `json:"subject" db:"subject"`
	Level              string         `json:"level" db:"level"`
	Goals              string         `json:"goals,omitempty" db:"goals"`
	WeeklyHours        int            `json:"weekly_hours" db:"weekly_hours"`
	Deadline           *time.Time     `json:"deadline,omitempty" db:"deadline"`
	Language           string         `json:"language" db:"language"`
	AgeRange           string         `json:"age_range,omitempty" db:"age_range"`
	Preferences        map[string]any `json:"preferences,omitempty" db:"preferences"`
	OnboardingComplete bool           `json:"onboarding_complete" db:"onboarding_complete"`
	Created            int64          `json:"created" db:"created"`
	Updated            int64          `json:"updated" db:"updated"`
}

type ClarifyingQuestion struct {
	ID           int64    `json:"id" db:"id"`
	ProfileID    int64    `json:"profile_id" db:"profile_id"`
	QuestionText string   `json:"question_text" db:"question_text"`
	QuestionType string   `json:"question_type" db:"question_type"`
	Options      []string `json:"options,omitempty" db:"options"`
	TargetField  string   `json:"target_field,omitempty" db:"target_field"`
	Ord          int      `json:"ord" db:"ord"`
	IsRequired   bool     `json:"is_required" db:"is_required"`
	Created      int64    `json:"created" db:"created"`
}

type Answer struct {
	ID         int64   `json:"id" db:"id"`
	QuestionID int64   `json:"question_id" db:"question_id"`
	AnswerText string  `json:"answer_text" db:"answer_text"`
	Confidence float64 `json:"confidence" db:"confidence"`
	Created    int64   `json:"created" db:"created"`
}

type Roadmap struct {
	ID                  int64             `json:"id" db:"id"`
	UserID              int64             `json:"user_id" db:"user_id"`
	ProfileID           int64             `json:"profile_id" db:"profile_id"`
	Title               string            `json:"title" db:"title"`
	Description         string            `json:"description,omitempty" db:"description"`
	Status              string            `json:"status" db:"status"`
	TotalEstimatedHours float64           `json:"total_estimated_hours" db:"total_estimated_hours"`
	CompletedHours      float64           `json:"completed_hours" db:"completed_hours"`
	SchemaVersion       string            `json:"schema_version" db:"schema_version"`
	ModelVersions       map[string]string `json:"model_versions,omitempty" db:"model_versions"`
	InputProfileHash    string            `json:"input_profile_hash,omitempty" db:"input_profile_hash"`
	IsPinned            bool              `json:"is_pinned" db:"is_pinned"`
	Created             int64             `json:"created" db:"created"`
	Updated             int64             `json:"updated" db:"updated"`
}

type RoadmapStep struct {
	ID                 int64    `json:"id" db:"id"`
	RoadmapID          int64    `json:"roadmap_id" db:"roadmap_id"`
	Title              string   `json:"title" db:"title"`
	Description        string   `json:"description,omitempty" db:"description"`
	Objectives         []string `json:"objectives,omitempty" db:"objectives"`
	Sequence           int      `json:"sequence" db:"sequence"`
	EstimatedHours     float64  `json:"estimated_hours" db:"estimated_hours"`
	ActualHours        *float64 `json:"actual_hours,omitempty" db:"actual_hours"`
	Status             string   `json:"status" db:"status"`
	IsPinned           bool     `json:"is_pinned" db:"is_pinned"`
	UserNotes          string   `json:"user_notes,omitempty" db:"user_notes"`
	MasteryCheckPassed bool     `json:"mastery_check_passed" db:"mastery_check_passed"`
	PrereqIDs          []int64  `json:"prereq_ids,omitempty" db:"-"`
	Created            int64    `json:"created" db:"created"`
	Updated            int64    `json:"updated" db:"updated"`
}

type StepResource struct {
	ID         int64 `json:"id" db:"id"`
	StepID     int64 `json:"step_id" db:"step_id"`
	ResourceID int64 `json:"resource_id" db:"resource_id"`
	Ord        int   `json:"ord" db:"ord"`
	IsRequired bool  `json:"is_required" db:"is_required"`
}

// Resource difficulty buckets reuse the learner level constants
// (beginner/intermediate/advanced).
type Resource struct {
	ID              int64    `json:"id" db:"id"`
	Title           string   `json:"title" db:"title"`
	TitleAr         string   `json:"title_ar,omitempty" db:"title_ar"`
	Description     string   `json:"description,omitempty" db:"description"`
	ResourceType    string   `json:"resource_type" db:"resource_type"`
	Provider        string   `json:"provider,omitempty" db:"provider"`
	Author          string   `json:"author,omitempty" db:"author"`
	ChannelName     string   `json:"channel_name,omitempty" db:"channel_name"`
	Difficulty      string   `json:"difficulty" db:"difficulty"`
	DurationMinutes int      `json:"duration_minutes,omitempty" db:"duration_minutes"`
	Language        string   `json:"language" db:"language"`
	Tags            []string `json:"tags,omitempty" db:"tags"`
	QualityScore    float64  `json:"quality_score" db:"quality_score"`
	Upvotes         int      `json:"upvotes" db:"upvotes"`
	Downvotes       int      `json:"downvotes" db:"downvotes"`
	IsFree          bool     `json:"is_free" db:"is_free"`
	IsActive        bool     `json:"is_active" db:"is_active"`
	YoutubeVideoID  string   `json:"youtube_video_id,omitempty" db:"youtube_video_id"`
	PlaylistID      string   `json:"youtube_playlist_id,omitempty" db:"youtube_playlist_id"`
	ISBN            string   `json:"isbn,omitempty" db:"isbn"`
	Created         int64    `json:"created" db:"created"`
	Updated         int64    `json:"updated" db:"updated"`
}

type AIJob struct {
	ID           int64  `json:"-" db:"id"`
	PublicID     string `json:"id" db:"public_id"`
	UserID       int64  `json:"user_id" db:"user_id"`
	ProfileID    int64  `json:"profile_id" db:"profile_id"`
	RoadmapID    *int64 `json:"roadmap_id,omitempty" db:"roadmap_id"`
	JobType      string `json:"job_type" db:"job_type"`
	Status       string `json:"status" db:"status"`
	Progress     int    `json:"progress" db:"progress"`
	CurrentStage string `json:"current_stage,omitempty" db:"current_stage"`
	ErrorMessage string `json:"error_message,omitempty" db:"error_message"`
	QueueJobID   int64  `json:"-" db:"queue_job_id"`
	Created      int64  `json:"created" db:"created"`
	Updated      int64  `json:"updated" db:"updated"`
	CompletedAt  *int64 `json:"completed_at,omitempty" db:"completed_at"`
}

type BackgroundJob struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}

type UserActivity struct {
	ID       int64  `json:"id" db:"id"`
	UserID   int64  `json:"user_id" db:"user_id"`
	Activity string `json:"activity" db:"activity"`
	Created  int64  `json:"created" db:"created"`
}

type ProgressSnapshot struct {
	ID             int64  `json:"id" db:"id"`
	UserID         int64  `json:"user_id" db:"user_id"`
	RoadmapID      int64  `json:"roadmap_id" db:"roadmap_id"`
	StepsCompleted int    `json:"steps_completed" db:"steps_completed"`
	TotalSteps     int    `json:"total_steps" db:"total_steps"`
	SnapshotDate   string `json:"snapshot_date" db:"snapshot_date"`
	Created        int64  `json:"created" db:"created"`
}

type ErrorLog struct {
	ID         int64  `json:"id" db:"id"`
	Level      string `json:"level" db:"level"`
	Message    string `json:"message" db:"message"`
	Resolved   bool   `json:"resolved" db:"resolved"`
	ResolvedAt *int64 `json:"resolved_at,omitempty" db:"resolved_at"`
	Created    int64  `json:"created" db:"created"`
}

type Assessment struct {
	ID        int64    `json:"id" db:"id"`
	StepID    int64    `json:"step_id" db:"step_id"`
	Title     string   `json:"title" db:"title"`
	Questions []string `json:"questions,omitempty" db:"questions"`
	PassScore float64  `json:"pass_score" db:"pass_score"`
	Created   int64    `json:"created" db:"created"`
}

type AssessmentAttempt struct {
	ID           int64   `json:"id" db:"id"`
	AssessmentID int64   `json:"assessment_id" db:"assessment_id"`
	UserID       int64   `json:"user_id" db:"user_id"`
	Score        float64 `json:"score" db:"score"`
	Passed       bool    `json:"passed" db:"passed"`
	Created      int64   `json:"created" db:"created"`
}

// Progress returns the completion percentage of a roadmap given its steps,
// rounded to one decimal place.
func (r *Roadmap) Progress(steps []RoadmapStep) float64 {
	if len(steps) == 0 {
		return 0
	}
	done := 0
	for _, s := range steps {
		if s.Status == StepCompleted {
			done++
		}
	}
	return float64(int(float64(done)/float64(len(steps))*1000+0.5)) / 10
}
