// Package jobs runs the background work queue: asynchronous roadmap
// generation plus the periodic maintenance tasks.
package jobs

import (
	"context"
	"time"

	"github.com/dzlearn/masar/pkg/models"
)

// Queue job types.
const (
	TypeGenerateRoadmap = "roadmap.generate"
)

// Job stages surfaced to clients polling generation status.
const (
	StageInitializing        = "initializing"
	StageNormalizing         = "normalizing"
	StageCheckingUncertainty = "checking_uncertainty"
	StagePlanning            = "planning"
	StageCreatingRoadmap     = "creating_roadmap"
	StageAttachingResources  = "attaching_resources"
	StageValidating          = "validating"
	StageCompleted           = "completed"
	StageNeedsClarification  = "needs_clarification"
	StageFailed              = "failed"
)

// Handler processes one queued job.
type Handler func(ctx context.Context, j *models.BackgroundJob) error

// BackoffDuration returns the linear retry delay for attempt n: one minute
// per attempt already made.
func BackoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * time.Minute
}
