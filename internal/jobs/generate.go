package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dzlearn/masar/internal/orchestrator"
	"github.com/dzlearn/masar/pkg/models"
	"github.com/dzlearn/masar/pkg/repository"
)

// GeneratePayload is the queue payload for a roadmap generation job.
type GeneratePayload struct {
	JobID     string `json:"job_id"`
	UserID    int64  `json:"user_id"`
	ProfileID int64  `json:"profile_id"`
}

// stageNames maps pipeline stages onto the names clients see when polling.
var stageNames = map[string]string{
	orchestrator.StageNormalize:          StageNormalizing,
	orchestrator.StageUncertainty:        StageCheckingUncertainty,
	orchestrator.StagePlanning:           StagePlanning,
	orchestrator.StageCreating:           StageCreatingRoadmap,
	orchestrator.StageResources:          StageAttachingResources,
	orchestrator.StageValidation:         StageValidating,
	orchestrator.StageComplete:           StageCompleted,
	orchestrator.StageNeedsClarification: StageNeedsClarification,
}

// GenerateStore is the persistence surface of the generation handler.
type GenerateStore interface {
	repository.ProfileRepo
	repository.AIJobRepo
	repository.TelemetryRepo
}

// NewGenerateHandler builds the handler for roadmap generation jobs. It
// tracks progress on the ai_jobs row so clients can poll, and lets the
// worker pool retry transient failures.
func NewGenerateHandler(store GenerateStore, orc *orchestrator.Orchestrator, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, j *models.BackgroundJob) error {
		var payload GeneratePayload
		if err := json.Unmarshal(j.Payload, &payload); err != nil {
			return fmt.Errorf("decode generate payload: %w", err)
		}

		aiJob, err := store.GetAIJobByPublicID(ctx, payload.JobID)
		if err != nil {
			return fmt.Errorf("load ai job %s: %w", payload.JobID, err)
		}
		if aiJob == nil {
			// the tracking row is gone, retrying cannot help
			logger.Warn("generation job has no tracking row", "job_id", payload.JobID)
			return nil
		}
		if aiJob.Status == models.JobCancelled {
			logger.Info("skipping cancelled generation job", "job_id", payload.JobID)
			return nil
		}

		aiJob.Status = models.JobRunning
		aiJob.CurrentStage = StageInitializing
		aiJob.Progress = 0
		aiJob.ErrorMessage = ""
		if err := store.UpdateAIJob(ctx, aiJob); err != nil {
			return fmt.Errorf("mark job running: %w", err)
		}

		profile, err := store.GetProfileByID(ctx, payload.ProfileID)
		if err != nil {
			return failGeneration(ctx, store, aiJob, j, fmt.Errorf("load profile %d: %w", payload.ProfileID, err), logger)
		}
		if profile == nil {
			return failGeneration(ctx, store, aiJob, j, fmt.Errorf("profile %d not found", payload.ProfileID), logger)
		}

		result, err := orc.Run(ctx, profile, func(stage string, progress int) {
			aiJob.CurrentStage = stageNames[stage]
			aiJob.Progress = progress
			if upErr := store.UpdateAIJob(ctx, aiJob); upErr != nil {
				logger.Warn("progress update failed", "job_id", aiJob.PublicID, "err", upErr)
			}
		})
		if err != nil {
			return failGeneration(ctx, store, aiJob, j, err, logger)
		}

		now := time.Now().UTC().UnixMilli()
		aiJob.Status = models.JobCompleted
		aiJob.Progress = 100
		aiJob.CompletedAt = &now
		if result.Stage == orchestrator.StageNeedsClarification {
			aiJob.CurrentStage = StageNeedsClarification
		} else {
			aiJob.CurrentStage = StageCompleted
			if result.Roadmap != nil {
				aiJob.RoadmapID = &result.Roadmap.ID
			}
		}

		if err := store.UpdateAIJob(ctx, aiJob); err != nil {
			return fmt.Errorf("mark job completed: %w", err)
		}
		return nil
	}
}

// failGeneration records the failure on the tracking row and hands the error
// back to the worker pool. The row flips to failed only once the queue job is
// out of attempts; until then it stays running for the next retry.
func failGeneration(ctx context.Context, store GenerateStore, aiJob *models.AIJob, j *models.BackgroundJob, cause error, logger *slog.Logger) error {
	aiJob.ErrorMessage = cause.Error()

	if j.Attempts+1 >= j.MaxAttempts {
		now := time.Now().UTC().UnixMilli()
		aiJob.Status = models.JobFailed
		aiJob.CurrentStage = StageFailed
		aiJob.CompletedAt = &now

		if _, logErr := store.CreateErrorLog(ctx, &models.ErrorLog{
			Level:   "error",
			Message: fmt.Sprintf("roadmap generation %s failed permanently: %v", aiJob.PublicID, cause),
		}); logErr != nil {
			logger.Warn("error log write failed", "err", logErr)
		}
	}

	if upErr := store.UpdateAIJob(ctx, aiJob); upErr != nil {
		logger.Warn("job failure update failed", "job_id", aiJob.PublicID, "err", upErr)
	}
	return cause
}
