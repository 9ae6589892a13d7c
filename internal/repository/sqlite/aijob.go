package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dzlearn/masar/pkg/models"
)

func (r *SQLiteRepo) CreateAIJob(ctx context.Context, j *models.AIJob) (int64, error) {
	if j == nil {
		return 0, fmt.Errorf("job is nil")
	}
	if j.PublicID == "" {
		return 0, fmt.Errorf("job public id is empty")
	}
	if j.Status == "" {
		j.Status = models.JobPending
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO ai_jobs
		(public_id, user_id, profile_id, roadmap_id, job_type, status, progress, current_stage, error_message, queue_job_id, created, updated, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		j.PublicID, j.UserID, j.ProfileID, nullableID(j.RoadmapID), j.JobType, j.Status, j.Progress, j.CurrentStage, j.ErrorMessage, j.QueueJobID, ts, ts)
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	j.ID = id

	return id, nil
}

func (r *SQLiteRepo) GetAIJobByPublicID(ctx context.Context, publicID string) (*models.AIJob, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, public_id, user_id, profile_id, roadmap_id, job_type, status, progress, current_stage, error_message, queue_job_id, created, updated, completed_at FROM ai_jobs WHERE public_id = ?`, publicID)

	var j models.AIJob
	var roadmapID, completedAt sql.NullInt64
	if err := row.Scan(&j.ID, &j.PublicID, &j.UserID, &j.ProfileID, &roadmapID, &j.JobType, &j.Status, &j.Progress, &j.CurrentStage, &j.ErrorMessage, &j.QueueJobID, &j.Created, &j.Updated, &completedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	if roadmapID.Valid {
		j.RoadmapID = &roadmapID.Int64
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Int64
	}

	return &j, nil
}

func (r *SQLiteRepo) UpdateAIJob(ctx context.Context, j *models.AIJob) error {
	if j == nil {
		return fmt.Errorf("job is nil")
	}

	var completed any
	if j.CompletedAt != nil {
		completed = *j.CompletedAt
	}

	_, err := r.conn.Exec(ctx, `UPDATE ai_jobs SET roadmap_id = ?, status = ?, progress = ?, current_stage = ?, error_message = ?, queue_job_id = ?, updated = ?, completed_at = ? WHERE id = ?`,
		nullableID(j.RoadmapID), j.Status, j.Progress, j.CurrentStage, j.ErrorMessage, j.QueueJobID, now(), completed, j.ID)
	return err
}

// HasActiveJob reports whether the profile has a generation job that is still
// pending or running.
func (r *SQLiteRepo) HasActiveJob(ctx context.Context, profileID int64) (bool, error) {
	var n int64
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM ai_jobs WHERE profile_id = ? AND status IN (?, ?)`, profileID, models.JobPending, models.JobRunning).Scan(&n)
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
