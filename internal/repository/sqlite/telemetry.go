package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dzlearn/masar/pkg/models"
)

func (r *SQLiteRepo) CreateActivity(ctx context.Context, a *models.UserActivity) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("activity is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO user_activities (user_id, activity, created) VALUES (?, ?, ?)`,
		a.UserID, a.Activity, now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) LastActivityByUser(ctx context.Context, userID int64) (*models.UserActivity, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, user_id, activity, created FROM user_activities WHERE user_id = ? ORDER BY created DESC, id DESC LIMIT 1`, userID)

	var a models.UserActivity
	if err := row.Scan(&a.ID, &a.UserID, &a.Activity, &a.Created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return &a, nil
}

// CreateSnapshot upserts the snapshot for a roadmap and date so that the
// daily snapshot task can run more than once without duplicating rows.
func (r *SQLiteRepo) CreateSnapshot(ctx context.Context, s *models.ProgressSnapshot) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("snapshot is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO progress_snapshots (user_id, roadmap_id, steps_completed, total_steps, snapshot_date, created)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(roadmap_id, snapshot_date) DO UPDATE SET steps_completed = excluded.steps_completed, total_steps = excluded.total_steps`,
		s.UserID, s.RoadmapID, s.StepsCompleted, s.TotalSteps, s.SnapshotDate, now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) ListSnapshotsByUser(ctx context.Context, userID int64, limit int) ([]models.ProgressSnapshot, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := r.conn.QueryRows(ctx, `SELECT id, user_id, roadmap_id, steps_completed, total_steps, snapshot_date, created FROM progress_snapshots WHERE user_id = ? ORDER BY snapshot_date DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ProgressSnapshot
	for rows.Next() {
		var s models.ProgressSnapshot
		if err := rows.Scan(&s.ID, &s.UserID, &s.RoadmapID, &s.StepsCompleted, &s.TotalSteps, &s.SnapshotDate, &s.Created); err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) CreateErrorLog(ctx context.Context, e *models.ErrorLog) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("error log is nil")
	}
	if e.Level == "" {
		e.Level = "error"
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO error_logs (level, message, resolved, resolved_at, created) VALUES (?, ?, ?, NULL, ?)`,
		e.Level, e.Message, boolArg(e.Resolved), now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

// PurgeResolvedErrorLogs deletes resolved entries created before olderThan
// (unix milliseconds) and returns the number removed.
func (r *SQLiteRepo) PurgeResolvedErrorLogs(ctx context.Context, olderThan int64) (int64, error) {
	res, err := r.conn.Exec(ctx, `DELETE FROM error_logs WHERE resolved = 1 AND created < ?`, olderThan)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
