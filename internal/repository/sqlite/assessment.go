package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dzlearn/masar/pkg/models"
)

func (r *SQLiteRepo) CreateAssessment(ctx context.Context, a *models.Assessment) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("assessment is nil")
	}
	if a.PassScore <= 0 {
		a.PassScore = 0.7
	}

	questions, err := marshalStrings(a.Questions)
	if err != nil {
		return 0, fmt.Errorf("marshal questions: %w", err)
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO assessments (step_id, title, questions, pass_score, created) VALUES (?, ?, ?, ?, ?)`,
		a.StepID, a.Title, questions, a.PassScore, now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetAssessmentByID(ctx context.Context, id int64) (*models.Assessment, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, step_id, title, questions, pass_score, created FROM assessments WHERE id = ?`, id)

	a, err := scanAssessment(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return a, nil
}

func (r *SQLiteRepo) ListAssessmentsByStep(ctx context.Context, stepID int64) ([]models.Assessment, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, step_id, title, questions, pass_score, created FROM assessments WHERE step_id = ? ORDER BY id`, stepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}

	return out, rows.Err()
}

func scanAssessment(scan func(dest ...any) error) (*models.Assessment, error) {
	var a models.Assessment
	var questions string
	if err := scan(&a.ID, &a.StepID, &a.Title, &questions, &a.PassScore, &a.Created); err != nil {
		return nil, err
	}

	if questions != "" && questions != "[]" {
		if err := json.Unmarshal([]byte(questions), &a.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions: %w", err)
		}
	}

	return &a, nil
}

func (r *SQLiteRepo) CreateAttempt(ctx context.Context, at *models.AssessmentAttempt) (int64, error) {
	if at == nil {
		return 0, fmt.Errorf("attempt is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO assessment_attempts (assessment_id, user_id, score, passed, created) VALUES (?, ?, ?, ?, ?)`,
		at.AssessmentID, at.UserID, at.Score, boolArg(at.Passed), now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) ListAttemptsByUser(ctx context.Context, userID int64, limit int) ([]models.AssessmentAttempt, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.conn.QueryRows(ctx, `SELECT id, assessment_id, user_id, score, passed, created FROM assessment_attempts WHERE user_id = ? ORDER BY created DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AssessmentAttempt
	for rows.Next() {
		var at models.AssessmentAttempt
		var passed int
		if err := rows.Scan(&at.ID, &at.AssessmentID, &at.UserID, &at.Score, &passed, &at.Created); err != nil {
			return nil, err
		}
		at.Passed = passed != 0
		out = append(out, at)
	}

	return out, rows.Err()
}
