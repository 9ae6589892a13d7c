package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dzlearn/masar/pkg/models"
)

func (r *SQLiteRepo) CreateQuestion(ctx context.Context, q *models.ClarifyingQuestion) (int64, error) {
	if q == nil {
		return 0, fmt.Errorf("question is nil")
	}
	if q.QuestionType == "" {
		q.QuestionType = models.QuestionText
	}

	opts, err := marshalStrings(q.Options)
	if err != nil {
		return 0, fmt.Errorf("marshal options: %w", err)
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO clarifying_questions
		(profile_id, question_text, question_type, options, target_field, ord, is_required, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ProfileID, q.QuestionText, q.QuestionType, opts, q.TargetField, q.Ord, boolArg(q.IsRequired), now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetQuestionByID(ctx context.Context, id int64) (*models.ClarifyingQuestion, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, profile_id, question_text, question_type, options, target_field, ord, is_required, created FROM clarifying_questions WHERE id = ?`, id)

	q, err := scanQuestion(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return q, err
}

func (r *SQLiteRepo) ListQuestionsByProfile(ctx context.Context, profileID int64) ([]models.ClarifyingQuestion, error) {
	return r.listQuestions(ctx, `SELECT id, profile_id, question_text, question_type, options, target_field, ord, is_required, created FROM clarifying_questions WHERE profile_id = ? ORDER BY ord, id`, profileID)
}

func (r *SQLiteRepo) ListUnansweredByProfile(ctx context.Context, profileID int64) ([]models.ClarifyingQuestion, error) {
	return r.listQuestions(ctx, `SELECT q.id, q.profile_id, q.question_text, q.question_type, q.options, q.target_field, q.ord, q.is_required, q.created
		FROM clarifying_questions q
		LEFT JOIN answers a ON a.question_id = q.id
		WHERE q.profile_id = ? AND a.id IS NULL
		ORDER BY q.ord, q.id`, profileID)
}

func (r *SQLiteRepo) listQuestions(ctx context.Context, query string, args ...any) ([]models.ClarifyingQuestion, error) {
	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ClarifyingQuestion
	for rows.Next() {
		q, err := scanQuestion(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}

	return out, rows.Err()
}

func scanQuestion(scan func(dest ...any) error) (*models.ClarifyingQuestion, error) {
	var q models.ClarifyingQuestion
	var opts string
	var required int
	if err := scan(&q.ID, &q.ProfileID, &q.QuestionText, &q.QuestionType, &opts, &q.TargetField, &q.Ord, &required, &q.Created); err != nil {
		return nil, err
	}

	if opts != "" && opts != "[]" {
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	q.IsRequired = required != 0

	return &q, nil
}

func (r *SQLiteRepo) DeleteQuestionsByProfile(ctx context.Context, profileID int64) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM clarifying_questions WHERE profile_id = ?`, profileID)
	return err
}

func (r *SQLiteRepo) CreateAnswer(ctx context.Context, a *models.Answer) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("answer is nil")
	}
	if a.Confidence <= 0 {
		a.Confidence = 1.0
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO answers (question_id, answer_text, confidence, created) VALUES (?, ?, ?, ?)`,
		a.QuestionID, a.AnswerText, a.Confidence, now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func marshalStrings(ss []string) (string, error) {
	if ss == nil {
		return "[]", nil
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
