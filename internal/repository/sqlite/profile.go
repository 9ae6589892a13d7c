package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dzlearn/masar/pkg/models"
)

func (r *SQLiteRepo) CreateProfile(ctx context.Context, p *models.LearnerProfile) (int64, error) {
	if p == nil {
		return 0, fmt.Errorf("profile is nil")
	}
	if p.Level == "" {
		p.Level = models.LevelBeginner
	}
	if p.Language == "" {
		p.Language = "en"
	}
	if p.WeeklyHours <= 0 {
		p.WeeklyHours = 5
	}

	prefs, err := marshalPrefs(p.Preferences)
	if err != nil {
		return 0, fmt.Errorf("marshal preferences: %w", err)
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO learner_profiles
		(user_id, subject, level, goals, weekly_hours, deadline, language, age_range, preferences, onboarding_complete, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Subject, p.Level, p.Goals, p.WeeklyHours, deadlineArg(p.Deadline), p.Language, p.AgeRange, prefs, boolArg(p.OnboardingComplete), ts, ts)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetProfileByID(ctx context.Context, id int64) (*models.LearnerProfile, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, user_id, subject, level, goals, weekly_hours, deadline, language, age_range, preferences, onboarding_complete, created, updated FROM learner_profiles WHERE id = ?`, id)
	return scanProfile(row)
}

func (r *SQLiteRepo) GetProfileByUserID(ctx context.Context, userID int64) (*models.LearnerProfile, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, user_id, subject, level, goals, weekly_hours, deadline, language, age_range, preferences, onboarding_complete, created, updated FROM learner_profiles WHERE user_id = ?`, userID)
	return scanProfile(row)
}

func scanProfile(row *sql.Row) (*models.LearnerProfile, error) {
	var p models.LearnerProfile
	var deadline sql.NullInt64
	var prefs string
	var onboarding int
	if err := row.Scan(&p.ID, &p.UserID, &p.Subject, &p.Level, &p.Goals, &p.WeeklyHours, &deadline, &p.Language, &p.AgeRange, &prefs, &onboarding, &p.Created, &p.Updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	if deadline.Valid {
		t := time.Unix(deadline.Int64, 0).UTC()
		p.Deadline = &t
	}
	if prefs != "" {
		if err := json.Unmarshal([]byte(prefs), &p.Preferences); err != nil {
			return nil, fmt.Errorf("unmarshal preferences: %w", err)
		}
	}
	p.OnboardingComplete = onboarding != 0

	return &p, nil
}

func (r *SQLiteRepo) UpdateProfile(ctx context.Context, p *models.LearnerProfile) error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}

	prefs, err := marshalPrefs(p.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	_, err = r.conn.Exec(ctx, `UPDATE learner_profiles SET subject = ?, level = ?, goals = ?, weekly_hours = ?, deadline = ?, language = ?, age_range = ?, preferences = ?, onboarding_complete = ?, updated = ? WHERE id = ?`,
		p.Subject, p.Level, p.Goals, p.WeeklyHours, deadlineArg(p.Deadline), p.Language, p.AgeRange, prefs, boolArg(p.OnboardingComplete), now(), p.ID)
	return err
}

func (r *SQLiteRepo) DeleteProfile(ctx context.Context, id int64) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM learner_profiles WHERE id = ?`, id)
	return err
}

func marshalPrefs(prefs map[string]any) (string, error) {
	if prefs == nil {
		return "{}", nil
	}
	b, err := json.Marshal(prefs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func deadlineArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Unix()
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}
