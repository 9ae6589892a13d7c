package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dzlearn/masar/pkg/models"
)

// CreateRoadmapGraph persists a roadmap together with its steps, prerequisite
// edges and resource attachments in a single transaction. Prerequisites and
// attachments are keyed by step sequence because step IDs are only known after
// insert. The step with the lowest sequence is stored as active, the rest
// locked.
func (r *SQLiteRepo) CreateRoadmapGraph(ctx context.Context, rm *models.Roadmap, steps []models.RoadmapStep, attachments map[int][]models.StepResource) (int64, error) {
	if rm == nil {
		return 0, fmt.Errorf("roadmap is nil")
	}
	if len(steps) == 0 {
		return 0, fmt.Errorf("roadmap has no steps")
	}

	tx, err := r.conn.GetConn().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ts := now()
	if rm.Status == "" {
		rm.Status = models.RoadmapActive
	}
	if rm.SchemaVersion == "" {
		rm.SchemaVersion = "1.0"
	}

	versions, err := json.Marshal(orEmptyMap(rm.ModelVersions))
	if err != nil {
		return 0, fmt.Errorf("marshal model versions: %w", err)
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO roadmaps
		(user_id, profile_id, title, description, status, total_estimated_hours, completed_hours, schema_version, model_versions, input_profile_hash, is_pinned, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rm.UserID, rm.ProfileID, rm.Title, rm.Description, rm.Status, rm.TotalEstimatedHours, rm.CompletedHours, rm.SchemaVersion, string(versions), rm.InputProfileHash, boolArg(rm.IsPinned), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("insert roadmap: %w", err)
	}
	roadmapID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	minSeq := steps[0].Sequence
	for _, s := range steps[1:] {
		if s.Sequence < minSeq {
			minSeq = s.Sequence
		}
	}

	idBySeq := make(map[int]int64, len(steps))
	for i := range steps {
		s := &steps[i]
		status := models.StepLocked
		if s.Sequence == minSeq {
			status = models.StepActive
		}

		objectives, err := marshalStrings(s.Objectives)
		if err != nil {
			return 0, fmt.Errorf("marshal objectives: %w", err)
		}

		sres, err := tx.ExecContext(ctx, `INSERT INTO roadmap_steps
			(roadmap_id, title, description, objectives, sequence, estimated_hours, actual_hours, status, is_pinned, user_notes, mastery_check_passed, created, updated)
			VALUES (?, ?, ?, ?, ?, ?, NULL, ?, 0, '', 0, ?, ?)`,
			roadmapID, s.Title, s.Description, objectives, s.Sequence, s.EstimatedHours, status, ts, ts)
		if err != nil {
			return 0, fmt.Errorf("insert step seq %d: %w", s.Sequence, err)
		}
		stepID, err := sres.LastInsertId()
		if err != nil {
			return 0, err
		}
		idBySeq[s.Sequence] = stepID
	}

	for _, s := range steps {
		stepID := idBySeq[s.Sequence]
		for _, prereqSeq := range s.PrereqIDs {
			prereqID, ok := idBySeq[int(prereqSeq)]
			if !ok {
				return 0, fmt.Errorf("step seq %d references unknown prereq seq %d", s.Sequence, prereqSeq)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO step_prereqs (step_id, prereq_id) VALUES (?, ?)`, stepID, prereqID); err != nil {
				return 0, fmt.Errorf("insert prereq edge: %w", err)
			}
		}
	}

	for seq, links := range attachments {
		stepID, ok := idBySeq[seq]
		if !ok {
			return 0, fmt.Errorf("attachment references unknown step seq %d", seq)
		}
		for _, link := range links {
			if _, err := tx.ExecContext(ctx, `INSERT INTO step_resources (step_id, resource_id, ord, is_required) VALUES (?, ?, ?, ?)`,
				stepID, link.ResourceID, link.Ord, boolArg(link.IsRequired)); err != nil {
				return 0, fmt.Errorf("insert step resource: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	rm.ID = roadmapID
	return roadmapID, nil
}

func (r *SQLiteRepo) GetRoadmapByID(ctx context.Context, id int64) (*models.Roadmap, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, user_id, profile_id, title, description, status, total_estimated_hours, completed_hours, schema_version, model_versions, input_profile_hash, is_pinned, created, updated FROM roadmaps WHERE id = ?`, id)

	rm, err := scanRoadmap(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rm, err
}

func (r *SQLiteRepo) ListRoadmapsByUser(ctx context.Context, userID int64) ([]models.Roadmap, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, user_id, profile_id, title, description, status, total_estimated_hours, completed_hours, schema_version, model_versions, input_profile_hash, is_pinned, created, updated FROM roadmaps WHERE user_id = ? ORDER BY created DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Roadmap
	for rows.Next() {
		rm, err := scanRoadmap(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *rm)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) ListActiveRoadmaps(ctx context.Context) ([]models.Roadmap, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, user_id, profile_id, title, description, status, total_estimated_hours, completed_hours, schema_version, model_versions, input_profile_hash, is_pinned, created, updated FROM roadmaps WHERE status = ? ORDER BY id`, models.RoadmapActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Roadmap
	for rows.Next() {
		rm, err := scanRoadmap(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *rm)
	}

	return out, rows.Err()
}

func scanRoadmap(scan func(dest ...any) error) (*models.Roadmap, error) {
	var rm models.Roadmap
	var versions string
	var pinned int
	if err := scan(&rm.ID, &rm.UserID, &rm.ProfileID, &rm.Title, &rm.Description, &rm.Status, &rm.TotalEstimatedHours, &rm.CompletedHours, &rm.SchemaVersion, &versions, &rm.InputProfileHash, &pinned, &rm.Created, &rm.Updated); err != nil {
		return nil, err
	}

	if versions != "" && versions != "{}" {
		if err := json.Unmarshal([]byte(versions), &rm.ModelVersions); err != nil {
			return nil, fmt.Errorf("unmarshal model versions: %w", err)
		}
	}
	rm.IsPinned = pinned != 0

	return &rm, nil
}

func (r *SQLiteRepo) UpdateRoadmapStatus(ctx context.Context, id int64, status string) error {
	_, err := r.conn.Exec(ctx, `UPDATE roadmaps SET status = ?, updated = ? WHERE id = ?`, status, now(), id)
	return err
}

func (r *SQLiteRepo) ListSteps(ctx context.Context, roadmapID int64) ([]models.RoadmapStep, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, roadmap_id, title, description, objectives, sequence, estimated_hours, actual_hours, status, is_pinned, user_notes, mastery_check_passed, created, updated FROM roadmap_steps WHERE roadmap_id = ? ORDER BY sequence`, roadmapID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RoadmapStep
	byID := make(map[int64]int)
	for rows.Next() {
		s, err := scanStep(rows.Scan)
		if err != nil {
			return nil, err
		}
		byID[s.ID] = len(out)
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	edges, err := r.conn.QueryRows(ctx, `SELECT p.step_id, p.prereq_id FROM step_prereqs p JOIN roadmap_steps s ON s.id = p.step_id WHERE s.roadmap_id = ?`, roadmapID)
	if err != nil {
		return nil, err
	}
	defer edges.Close()

	for edges.Next() {
		var stepID, prereqID int64
		if err := edges.Scan(&stepID, &prereqID); err != nil {
			return nil, err
		}
		if i, ok := byID[stepID]; ok {
			out[i].PrereqIDs = append(out[i].PrereqIDs, prereqID)
		}
	}

	return out, edges.Err()
}

func (r *SQLiteRepo) GetStepByID(ctx context.Context, id int64) (*models.RoadmapStep, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, roadmap_id, title, description, objectives, sequence, estimated_hours, actual_hours, status, is_pinned, user_notes, mastery_check_passed, created, updated FROM roadmap_steps WHERE id = ?`, id)

	s, err := scanStep(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	edges, err := r.conn.QueryRows(ctx, `SELECT prereq_id FROM step_prereqs WHERE step_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer edges.Close()

	for edges.Next() {
		var prereqID int64
		if err := edges.Scan(&prereqID); err != nil {
			return nil, err
		}
		s.PrereqIDs = append(s.PrereqIDs, prereqID)
	}

	return s, edges.Err()
}

func scanStep(scan func(dest ...any) error) (*models.RoadmapStep, error) {
	var s models.RoadmapStep
	var objectives string
	var actual sql.NullFloat64
	var pinned, mastery int
	if err := scan(&s.ID, &s.RoadmapID, &s.Title, &s.Description, &objectives, &s.Sequence, &s.EstimatedHours, &actual, &s.Status, &pinned, &s.UserNotes, &mastery, &s.Created, &s.Updated); err != nil {
		return nil, err
	}

	if objectives != "" && objectives != "[]" {
		if err := json.Unmarshal([]byte(objectives), &s.Objectives); err != nil {
			return nil, fmt.Errorf("unmarshal objectives: %w", err)
		}
	}
	if actual.Valid {
		s.ActualHours = &actual.Float64
	}
	s.IsPinned = pinned != 0
	s.MasteryCheckPassed = mastery != 0

	return &s, nil
}

func (r *SQLiteRepo) UpdateStep(ctx context.Context, s *models.RoadmapStep) error {
	if s == nil {
		return fmt.Errorf("step is nil")
	}

	objectives, err := marshalStrings(s.Objectives)
	if err != nil {
		return fmt.Errorf("marshal objectives: %w", err)
	}

	var actual any
	if s.ActualHours != nil {
		actual = *s.ActualHours
	}

	_, err = r.conn.Exec(ctx, `UPDATE roadmap_steps SET title = ?, description = ?, objectives = ?, sequence = ?, estimated_hours = ?, actual_hours = ?, status = ?, is_pinned = ?, user_notes = ?, mastery_check_passed = ?, updated = ? WHERE id = ?`,
		s.Title, s.Description, objectives, s.Sequence, s.EstimatedHours, actual, s.Status, boolArg(s.IsPinned), s.UserNotes, boolArg(s.MasteryCheckPassed), now(), s.ID)
	return err
}

func (r *SQLiteRepo) ListStepResources(ctx context.Context, stepID int64) ([]models.StepResource, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, step_id, resource_id, ord, is_required FROM step_resources WHERE step_id = ? ORDER BY ord, id`, stepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StepResource
	for rows.Next() {
		var sr models.StepResource
		var required int
		if err := rows.Scan(&sr.ID, &sr.StepID, &sr.ResourceID, &sr.Ord, &required); err != nil {
			return nil, err
		}
		sr.IsRequired = required != 0
		out = append(out, sr)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) CountStepResources(ctx context.Context, stepID int64) (int64, error) {
	var n int64
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM step_resources WHERE step_id = ?`, stepID).Scan(&n)
	return n, err
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
