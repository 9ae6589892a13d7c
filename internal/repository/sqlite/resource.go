package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dzlearn/masar/pkg/models"
)

const resourceColumns = `id, title, title_ar, description, resource_type, provider, author, channel_name, difficulty, duration_minutes, language, tags, quality_score, upvotes, downvotes, is_free, is_active, youtube_video_id, youtube_playlist_id, isbn, created, updated`

func (r *SQLiteRepo) CreateResource(ctx context.Context, res *models.Resource) (int64, error) {
	if res == nil {
		return 0, fmt.Errorf("resource is nil")
	}
	if res.Difficulty == "" {
		res.Difficulty = models.LevelBeginner
	}
	if res.Language == "" {
		res.Language = "en"
	}

	tags, err := marshalStrings(res.Tags)
	if err != nil {
		return 0, fmt.Errorf("marshal tags: %w", err)
	}

	ts := now()
	result, err := r.conn.Exec(ctx, `INSERT INTO resources
		(title, title_ar, description, resource_type, provider, author, channel_name, difficulty, duration_minutes, language, tags, quality_score, upvotes, downvotes, is_free, is_active, youtube_video_id, youtube_playlist_id, isbn, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.Title, res.TitleAr, res.Description, res.ResourceType, res.Provider, res.Author, res.ChannelName, res.Difficulty, res.DurationMinutes, res.Language, tags, res.QualityScore, res.Upvotes, res.Downvotes, boolArg(res.IsFree), boolArg(res.IsActive), res.YoutubeVideoID, res.PlaylistID, res.ISBN, ts, ts)
	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

func (r *SQLiteRepo) GetResourceByID(ctx context.Context, id int64) (*models.Resource, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)

	res, err := scanResource(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return res, err
}

// SearchResources matches query against title, description and tags, with
// optional equality filters on difficulty, language, resource_type and
// is_free. Results come back ordered by quality score.
func (r *SQLiteRepo) SearchResources(ctx context.Context, query string, filters map[string]any, limit int) ([]models.Resource, error) {
	if limit <= 0 {
		limit = 20
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + resourceColumns + ` FROM resources WHERE is_active = 1`)
	var args []any

	if query != "" {
		sb.WriteString(` AND (title LIKE ? OR title_ar LIKE ? OR description LIKE ? OR tags LIKE ?)`)
		pattern := "%" + query + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}

	for _, col := range []string{"difficulty", "language", "resource_type"} {
		if v, ok := filters[col]; ok {
			sb.WriteString(` AND ` + col + ` = ?`)
			args = append(args, v)
		}
	}
	if v, ok := filters["is_free"]; ok {
		if free, ok := v.(bool); ok {
			sb.WriteString(` AND is_free = ?`)
			args = append(args, boolArg(free))
		}
	}

	sb.WriteString(` ORDER BY quality_score DESC, id LIMIT ?`)
	args = append(args, limit)

	return r.listResources(ctx, sb.String(), args...)
}

func (r *SQLiteRepo) ListActiveResources(ctx context.Context) ([]models.Resource, error) {
	return r.listResources(ctx, `SELECT `+resourceColumns+` FROM resources WHERE is_active = 1 ORDER BY quality_score DESC, id`)
}

func (r *SQLiteRepo) listResources(ctx context.Context, query string, args ...any) ([]models.Resource, error) {
	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Resource
	for rows.Next() {
		res, err := scanResource(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}

	return out, rows.Err()
}

func scanResource(scan func(dest ...any) error) (*models.Resource, error) {
	var res models.Resource
	var tags string
	var free, active int
	if err := scan(&res.ID, &res.Title, &res.TitleAr, &res.Description, &res.ResourceType, &res.Provider, &res.Author, &res.ChannelName, &res.Difficulty, &res.DurationMinutes, &res.Language, &tags, &res.QualityScore, &res.Upvotes, &res.Downvotes, &free, &active, &res.YoutubeVideoID, &res.PlaylistID, &res.ISBN, &res.Created, &res.Updated); err != nil {
		return nil, err
	}

	if tags != "" && tags != "[]" {
		if err := json.Unmarshal([]byte(tags), &res.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	res.IsFree = free != 0
	res.IsActive = active != 0

	return &res, nil
}

func (r *SQLiteRepo) VoteResource(ctx context.Context, id int64, up bool) error {
	col := "downvotes"
	if up {
		col = "upvotes"
	}
	_, err := r.conn.Exec(ctx, `UPDATE resources SET `+col+` = `+col+` + 1, updated = ? WHERE id = ?`, now(), id)
	return err
}

func (r *SQLiteRepo) UpdateQualityScore(ctx context.Context, id int64, score float64) error {
	_, err := r.conn.Exec(ctx, `UPDATE resources SET quality_score = ?, updated = ? WHERE id = ?`, score, now(), id)
	return err
}
