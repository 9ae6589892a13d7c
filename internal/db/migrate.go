package db

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Migrate applies migrations and optional seed files. It creates a
// `schema_migrations` table to track applied migrations and applies any SQL
// files in `migrations/` that have not yet been recorded. The resource
// catalog seed is applied idempotently (keyed by title+provider).
func Migrate(ctx context.Context, d *DB, migrationFS embed.FS, seedFS embed.FS) error {
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	migDir := "migrations"

	entries, err := fs.ReadDir(migrationFS, migDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	for _, fname := range files {
		version := strings.TrimSuffix(fname, path.Ext(fname))

		var count int
		row := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("scan migration applied count: %w", err)
		}
		if count > 0 {
			continue
		}

		b, err := fs.ReadFile(migrationFS, path.Join(migDir, fname))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec migration %s: %w", fname, err)
		}

		if _, err := d.Exec(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, strftime('%s','now'))`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", fname, err)
		}
	}

	return seedResources(ctx, d, seedFS)
}

type seedResource struct {
	Title           string   `json:"title"`
	TitleAr         string   `json:"title_ar"`
	Description     string   `json:"description"`
	ResourceType    string   `json:"resource_type"`
	Provider        string   `json:"provider"`
	Author          string   `json:"author"`
	ChannelName     string   `json:"channel_name"`
	Difficulty      string   `json:"difficulty"`
	DurationMinutes int      `json:"duration_minutes"`
	Language        string   `json:"language"`
	Tags            []string `json:"tags"`
	QualityScore    float64  `json:"quality_score"`
	IsFree          bool     `json:"is_free"`
	YoutubeVideoID  string   `json:"youtube_video_id"`
	PlaylistID      string   `json:"youtube_playlist_id"`
	ISBN            string   `json:"isbn"`
}

func seedResources(ctx context.Context, d *DB, seedFS embed.FS) error {
	b, err := fs.ReadFile(seedFS, path.Join("seed", "resources.json"))
	if err != nil {
		// seed file is optional
		return nil
	}

	var items []seedResource
	if err := json.Unmarshal(b, &items); err != nil {
		return fmt.Errorf("parse resource seed: %w", err)
	}

	now := time.Now().UTC().UnixMilli()
	for _, it := range items {
		var count int
		row := d.QueryRow(ctx, `SELECT COUNT(1) FROM resources WHERE title = ? AND provider = ?`, it.Title, it.Provider)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("check seed resource %q: %w", it.Title, err)
		}
		if count > 0 {
			continue
		}

		tags, _ := json.Marshal(it.Tags)
		if _, err := d.Exec(ctx, `INSERT INTO resources
			(title, title_ar, description, resource_type, provider, author, channel_name, difficulty, duration_minutes, language, tags, quality_score, upvotes, downvotes, is_free, is_active, youtube_video_id, youtube_playlist_id, isbn, created, updated)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,0,0,?,1,?,?,?,?,?)`,
			it.Title, it.TitleAr, it.Description, it.ResourceType, it.Provider, it.Author, it.ChannelName, it.Difficulty, it.DurationMinutes, it.Language, string(tags), it.QualityScore, boolToInt(it.IsFree), it.YoutubeVideoID, it.PlaylistID, it.ISBN, now, now); err != nil {
			return fmt.Errorf("seed resource %q: %w", it.Title, err)
		}
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
