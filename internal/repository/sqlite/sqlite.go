package sqlite

import (
	"io"
	"time"

	"log/slog"

	"github.com/dzlearn/masar/internal/db"
	"github.com/dzlearn/masar/pkg/repository"
)

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.UserRepo = (*SQLiteRepo)(nil)
var _ repository.ProfileRepo = (*SQLiteRepo)(nil)
var _ repository.QuestionRepo = (*SQLiteRepo)(nil)
var _ repository.RoadmapRepo = (*SQLiteRepo)(nil)
var _ repository.ResourceRepo = (*SQLiteRepo)(nil)
var _ repository.AIJobRepo = (*SQLiteRepo)(nil)
var _ repository.QueueRepo = (*SQLiteRepo)(nil)
var _ repository.TelemetryRepo = (*SQLiteRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &SQLiteRepo{conn: conn, logger: logger}
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}
