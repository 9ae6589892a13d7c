package jobs_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/goleak"

	dbassets "github.com/dzlearn/masar/db"
	dbpkg "github.com/dzlearn/masar/internal/db"
	"github.com/dzlearn/masar/internal/jobs"
	sqlite "github.com/dzlearn/masar/internal/repository/sqlite"
	"github.com/dzlearn/masar/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setupRepo(t *testing.T) *sqlite.SQLiteRepo {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	d, err := dbpkg.New(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := dbpkg.Migrate(ctx, d, dbassets.Migrations, dbassets.SeedFiles); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return sqlite.New(d, nil)
}

func TestEnqueueAndProcess(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	handled := make(chan struct{}, 1)
	handlers := map[string]jobs.Handler{
		"test": func(ctx context.Context, j *models.BackgroundJob) error {
			handled <- struct{}{}
			return nil
		},
	}

	pool := jobs.NewWorkerPool(repo, handlers, nil, 1)
	pool.Start(ctx)
	defer pool.Stop()

	if _, err := pool.Enqueue(ctx, "test", map[string]string{"foo": "bar"}, 10, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case <-handled:
	case <-time.After(3 * time.Second):
		t.Fatalf("handler was not called")
	}
}

func TestExhaustedJobMovesToDeadLetter(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	failed := make(chan struct{}, 1)
	handlers := map[string]jobs.Handler{
		"doomed": func(ctx context.Context, j *models.BackgroundJob) error {
			failed <- struct{}{}
			return fmt.Errorf("always fails")
		},
	}

	pool := jobs.NewWorkerPool(repo, handlers, nil, 1)
	pool.Start(ctx)
	defer pool.Stop()

	if _, err := pool.Enqueue(ctx, "doomed", nil, 10, 1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case <-failed:
	case <-time.After(3 * time.Second):
		t.Fatalf("handler was not called")
	}

	// single allowed attempt, so the job lands in the dead letter table
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if next, err := repo.FetchNext(ctx); err == nil && next == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("job was not removed from the queue")
}

func TestUnknownTypeIsDeadLettered(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	pool := jobs.NewWorkerPool(repo, map[string]jobs.Handler{}, nil, 1)
	pool.Start(ctx)
	defer pool.Stop()

	if _, err := pool.Enqueue(ctx, "nobody.handles.this", nil, 10, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if next, err := repo.FetchNext(ctx); err == nil && next == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("unhandled job was not dead-lettered")
}

func TestBackoffDuration(t *testing.T) {
	if got := jobs.BackoffDuration(0); got != time.Minute {
		t.Fatalf("attempt 0 should back off one minute, got %v", got)
	}
	if got := jobs.BackoffDuration(3); got != 3*time.Minute {
		t.Fatalf("attempt 3 should back off three minutes, got %v", got)
	}
}
