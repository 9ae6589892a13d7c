package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/dzlearn/masar/internal/jobs"
	sqlite "github.com/dzlearn/masar/internal/repository/sqlite"
	"github.com/dzlearn/masar/pkg/models"
)

func seedActiveRoadmap(t *testing.T, repo *sqlite.SQLiteRepo) (int64, int64) {
	t.Helper()
	ctx := context.Background()

	userID, err := repo.CreateUser(ctx, &models.User{Name: "Test", Email: t.Name() + "@example.com", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	profileID, err := repo.CreateProfile(ctx, &models.LearnerProfile{UserID: userID, Subject: "python", WeeklyHours: 10})
	if err != nil {
		t.Fatalf("CreateProfile error: %v", err)
	}

	rm := &models.Roadmap{UserID: userID, ProfileID: profileID, Title: "Path"}
	steps := []models.RoadmapStep{
		{Title: "Basics", Sequence: 1, EstimatedHours: 5},
		{Title: "Advanced", Sequence: 2, EstimatedHours: 5},
	}
	roadmapID, err := repo.CreateRoadmapGraph(ctx, rm, steps, nil)
	if err != nil {
		t.Fatalf("CreateRoadmapGraph error: %v", err)
	}

	return userID, roadmapID
}

func TestRecomputeQualityScores(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	votedID, err := repo.CreateResource(ctx, &models.Resource{
		Title: "Voted Resource", ResourceType: models.ResourceArticle,
		QualityScore: 0.5, Upvotes: 3, Downvotes: 1, IsActive: true,
	})
	if err != nil {
		t.Fatalf("CreateResource error: %v", err)
	}
	unvotedID, err := repo.CreateResource(ctx, &models.Resource{
		Title: "Unvoted Resource", ResourceType: models.ResourceArticle,
		QualityScore: 0.42, IsActive: true,
	})
	if err != nil {
		t.Fatalf("CreateResource error: %v", err)
	}

	s := jobs.NewScheduler(repo, nil)
	if _, err := s.RecomputeQualityScores(ctx); err != nil {
		t.Fatalf("RecomputeQualityScores error: %v", err)
	}

	voted, err := repo.GetResourceByID(ctx, votedID)
	if err != nil {
		t.Fatalf("GetResourceByID error: %v", err)
	}
	if voted.QualityScore != 0.75 {
		t.Fatalf("expected upvote share 0.75, got %.2f", voted.QualityScore)
	}

	unvoted, err := repo.GetResourceByID(ctx, unvotedID)
	if err != nil {
		t.Fatalf("GetResourceByID error: %v", err)
	}
	if unvoted.QualityScore != 0.42 {
		t.Fatalf("unvoted resource should keep its score, got %.2f", unvoted.QualityScore)
	}
}

func TestSnapshotProgress(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	userID, roadmapID := seedActiveRoadmap(t, repo)

	steps, err := repo.ListSteps(ctx, roadmapID)
	if err != nil {
		t.Fatalf("ListSteps error: %v", err)
	}
	steps[0].Status = models.StepCompleted
	if err := repo.UpdateStep(ctx, &steps[0]); err != nil {
		t.Fatalf("UpdateStep error: %v", err)
	}

	s := jobs.NewScheduler(repo, nil)
	n, err := s.SnapshotProgress(ctx)
	if err != nil {
		t.Fatalf("SnapshotProgress error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one snapshot, got %d", n)
	}

	snaps, err := repo.ListSnapshotsByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("ListSnapshotsByUser error: %v", err)
	}
	if len(snaps) != 1 || snaps[0].StepsCompleted != 1 || snaps[0].TotalSteps != 2 {
		t.Fatalf("unexpected snapshots: %#v", snaps)
	}

	// same-day rerun overwrites instead of duplicating
	if _, err := s.SnapshotProgress(ctx); err != nil {
		t.Fatalf("SnapshotProgress rerun error: %v", err)
	}
	snaps, err = repo.ListSnapshotsByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("ListSnapshotsByUser error: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("same-day snapshot should be overwritten, got %d rows", len(snaps))
	}
}

func TestScanInactiveLearners(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	activeUser, _ := seedActiveRoadmap(t, repo)
	if _, err := repo.CreateActivity(ctx, &models.UserActivity{UserID: activeUser, Activity: "viewed_roadmap"}); err != nil {
		t.Fatalf("CreateActivity error: %v", err)
	}

	s := jobs.NewScheduler(repo, nil)
	inactive, err := s.ScanInactiveLearners(ctx)
	if err != nil {
		t.Fatalf("ScanInactiveLearners error: %v", err)
	}
	if len(inactive) != 0 {
		t.Fatalf("recently active learner should not be flagged: %v", inactive)
	}
}

func TestScanFlagsSilentLearners(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	// active roadmap but no recorded activity at all
	silentUser, _ := seedActiveRoadmap(t, repo)

	s := jobs.NewScheduler(repo, nil)
	inactive, err := s.ScanInactiveLearners(ctx)
	if err != nil {
		t.Fatalf("ScanInactiveLearners error: %v", err)
	}
	if len(inactive) != 1 || inactive[0] != silentUser {
		t.Fatalf("silent learner should be flagged, got %v", inactive)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	repo := setupRepo(t)

	s := jobs.NewScheduler(repo, nil)
	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()
}
