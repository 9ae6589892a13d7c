package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	dbassets "github.com/dzlearn/masar/db"
	dbpkg "github.com/dzlearn/masar/internal/db"
	sqlite "github.com/dzlearn/masar/internal/repository/sqlite"
	"github.com/dzlearn/masar/pkg/models"
)

func setupRepo(t *testing.T) (*sqlite.SQLiteRepo, func()) {
	t.Helper()
	ctx := context.Background()

	// per-test database name keeps shared-cache memory DBs isolated
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	d, err := dbpkg.New(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}

	if err := dbpkg.Migrate(ctx, d, dbassets.Migrations, dbassets.SeedFiles); err != nil {
		d.Close()
		t.Fatalf("failed to migrate: %v", err)
	}

	repo := sqlite.New(d, nil)
	return repo, func() { d.Close() }
}

func createUser(t *testing.T, repo *sqlite.SQLiteRepo, email string) int64 {
	t.Helper()
	id, err := repo.CreateUser(context.Background(), &models.User{Name: "Test", Email: email, PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	return id
}

func createProfile(t *testing.T, repo *sqlite.SQLiteRepo, userID int64) int64 {
	t.Helper()
	id, err := repo.CreateProfile(context.Background(), &models.LearnerProfile{
		UserID: userID, Subject: "python", Level: models.LevelBeginner, WeeklyHours: 10, Language: "en",
	})
	if err != nil {
		t.Fatalf("CreateProfile error: %v", err)
	}
	return id
}

func TestUserCRUD(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	// nil user should error
	if _, err := repo.CreateUser(ctx, nil); err == nil {
		t.Fatalf("expected error when creating nil user")
	}

	// Non-existing ID should return nil, nil
	got, err := repo.GetUserByID(ctx, 9999)
	if err != nil {
		t.Fatalf("expected no error when getting non-existing ID")
	}
	if got != nil {
		t.Fatalf("expected nil when getting non-existing ID got: %#v", got)
	}

	u := &models.User{Name: "Amina", Email: "amina@example.com", PasswordHash: "hash"}
	id, err := repo.CreateUser(ctx, u)
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected non-zero id")
	}

	byEmail, err := repo.GetUserByEmail(ctx, u.Email)
	if err != nil {
		t.Fatalf("GetUserByEmail error: %v", err)
	}
	if byEmail == nil || byEmail.ID != id {
		t.Fatalf("GetUserByEmail wrong result: %#v", byEmail)
	}

	byEmail.Name = "Amina B"
	if err := repo.UpdateUser(ctx, byEmail); err != nil {
		t.Fatalf("UpdateUser error: %v", err)
	}

	if err := repo.DeleteUser(ctx, id); err != nil {
		t.Fatalf("DeleteUser error: %v", err)
	}
	after, err := repo.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID after delete error: %v", err)
	}
	if after != nil {
		t.Fatalf("expected nil after delete got: %#v", after)
	}
}

func TestProfileCRUD(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createUser(t, repo, "karim@example.com")

	deadline := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	p := &models.LearnerProfile{
		UserID:      userID,
		Subject:     "web_development",
		Level:       models.LevelIntermediate,
		Goals:       "get a frontend job",
		WeeklyHours: 12,
		Deadline:    &deadline,
		Language:    "fr",
		Preferences: map[string]any{"format": "video"},
	}
	id, err := repo.CreateProfile(ctx, p)
	if err != nil {
		t.Fatalf("CreateProfile error: %v", err)
	}

	got, err := repo.GetProfileByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("GetProfileByUserID error: %v", err)
	}
	if got == nil || got.ID != id {
		t.Fatalf("GetProfileByUserID wrong result: %#v", got)
	}
	if got.Deadline == nil || !got.Deadline.Equal(deadline) {
		t.Fatalf("deadline not round-tripped: %#v", got.Deadline)
	}
	if got.Preferences["format"] != "video" {
		t.Fatalf("preferences not round-tripped: %#v", got.Preferences)
	}

	got.Deadline = nil
	got.OnboardingComplete = true
	if err := repo.UpdateProfile(ctx, got); err != nil {
		t.Fatalf("UpdateProfile error: %v", err)
	}

	updated, err := repo.GetProfileByID(ctx, id)
	if err != nil {
		t.Fatalf("GetProfileByID error: %v", err)
	}
	if updated.Deadline != nil {
		t.Fatalf("expected cleared deadline got: %#v", updated.Deadline)
	}
	if !updated.OnboardingComplete {
		t.Fatalf("expected onboarding complete")
	}
}

func TestQuestionsAndAnswers(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createUser(t, repo, "nadia@example.com")
	profileID := createProfile(t, repo, userID)

	q1 := &models.ClarifyingQuestion{
		ProfileID:    profileID,
		QuestionText: "What is your main goal?",
		QuestionType: models.QuestionSingleChoice,
		Options:      []string{"job", "hobby", "studies"},
		TargetField:  "goals",
		Ord:          0,
		IsRequired:   true,
	}
	id1, err := repo.CreateQuestion(ctx, q1)
	if err != nil {
		t.Fatalf("CreateQuestion error: %v", err)
	}
	q2 := &models.ClarifyingQuestion{ProfileID: profileID, QuestionText: "Any deadline?", Ord: 1}
	if _, err := repo.CreateQuestion(ctx, q2); err != nil {
		t.Fatalf("CreateQuestion error: %v", err)
	}

	all, err := repo.ListQuestionsByProfile(ctx, profileID)
	if err != nil {
		t.Fatalf("ListQuestionsByProfile error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 questions got %d", len(all))
	}
	if len(all[0].Options) != 3 {
		t.Fatalf("options not round-tripped: %#v", all[0].Options)
	}

	if _, err := repo.CreateAnswer(ctx, &models.Answer{QuestionID: id1, AnswerText: "job"}); err != nil {
		t.Fatalf("CreateAnswer error: %v", err)
	}

	pending, err := repo.ListUnansweredByProfile(ctx, profileID)
	if err != nil {
		t.Fatalf("ListUnansweredByProfile error: %v", err)
	}
	if len(pending) != 1 || pending[0].QuestionText != "Any deadline?" {
		t.Fatalf("expected the unanswered question got: %#v", pending)
	}

	if err := repo.DeleteQuestionsByProfile(ctx, profileID); err != nil {
		t.Fatalf("DeleteQuestionsByProfile error: %v", err)
	}
	left, err := repo.ListQuestionsByProfile(ctx, profileID)
	if err != nil {
		t.Fatalf("ListQuestionsByProfile error: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected no questions left got %d", len(left))
	}
}

func TestCreateRoadmapGraph(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createUser(t, repo, "yacine@example.com")
	profileID := createProfile(t, repo, userID)

	resID, err := repo.CreateResource(ctx, &models.Resource{
		Title: "Test Course", ResourceType: "course", Difficulty: models.LevelBeginner,
		Language: "en", QualityScore: 0.8, IsFree: true, IsActive: true,
	})
	if err != nil {
		t.Fatalf("CreateResource error: %v", err)
	}

	rm := &models.Roadmap{
		UserID: userID, ProfileID: profileID,
		Title: "Python Roadmap", TotalEstimatedHours: 60,
	}
	steps := []models.RoadmapStep{
		{Title: "Basics", Sequence: 1, EstimatedHours: 20, Objectives: []string{"syntax", "types"}},
		{Title: "Control Flow", Sequence: 2, EstimatedHours: 20, PrereqIDs: []int64{1}},
		{Title: "Functions", Sequence: 3, EstimatedHours: 20, PrereqIDs: []int64{2}},
	}
	attachments := map[int][]models.StepResource{
		1: {{ResourceID: resID, Ord: 0, IsRequired: true}},
	}

	id, err := repo.CreateRoadmapGraph(ctx, rm, steps, attachments)
	if err != nil {
		t.Fatalf("CreateRoadmapGraph error: %v", err)
	}

	got, err := repo.GetRoadmapByID(ctx, id)
	if err != nil {
		t.Fatalf("GetRoadmapByID error: %v", err)
	}
	if got == nil || got.Status != models.RoadmapActive {
		t.Fatalf("unexpected roadmap: %#v", got)
	}

	stored, err := repo.ListSteps(ctx, id)
	if err != nil {
		t.Fatalf("ListSteps error: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("expected 3 steps got %d", len(stored))
	}
	if stored[0].Status != models.StepActive {
		t.Fatalf("expected first step active got %q", stored[0].Status)
	}
	for _, s := range stored[1:] {
		if s.Status != models.StepLocked {
			t.Fatalf("expected locked step got %q", s.Status)
		}
	}
	if len(stored[1].PrereqIDs) != 1 || stored[1].PrereqIDs[0] != stored[0].ID {
		t.Fatalf("prereq edge not resolved: %#v", stored[1].PrereqIDs)
	}

	links, err := repo.ListStepResources(ctx, stored[0].ID)
	if err != nil {
		t.Fatalf("ListStepResources error: %v", err)
	}
	if len(links) != 1 || links[0].ResourceID != resID || !links[0].IsRequired {
		t.Fatalf("unexpected step resources: %#v", links)
	}
	n, err := repo.CountStepResources(ctx, stored[0].ID)
	if err != nil || n != 1 {
		t.Fatalf("CountStepResources got %d err %v", n, err)
	}

	// unknown prereq sequence rolls the whole graph back
	bad := []models.RoadmapStep{{Title: "Orphan", Sequence: 1, PrereqIDs: []int64{99}}}
	if _, err := repo.CreateRoadmapGraph(ctx, &models.Roadmap{UserID: userID, ProfileID: profileID, Title: "Bad"}, bad, nil); err == nil {
		t.Fatalf("expected error for unknown prereq sequence")
	}
	list, err := repo.ListRoadmapsByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListRoadmapsByUser error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected failed graph rolled back, have %d roadmaps", len(list))
	}
}

func TestStepUpdate(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createUser(t, repo, "lina@example.com")
	profileID := createProfile(t, repo, userID)

	rm := &models.Roadmap{UserID: userID, ProfileID: profileID, Title: "JS"}
	steps := []models.RoadmapStep{{Title: "Syntax", Sequence: 1, EstimatedHours: 5}}
	id, err := repo.CreateRoadmapGraph(ctx, rm, steps, nil)
	if err != nil {
		t.Fatalf("CreateRoadmapGraph error: %v", err)
	}

	stored, err := repo.ListSteps(ctx, id)
	if err != nil {
		t.Fatalf("ListSteps error: %v", err)
	}

	s := stored[0]
	hours := 6.5
	s.Status = models.StepCompleted
	s.ActualHours = &hours
	s.UserNotes = "done in a week"
	if err := repo.UpdateStep(ctx, &s); err != nil {
		t.Fatalf("UpdateStep error: %v", err)
	}

	got, err := repo.GetStepByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetStepByID error: %v", err)
	}
	if got.Status != models.StepCompleted || got.ActualHours == nil || *got.ActualHours != 6.5 {
		t.Fatalf("step update not persisted: %#v", got)
	}

	if err := repo.UpdateRoadmapStatus(ctx, id, models.RoadmapCompleted); err != nil {
		t.Fatalf("UpdateRoadmapStatus error: %v", err)
	}
	after, err := repo.GetRoadmapByID(ctx, id)
	if err != nil {
		t.Fatalf("GetRoadmapByID error: %v", err)
	}
	if after.Status != models.RoadmapCompleted {
		t.Fatalf("expected completed roadmap got %q", after.Status)
	}
}

func TestResourceSearchAndVotes(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	seeded, err := repo.ListActiveResources(ctx)
	if err != nil {
		t.Fatalf("ListActiveResources error: %v", err)
	}
	if len(seeded) == 0 {
		t.Fatalf("expected seed catalog to be loaded")
	}

	results, err := repo.SearchResources(ctx, "python", map[string]any{"language": "en", "is_free": true}, 5)
	if err != nil {
		t.Fatalf("SearchResources error: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected python results from seed catalog")
	}
	for i := 1; i < len(results); i++ {
		if results[i].QualityScore > results[i-1].QualityScore {
			t.Fatalf("results not ordered by quality score")
		}
	}

	id := results[0].ID
	if err := repo.VoteResource(ctx, id, true); err != nil {
		t.Fatalf("VoteResource error: %v", err)
	}
	if err := repo.UpdateQualityScore(ctx, id, 0.92); err != nil {
		t.Fatalf("UpdateQualityScore error: %v", err)
	}
	got, err := repo.GetResourceByID(ctx, id)
	if err != nil {
		t.Fatalf("GetResourceByID error: %v", err)
	}
	if got.Upvotes != results[0].Upvotes+1 || got.QualityScore != 0.92 {
		t.Fatalf("vote or score not persisted: %#v", got)
	}
}

func TestAIJobLifecycle(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createUser(t, repo, "sami@example.com")
	profileID := createProfile(t, repo, userID)

	j := &models.AIJob{
		PublicID: "a3f1c2d4-0000-0000-0000-000000000001",
		UserID:   userID, ProfileID: profileID,
		JobType: "roadmap_generation",
	}
	if _, err := repo.CreateAIJob(ctx, j); err != nil {
		t.Fatalf("CreateAIJob error: %v", err)
	}

	active, err := repo.HasActiveJob(ctx, profileID)
	if err != nil {
		t.Fatalf("HasActiveJob error: %v", err)
	}
	if !active {
		t.Fatalf("expected active job for profile")
	}

	got, err := repo.GetAIJobByPublicID(ctx, j.PublicID)
	if err != nil {
		t.Fatalf("GetAIJobByPublicID error: %v", err)
	}
	if got == nil || got.Status != models.JobPending {
		t.Fatalf("unexpected job: %#v", got)
	}

	done := now()
	got.Status = models.JobCompleted
	got.Progress = 100
	got.CurrentStage = "complete"
	got.CompletedAt = &done
	if err := repo.UpdateAIJob(ctx, got); err != nil {
		t.Fatalf("UpdateAIJob error: %v", err)
	}

	active, err = repo.HasActiveJob(ctx, profileID)
	if err != nil {
		t.Fatalf("HasActiveJob error: %v", err)
	}
	if active {
		t.Fatalf("expected no active job after completion")
	}

	missing, err := repo.GetAIJobByPublicID(ctx, "no-such-id")
	if err != nil {
		t.Fatalf("GetAIJobByPublicID error: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown public id got: %#v", missing)
	}
}

func TestQueueLifecycle(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	j := &models.BackgroundJob{Type: "roadmap_generation", Payload: []byte(`{"job_id":1}`), Priority: 10}
	id, err := repo.Enqueue(ctx, j)
	if err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}

	next, err := repo.FetchNext(ctx)
	if err != nil {
		t.Fatalf("FetchNext error: %v", err)
	}
	if next == nil || next.ID != id || next.Type != "roadmap_generation" {
		t.Fatalf("unexpected fetched job: %#v", next)
	}
	if next.MaxAttempts != 5 {
		t.Fatalf("expected default max attempts got %d", next.MaxAttempts)
	}

	next.Status = "failed"
	next.Attempts = next.MaxAttempts
	next.LastError = "model unavailable"
	if err := repo.UpdateJob(ctx, next); err != nil {
		t.Fatalf("UpdateJob error: %v", err)
	}

	if err := repo.MoveToDeadLetter(ctx, next); err != nil {
		t.Fatalf("MoveToDeadLetter error: %v", err)
	}
	gone, err := repo.FetchNext(ctx)
	if err != nil {
		t.Fatalf("FetchNext after dead letter error: %v", err)
	}
	if gone != nil {
		t.Fatalf("expected empty queue got: %#v", gone)
	}
}

func TestTelemetry(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createUser(t, repo, "omar@example.com")
	profileID := createProfile(t, repo, userID)

	if _, err := repo.CreateActivity(ctx, &models.UserActivity{UserID: userID, Activity: "login"}); err != nil {
		t.Fatalf("CreateActivity error: %v", err)
	}
	last, err := repo.LastActivityByUser(ctx, userID)
	if err != nil {
		t.Fatalf("LastActivityByUser error: %v", err)
	}
	if last == nil || last.Activity != "login" {
		t.Fatalf("unexpected last activity: %#v", last)
	}

	rmID, err := repo.CreateRoadmapGraph(ctx, &models.Roadmap{UserID: userID, ProfileID: profileID, Title: "DS"},
		[]models.RoadmapStep{{Title: "Stats", Sequence: 1}}, nil)
	if err != nil {
		t.Fatalf("CreateRoadmapGraph error: %v", err)
	}

	snap := &models.ProgressSnapshot{UserID: userID, RoadmapID: rmID, StepsCompleted: 0, TotalSteps: 1, SnapshotDate: "2026-08-31"}
	if _, err := repo.CreateSnapshot(ctx, snap); err != nil {
		t.Fatalf("CreateSnapshot error: %v", err)
	}
	// same day again upserts instead of failing the unique constraint
	snap.StepsCompleted = 1
	if _, err := repo.CreateSnapshot(ctx, snap); err != nil {
		t.Fatalf("CreateSnapshot upsert error: %v", err)
	}
	snaps, err := repo.ListSnapshotsByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("ListSnapshotsByUser error: %v", err)
	}
	if len(snaps) != 1 || snaps[0].StepsCompleted != 1 {
		t.Fatalf("unexpected snapshots: %#v", snaps)
	}

	if _, err := repo.CreateErrorLog(ctx, &models.ErrorLog{Message: "generation failed", Resolved: true}); err != nil {
		t.Fatalf("CreateErrorLog error: %v", err)
	}
	purged, err := repo.PurgeResolvedErrorLogs(ctx, now()+1)
	if err != nil {
		t.Fatalf("PurgeResolvedErrorLogs error: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged error log got %d", purged)
	}
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}
