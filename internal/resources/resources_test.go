package resources

import (
	"context"
	"fmt"
	"math"
	"testing"

	dbassets "github.com/dzlearn/masar/db"
	dbpkg "github.com/dzlearn/masar/internal/db"
	sqlite "github.com/dzlearn/masar/internal/repository/sqlite"
	"github.com/dzlearn/masar/pkg/models"
)

func TestFitScore(t *testing.T) {
	res := &models.Resource{
		Title:        "Learn Python Basics",
		QualityScore: 1.0,
		Difficulty:   models.LevelBeginner,
		ResourceType: models.ResourceYoutubeTutorial,
	}

	// full quality + full overlap + difficulty + preferred type
	score := FitScore(res, "Python Basics", 1, []string{models.ResourceYoutubeTutorial})
	if math.Abs(score-1.0) > 1e-9 {
		t.Fatalf("expected perfect fit score 1.0, got %.2f", score)
	}

	// no keyword overlap, wrong difficulty bucket, no preference
	miss := &models.Resource{Title: "Cooking 101", QualityScore: 0.5, Difficulty: models.LevelAdvanced}
	score = FitScore(miss, "Python Basics", 1, nil)
	if math.Abs(score-0.15) > 1e-9 {
		t.Fatalf("expected quality-only score 0.15, got %.2f", score)
	}
}

func TestDifficultyBuckets(t *testing.T) {
	cases := []struct {
		seq  int
		want string
	}{
		{1, models.LevelBeginner}, {2, models.LevelBeginner},
		{3, models.LevelIntermediate}, {5, models.LevelIntermediate},
		{6, models.LevelAdvanced}, {12, models.LevelAdvanced},
	}
	for _, tc := range cases {
		if got := difficultyForSequence(tc.seq); got != tc.want {
			t.Fatalf("difficultyForSequence(%d) = %q, want %q", tc.seq, got, tc.want)
		}
	}
}

func TestRankOrdersByFit(t *testing.T) {
	candidates := []models.Resource{
		{ID: 1, Title: "Random Tutorial", QualityScore: 0.6},
		{ID: 2, Title: "Python Basics Course", QualityScore: 0.6, Difficulty: models.LevelBeginner},
		{ID: 3, Title: "Python Reference", QualityScore: 0.6},
	}

	ranked := Rank(candidates, "Python Basics", 1, nil)
	if ranked[0].ID != 2 {
		t.Fatalf("best overlap and difficulty match should rank first, got %d", ranked[0].ID)
	}
	if ranked[len(ranked)-1].ID != 1 {
		t.Fatalf("zero-overlap candidate should rank last, got %d", ranked[len(ranked)-1].ID)
	}
}

func TestPreferredTypes(t *testing.T) {
	if got := PreferredTypes(nil); got != nil {
		t.Fatalf("nil preferences should yield nil, got %v", got)
	}

	prefs := map[string]any{"resource_types": []any{"video", "book", 42}}
	got := PreferredTypes(prefs)
	if len(got) != 2 || got[0] != "video" || got[1] != "book" {
		t.Fatalf("unexpected preferred types %v", got)
	}
}

func TestTopForStepAgainstCatalog(t *testing.T) {
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	d, err := dbpkg.New(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer d.Close()
	if err := dbpkg.Migrate(ctx, d, dbassets.Migrations, dbassets.SeedFiles); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	r := NewRetriever(sqlite.New(d, nil), nil)

	top, err := r.TopForStep(ctx, "Python Basics", 1, nil)
	if err != nil {
		t.Fatalf("TopForStep error: %v", err)
	}
	if len(top) == 0 {
		t.Fatalf("seeded catalog should cover python")
	}
	if len(top) > MaxPerStep {
		t.Fatalf("at most %d resources per step, got %d", MaxPerStep, len(top))
	}

	// nothing in the catalog covers this
	none, err := r.TopForStep(ctx, "Xylophone Maintenance", 1, nil)
	if err != nil {
		t.Fatalf("TopForStep error: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %d", len(none))
	}
}

func TestRecommenderLanguageOrdering(t *testing.T) {
	rec, err := NewRecommender()
	if err != nil {
		t.Fatalf("NewRecommender error: %v", err)
	}

	// French learner: fr first, then ar, then en
	playlists := rec.Playlists("python", "fr", 0)
	if len(playlists) != 3 {
		t.Fatalf("expected 3 python playlists, got %d", len(playlists))
	}
	if playlists[0].Language != "fr" || playlists[1].Language != "ar" || playlists[2].Language != "en" {
		t.Fatalf("unexpected language order: %s, %s, %s",
			playlists[0].Language, playlists[1].Language, playlists[2].Language)
	}

	// default ordering favors Arabic
	playlists = rec.Playlists("python", "", 0)
	if playlists[0].Language != "ar" {
		t.Fatalf("arabic content should lead by default, got %s", playlists[0].Language)
	}
}

func TestRecommenderChannelsAndBooks(t *testing.T) {
	rec, err := NewRecommender()
	if err != nil {
		t.Fatalf("NewRecommender error: %v", err)
	}

	channels := rec.Channels("python", 0)
	if len(channels) != 5 {
		t.Fatalf("expected 5 channels covering python, got %d", len(channels))
	}
	for i := 1; i < len(channels); i++ {
		if channels[i].QualityScore > channels[i-1].QualityScore {
			t.Fatalf("channels must be sorted by quality descending")
		}
	}

	free := rec.Books("python", "ar", true, 0)
	for _, b := range free {
		if !b.IsFree {
			t.Fatalf("free-only filter leaked %q", b.Title)
		}
	}
	if len(free) != 2 {
		t.Fatalf("expected 2 free python books, got %d", len(free))
	}
	if free[0].Language != "ar" {
		t.Fatalf("arabic learner should see the arabic book first, got %s", free[0].Language)
	}

	bundle := rec.ForSubject("javascript", "en")
	if len(bundle.Playlists) != 2 || len(bundle.Books) != 2 || len(bundle.FreeBooks) != 1 {
		t.Fatalf("unexpected javascript bundle: %d playlists, %d books, %d free",
			len(bundle.Playlists), len(bundle.Books), len(bundle.FreeBooks))
	}
	if bundle.Playlists[0].Language != "en" {
		t.Fatalf("english learner should see the english playlist first")
	}
}
