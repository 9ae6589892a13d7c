package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dzlearn/masar/api"
	dbassets "github.com/dzlearn/masar/db"
	"github.com/dzlearn/masar/internal/config"
	dbpkg "github.com/dzlearn/masar/internal/db"
	"github.com/dzlearn/masar/internal/jobs"
	"github.com/dzlearn/masar/internal/market"
	"github.com/dzlearn/masar/internal/orchestrator"
	sqlite "github.com/dzlearn/masar/internal/repository/sqlite"
	"github.com/dzlearn/masar/internal/resources"
)

const testSecret = "testsecret"

// newServer wires the full router against an in-memory database, the same
// way cmd/server does. The worker pool is constructed but not started;
// async jobs stay queued unless a test drains them.
func newServer(t *testing.T) (http.Handler, *sqlite.SQLiteRepo) {
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

	repo := sqlite.New(d, nil)
	orc, err := orchestrator.New(repo, resources.NewRetriever(repo, nil), nil, nil)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	rec, err := resources.NewRecommender()
	if err != nil {
		t.Fatalf("recommender: %v", err)
	}
	analyzer, err := market.NewAnalyzer()
	if err != nil {
		t.Fatalf("analyzer: %v", err)
	}
	pool := jobs.NewWorkerPool(repo, map[string]jobs.Handler{
		jobs.TypeGenerateRoadmap: jobs.NewGenerateHandler(repo, orc, nil),
	}, nil, 1)

	cfg := &config.Config{JWTSecret: testSecret, TokenDuration: time.Hour}
	router := api.SetupRoutes(cfg, "test", "now", api.Deps{
		Repo:         repo,
		Orchestrator: orc,
		Pool:         pool,
		Recommender:  rec,
		Analyzer:     analyzer,
	})
	return router, repo
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// doRaw sends the body verbatim, for requests that must not be valid JSON.
func doRaw(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

// signup registers a fresh user and returns its bearer token.
func signup(t *testing.T, h http.Handler, email string) string {
	t.Helper()

	rr := doJSON(t, h, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"name": "Test Learner", "email": email, "password": "s3cret",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("signup status %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rr, &resp)
	if resp.Token == "" {
		t.Fatalf("empty token")
	}
	return resp.Token
}

// onboard fills in the caller's profile. Subject python with a detailed
// profile keeps uncertainty under the clarification threshold, so sync
// generation completes.
func onboard(t *testing.T, h http.Handler, token, subject string) {
	t.Helper()

	deadline := time.Now().UTC().AddDate(0, 6, 0).Format(time.RFC3339)
	body := map[string]any{
		"subject":      subject,
		"level":        "beginner",
		"weekly_hours": 10,
		"deadline":     deadline,
		"goals": "I want to build real backend services with Python, automate my daily work, " +
			"and publish small open source tools. I also want to understand databases and " +
			"deployment well enough to ship projects on my own.",
		"language": "ar",
		"preferences": map[string]any{
			"resource_types": []string{"youtube_tutorial"},
			"pace":           "fast",
			"style":          "project-based",
			"budget":         "free",
			"language":       "ar",
		},
	}
	rr := doJSON(t, h, http.MethodPut, "/v1/profiles/me", token, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("onboard status %d: %s", rr.Code, rr.Body.String())
	}
}

// generateSync runs the pipeline inline and returns the decoded result.
func generateSync(t *testing.T, h http.Handler, token string) map[string]any {
	t.Helper()

	rr := doJSON(t, h, http.MethodPost, "/v1/ai/generate", token, map[string]any{"sync": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("sync generate status %d: %s", rr.Code, rr.Body.String())
	}
	var result map[string]any
	decodeBody(t, rr, &result)
	return result
}
