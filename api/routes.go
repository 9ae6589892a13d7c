package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dzlearn/masar/internal/config"
	"github.com/dzlearn/masar/internal/jobs"
	"github.com/dzlearn/masar/internal/market"
	"github.com/dzlearn/masar/internal/orchestrator"
	"github.com/dzlearn/masar/internal/repository/sqlite"
	"github.com/dzlearn/masar/internal/resources"
	"github.com/gorilla/mux"
)

// Deps bundles the long-lived components the handlers need. The caller
// (cmd/server) owns their lifecycles.
type Deps struct {
	Repo         *sqlite.SQLiteRepo
	Orchestrator *orchestrator.Orchestrator
	Pool         *jobs.WorkerPool
	Recommender  *resources.Recommender
	Analyzer     *market.Analyzer
}

func SetupRoutes(cfg *config.Config, version, buildTime string, d Deps) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Create handlers
	systemHandler := &SystemHandler{}
	authHandler := NewAuthHandler(d.Repo, d.Repo, cfg.JWTSecret, cfg.TokenDuration)
	profilesHandler := NewProfilesHandler(d.Repo, d.Repo, d.Orchestrator)
	roadmapsHandler := NewRoadmapsHandler(d.Repo, d.Orchestrator)
	resourcesHandler := NewResourcesHandler(d.Repo)
	recommendationsHandler := NewRecommendationsHandler(d.Recommender)
	marketHandler := NewMarketHandler(d.Analyzer)
	aiHandler := NewAIHandler(d.Repo, d.Repo, d.Repo, d.Pool, d.Orchestrator)
	assessmentsHandler := NewAssessmentsHandler(d.Repo, d.Repo, d.Repo)
	telemetryHandler := NewTelemetryHandler(d.Repo)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/v1/auth/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	// Auth endpoints
	authV1 := apiV1.PathPrefix("/auth").Subrouter()
	authV1.HandleFunc("/signout", authHandler.Signout).Methods("POST")

	// Profile + clarifying questions
	apiV1.HandleFunc("/profiles/me", profilesHandler.GetMe).Methods("GET")
	apiV1.HandleFunc("/profiles/me", profilesHandler.UpdateMe).Methods("PUT")
	apiV1.HandleFunc("/profiles/me/questions", profilesHandler.ListQuestions).Methods("GET")
	apiV1.HandleFunc("/questions/{id}/answer", profilesHandler.AnswerQuestion).Methods("POST")

	// Roadmaps + steps
	apiV1.HandleFunc("/roadmaps", roadmapsHandler.List).Methods("GET")
	apiV1.HandleFunc("/roadmaps/{id}", roadmapsHandler.Get).Methods("GET")
	apiV1.HandleFunc("/roadmaps/{id}/status", roadmapsHandler.UpdateStatus).Methods("POST")
	apiV1.HandleFunc("/roadmaps/{id}/export", roadmapsHandler.Export).Methods("GET")
	apiV1.HandleFunc("/steps/{id}", roadmapsHandler.UpdateStep).Methods("PUT")
	apiV1.HandleFunc("/steps/{id}/complete", roadmapsHandler.CompleteStep).Methods("POST")
	apiV1.HandleFunc("/steps/{id}/skip", roadmapsHandler.SkipStep).Methods("POST")
	apiV1.HandleFunc("/steps/{id}/resources", roadmapsHandler.StepResources).Methods("GET")

	// Mastery assessments
	apiV1.HandleFunc("/steps/{id}/assessments", assessmentsHandler.Create).Methods("POST")
	apiV1.HandleFunc("/steps/{id}/assessments", assessmentsHandler.ListForStep).Methods("GET")
	apiV1.HandleFunc("/assessments/attempts", assessmentsHandler.RecentAttempts).Methods("GET")
	apiV1.HandleFunc("/assessments/{id}/attempts", assessmentsHandler.Attempt).Methods("POST")

	// Resource catalog
	apiV1.HandleFunc("/resources", resourcesHandler.Search).Methods("GET")
	apiV1.HandleFunc("/resources/{id}/vote", resourcesHandler.Vote).Methods("POST")
	apiV1.HandleFunc("/recommendations", recommendationsHandler.Get).Methods("GET")

	// Market insights
	apiV1.HandleFunc("/market/insights", marketHandler.Insights).Methods("GET")
	apiV1.HandleFunc("/market/companies", marketHandler.Companies).Methods("GET")
	apiV1.HandleFunc("/market/skills", marketHandler.Skills).Methods("GET")

	// AI generation jobs
	apiV1.HandleFunc("/ai/generate", aiHandler.Generate).Methods("POST")
	apiV1.HandleFunc("/ai/jobs/{id}/status", aiHandler.JobStatus).Methods("GET")
	apiV1.HandleFunc("/ai/jobs/{id}/cancel", aiHandler.Cancel).Methods("POST")
	apiV1.HandleFunc("/ai/estimate", aiHandler.Estimate).Methods("POST")
	apiV1.HandleFunc("/ai/validate", aiHandler.Validate).Methods("POST")

	// Telemetry
	apiV1.HandleFunc("/telemetry/activities", telemetryHandler.CreateActivity).Methods("POST")
	apiV1.HandleFunc("/telemetry/progress", telemetryHandler.Progress).Methods("GET")

	return r
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func nowMilli() int64 {
	return time.Now().UTC().UnixMilli()
}
