package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dzlearn/masar/api"
	dbassets "github.com/dzlearn/masar/db"
	"github.com/dzlearn/masar/internal/config"
	"github.com/dzlearn/masar/internal/db"
	"github.com/dzlearn/masar/internal/jobs"
	"github.com/dzlearn/masar/internal/llm"
	"github.com/dzlearn/masar/internal/market"
	"github.com/dzlearn/masar/internal/orchestrator"
	"github.com/dzlearn/masar/internal/repository/sqlite"
	"github.com/dzlearn/masar/internal/resources"
	"github.com/dzlearn/masar/pkg/ollama"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	api.SetLogger(logger)

	log.Printf("Starting masar server version %s (built at %s)", version, buildTime)

	ctx := context.Background()

	// Open database connection and run migrations + catalog seeds
	conn, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := db.Migrate(ctx, conn, dbassets.Migrations, dbassets.SeedFiles); err != nil {
		log.Fatalf("Failed to migrate DB: %v", err)
	}

	repo := sqlite.New(conn, logger)

	// LLM engine is optional; the orchestrator falls back to the
	// rule-based planner when it is nil or unhealthy.
	var engine *llm.Engine
	if cfg.Engine.Enabled {
		client, err := ollama.NewDefaultClient(cfg.Ollama)
		if err != nil {
			log.Fatalf("Failed to create ollama client: %v", err)
		}
		engine, err = llm.NewEngine(client, cfg.Engine, logger)
		if err != nil {
			log.Fatalf("Failed to create llm engine: %v", err)
		}
	}

	orc, err := orchestrator.New(repo, resources.NewRetriever(repo, logger), engine, logger)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}
	recommender, err := resources.NewRecommender()
	if err != nil {
		log.Fatalf("Failed to load curated catalog: %v", err)
	}
	analyzer, err := market.NewAnalyzer()
	if err != nil {
		log.Fatalf("Failed to load market data: %v", err)
	}

	// Background workers for generation jobs
	pool := jobs.NewWorkerPool(repo, map[string]jobs.Handler{
		jobs.TypeGenerateRoadmap: jobs.NewGenerateHandler(repo, orc, logger),
	}, logger, cfg.WorkerCount)
	pool.Start(ctx)

	var scheduler *jobs.Scheduler
	if cfg.Scheduler {
		scheduler = jobs.NewScheduler(repo, logger)
		scheduler.Start(ctx)
	}

	handler := api.SetupRoutes(cfg, version, buildTime, api.Deps{
		Repo:         repo,
		Orchestrator: orc,
		Pool:         pool,
		Recommender:  recommender,
		Analyzer:     analyzer,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Drain the background workers before closing the database
	pool.Stop()
	if scheduler != nil {
		scheduler.Stop()
	}

	if err := conn.Close(); err != nil {
		log.Printf("Error closing DB: %v", err)
	}

	log.Println("Server exited")
}
