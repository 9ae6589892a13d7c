package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dzlearn/masar/pkg/ollama"
)

type Config struct {
	Addr          string        `yaml:"addr"`
	JWTSecret     string        `yaml:"jwt_secret"`
	APITimeout    time.Duration `yaml:"timeout"`
	DatabasePath  string        `yaml:"database_path"`
	TokenDuration time.Duration `yaml:"token_duration"`
	WorkerCount   int           `yaml:"worker_count"`
	Scheduler     bool          `yaml:"scheduler"`
	Engine        EngineConfig  `yaml:"engine"`
	Ollama        ollama.Config `yaml:"ollama"`
}

type EngineConfig struct {
	// Enabled turns the LLM-backed planner on. When off (or on any LLM
	// failure) the rule-based planner is used.
	Enabled       bool          `yaml:"enabled"`
	Model         string        `yaml:"model"`
	Timeout       time.Duration `yaml:"timeout"`
	MinConfidence float64       `yaml:"min_confidence"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:          getEnv("MASAR_ADDR", ":8080"),
		JWTSecret:     getEnv("MASAR_JWT_SECRET", "supersecretkey"),
		APITimeout:    15 * time.Second,
		DatabasePath:  getEnv("MASAR_DATABASE_PATH", "masar.db"),
		TokenDuration: 1 * time.Hour,
		WorkerCount:   getEnvInt("MASAR_WORKERS", 4),
		Scheduler:     true,
		Engine: EngineConfig{
			Enabled:       getEnv("MASAR_LLM_ENABLED", "") == "true",
			Model:         getEnv("MASAR_LLM_MODEL", "llama3"),
			Timeout:       60 * time.Second,
			MinConfidence: 0.5,
		},
		Ollama: ollama.DefaultConfig(),
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return def
}
