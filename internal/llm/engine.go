package llm

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qri-io/jsonschema"

	"github.com/dzlearn/masar/internal/config"
	"github.com/dzlearn/masar/pkg/ollama"
)

// ErrDisabled is returned when the engine is not configured; callers fall
// back to the rule-based planner.
var ErrDisabled = errors.New("llm engine disabled")

//go:embed roadmap_schema.json
var roadmapSchemaJSON []byte

const roadmapPrompt = `You are an expert learning path designer. Given a learner's profile,
create a detailed, personalized learning roadmap. Return your response as valid JSON with the following structure:
{
    "title": "Learning Path Title",
    "description": "Brief description of the learning path",
    "estimated_total_hours": number,
    "steps": [
        {
            "sequence": number,
            "title": "Step Title",
            "description": "Detailed step description",
            "objectives": ["objective1", "objective2"],
            "topics": ["topic1", "topic2"],
            "estimated_hours": number,
            "mastery_check": "How to verify mastery of this step",
            "resources_keywords": ["keyword1", "keyword2"]
        }
    ]
}
Make the roadmap practical, achievable, and tailored to the learner's level and time constraints.

Create a learning roadmap for a learner with the following profile:

Subject: {{.Subject}}
Current Level: {{.Level}}
Learning Goals: {{.Goals}}
Weekly Hours Available: {{.WeeklyHours}} hours
Deadline: {{.Deadline}}
Preferred Resources: {{.PreferredResources}}
Language: {{.Language}}

Generate a comprehensive, step-by-step learning roadmap as JSON.`

// ProfileInput is the learner context handed to the model.
type ProfileInput struct {
	Subject            string
	Level              string
	Goals              string
	WeeklyHours        int
	Deadline           string
	PreferredResources string
	Language           string
}

// GeneratedStep is one step of a model-produced roadmap.
type GeneratedStep struct {
	Sequence          int      `json:"sequence"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Objectives        []string `json:"objectives"`
	Topics            []string `json:"topics"`
	EstimatedHours    float64  `json:"estimated_hours"`
	MasteryCheck      string   `json:"mastery_check"`
	ResourcesKeywords []string `json:"resources_keywords"`
}

// GeneratedRoadmap is the structured response we expect from the model.
type GeneratedRoadmap struct {
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	EstimatedTotalHours float64         `json:"estimated_total_hours"`
	Steps               []GeneratedStep `json:"steps"`

	// Raw captures the original model output for auditing.
	Raw string `json:"-"`
}

// Engine wraps an Ollama client for roadmap generation. Any transport,
// parse, or schema failure is an error the caller handles by falling back
// to the rule-based planner; nothing here surfaces to the end user.
type Engine struct {
	client *ollama.Client
	cfg    config.EngineConfig
	schema *jsonschema.Schema
	logger *slog.Logger
}

func NewEngine(client *ollama.Client, cfg config.EngineConfig, logger *slog.Logger) (*Engine, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(roadmapSchemaJSON, schema); err != nil {
		return nil, fmt.Errorf("compile roadmap schema: %w", err)
	}

	return &Engine{client: client, cfg: cfg, schema: schema, logger: logger}, nil
}

// Enabled reports whether the engine can serve generation requests.
func (e *Engine) Enabled() bool {
	return e.cfg.Enabled && e.client != nil
}

// GenerateRoadmap asks the model for a personalized roadmap and validates
// the response against the roadmap schema.
func (e *Engine) GenerateRoadmap(ctx context.Context, in ProfileInput) (*GeneratedRoadmap, error) {
	if !e.Enabled() {
		return nil, ErrDisabled
	}

	if in.Deadline == "" {
		in.Deadline = "No specific deadline"
	}
	if in.PreferredResources == "" {
		in.PreferredResources = "Any"
	}

	prompt, err := ollama.RenderTemplate(roadmapPrompt, in)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	ctxReq, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	res, err := e.client.Generate(ctxReq, e.cfg.Model, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	content := modelText(res.Text)
	j := extractJSON(content)
	if j == "" {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	verrs, err := e.schema.ValidateBytes(ctx, []byte(j))
	if err != nil {
		return nil, fmt.Errorf("schema validate: %w", err)
	}
	if len(verrs) > 0 {
		var sb strings.Builder
		for _, v := range verrs {
			sb.WriteString(v.Message)
			sb.WriteString("; ")
		}
		return nil, fmt.Errorf("response does not match roadmap schema: %s", sb.String())
	}

	var rm GeneratedRoadmap
	if err := json.Unmarshal([]byte(j), &rm); err != nil {
		return nil, fmt.Errorf("unmarshal roadmap: %w", err)
	}
	rm.Raw = content

	e.logger.Debug("llm roadmap generated", "steps", len(rm.Steps), "subject", in.Subject)
	return &rm, nil
}

// Health checks the underlying model server.
func (e *Engine) Health(ctx context.Context) error {
	if !e.Enabled() {
		return ErrDisabled
	}
	return e.client.Health(ctx)
}

// modelText unwraps the generate response envelope when present.
func modelText(s string) string {
	var wrapper struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal([]byte(s), &wrapper); err == nil && wrapper.Response != "" {
		return wrapper.Response
	}
	return s
}

// extractJSON returns the substring from the first '{' to the last '}' in
// the input, handling model outputs that wrap JSON in text or markdown.
func extractJSON(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}
