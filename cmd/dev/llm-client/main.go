// Command llm-client is a development helper for poking a local ollama
// instance with the roadmap generation prompt, outside the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/dzlearn/masar/pkg/ollama"
)

const prompt = `You are an expert learning path designer. Given a learner's profile,
produce a JSON object with a "title" and a "steps" array. Each step has
"title", "description", "topics" and "hours".

Profile:
- subject: %s
- level: %s
- weekly hours: %d

Respond with JSON only.`

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:11434", "ollama base URL")
		model   = flag.String("model", "qwen2.5:3b", "model name")
		subject = flag.String("subject", "python", "learning subject")
		level   = flag.String("level", "beginner", "learner level")
		weekly  = flag.Int("weekly", 10, "weekly hours")
	)
	flag.Parse()

	cfg := ollama.DefaultConfig()
	cfg.BaseURL = *baseURL
	cfg.Timeout = 120 * time.Second

	client, err := ollama.NewDefaultClient(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	res, err := client.Generate(ctx, *model, fmt.Sprintf(prompt, *subject, *level, *weekly))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(res.Text)
}
