package resources

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dzlearn/masar/pkg/models"
	"github.com/dzlearn/masar/pkg/repository"
)

// MaxPerStep caps how many resources get attached to one roadmap step. The
// top-ranked one is always marked required.
const MaxPerStep = 3

const searchCandidates = 10

// Retriever searches the resource catalog and ranks candidates against a
// roadmap step by a weighted fit score.
type Retriever struct {
	repo   repository.ResourceRepo
	logger *slog.Logger
}

func NewRetriever(repo repository.ResourceRepo, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{repo: repo, logger: logger}
}

// TopForStep returns up to MaxPerStep resources ranked by fit for the step,
// best first. The step title is searched keyword by keyword so a step like
// "Python Basics" still finds catalog entries titled differently.
func (r *Retriever) TopForStep(ctx context.Context, stepTitle string, sequence int, preferredTypes []string) ([]models.Resource, error) {
	seen := make(map[int64]bool)
	var candidates []models.Resource

	for _, kw := range strings.Fields(strings.ToLower(stepTitle)) {
		if len(kw) < 3 {
			continue
		}

		batch, err := r.repo.SearchResources(ctx, kw, nil, searchCandidates)
		if err != nil {
			return nil, fmt.Errorf("search resources for step %q: %w", stepTitle, err)
		}
		for _, c := range batch {
			if !seen[c.ID] {
				seen[c.ID] = true
				candidates = append(candidates, c)
			}
		}
		if len(candidates) >= searchCandidates {
			break
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ranked := Rank(candidates, stepTitle, sequence, preferredTypes)
	if len(ranked) > MaxPerStep {
		ranked = ranked[:MaxPerStep]
	}

	return ranked, nil
}

// Rank orders resources by fit score descending. Ties keep the catalog's
// quality ordering.
func Rank(candidates []models.Resource, stepTitle string, sequence int, preferredTypes []string) []models.Resource {
	type scored struct {
		res   models.Resource
		score float64
	}

	out := make([]scored, len(candidates))
	for i, c := range candidates {
		out[i] = scored{res: c, score: FitScore(&c, stepTitle, sequence, preferredTypes)}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })

	ranked := make([]models.Resource, len(out))
	for i, s := range out {
		ranked[i] = s.res
	}
	return ranked
}

// FitScore weighs catalog quality (30%), keyword overlap between the step
// title and the resource title (30%), a coarse difficulty bucket keyed off
// the step sequence (20%), and the learner's preferred resource types (20%).
func FitScore(res *models.Resource, stepTitle string, sequence int, preferredTypes []string) float64 {
	score := res.QualityScore * 0.3

	keywords := strings.Fields(strings.ToLower(stepTitle))
	if len(keywords) > 0 {
		title := strings.ToLower(res.Title)
		matched := 0
		for _, kw := range keywords {
			if strings.Contains(title, kw) {
				matched++
			}
		}
		overlap := float64(matched) / float64(len(keywords))
		if overlap > 1 {
			overlap = 1
		}
		score += overlap * 0.3
	}

	if difficultyForSequence(sequence) == res.Difficulty {
		score += 0.2
	}

	for _, t := range preferredTypes {
		if res.ResourceType == t {
			score += 0.2
			break
		}
	}

	return score
}

// Early steps expect beginner material, the middle band intermediate, and
// everything past sequence 5 advanced.
func difficultyForSequence(sequence int) string {
	switch {
	case sequence <= 2:
		return models.LevelBeginner
	case sequence <= 5:
		return models.LevelIntermediate
	default:
		return models.LevelAdvanced
	}
}

// PreferredTypes extracts the declared resource-type preferences from a
// profile's preference map.
func PreferredTypes(preferences map[string]any) []string {
	raw, ok := preferences["resource_types"]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
