package orchestrator

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dzlearn/masar/pkg/models"
)

// PlannerVersion is recorded on generated roadmaps.
const PlannerVersion = "1.0"

//go:embed graphs.json
var graphsData []byte

type graphStep struct {
	ID      int      `json:"id"`
	Title   string   `json:"title"`
	Topics  []string `json:"topics"`
	Hours   float64  `json:"hours"`
	Prereqs []int    `json:"prereqs"`
}

type goalStep struct {
	Keywords []string `json:"keywords"`
	Title    string   `json:"title"`
	Topics   []string `json:"topics"`
	Hours    float64  `json:"hours"`
}

type graphCatalog struct {
	Subjects  map[string][]graphStep `json:"subjects"`
	Default   []graphStep            `json:"default"`
	GoalSteps []goalStep             `json:"goal_steps"`
}

// PlannedStep is one unit of the plan before persistence. Prereqs reference
// graph step IDs, which the orchestrator resolves to sequences when storing.
type PlannedStep struct {
	GraphID     int
	Title       string
	Description string
	Topics      []string
	Objectives  []string
	Sequence    int
	Hours       float64
	Prereqs     []int
}

// Planner expands the per-subject prerequisite graph into a personalized
// ordered step list, filtered by level and rescaled to fit the learner's
// deadline budget.
type Planner struct {
	catalog graphCatalog
}

func NewPlanner() (*Planner, error) {
	var catalog graphCatalog
	if err := json.Unmarshal(graphsData, &catalog); err != nil {
		return nil, fmt.Errorf("parse prerequisite graphs: %w", err)
	}
	if len(catalog.Default) == 0 {
		return nil, fmt.Errorf("prerequisite graph catalog has no default graph")
	}

	return &Planner{catalog: catalog}, nil
}

// Subjects returns the canonical subject keys with a dedicated graph.
func (pl *Planner) Subjects() []string {
	out := make([]string, 0, len(pl.catalog.Subjects))
	for k := range pl.catalog.Subjects {
		out = append(out, k)
	}
	return out
}

func (pl *Planner) Plan(np *NormalizedProfile) []PlannedStep {
	graph, ok := pl.catalog.Subjects[np.SubjectCanonical]
	if !ok {
		graph = pl.catalog.Default
	}

	steps := filterByLevel(graph, np.LevelCanonical)
	steps = pl.insertGoalSteps(steps, np.Goals)
	steps = scaleForDeadline(steps, np.Deadline, np.WeeklyHours)

	out := make([]PlannedStep, len(steps))
	for i, s := range steps {
		objectives := make([]string, len(s.Topics))
		for j, topic := range s.Topics {
			objectives[j] = "Understand " + topic
		}

		out[i] = PlannedStep{
			GraphID:     s.ID,
			Title:       s.Title,
			Description: "Learn about: " + strings.Join(s.Topics, ", "),
			Topics:      s.Topics,
			Objectives:  objectives,
			Sequence:    i + 1,
			Hours:       s.Hours,
			Prereqs:     s.Prereqs,
		}
	}

	return out
}

func filterByLevel(graph []graphStep, level string) []graphStep {
	out := make([]graphStep, len(graph))
	copy(out, graph)

	switch level {
	case models.LevelBeginner:
		return out
	case models.LevelIntermediate:
		if len(out) > 2 {
			return out[1:]
		}
		return out
	case models.LevelAdvanced:
		if len(out) < 2 {
			return out
		}
		return out[len(out)/2:]
	default: // expert
		if len(out) >= 2 {
			return out[len(out)-2:]
		}
		return out
	}
}

// insertGoalSteps appends goal-driven extra steps matched against the
// free-text goals, placed before the first step whose title mentions a
// project (or at the end when there is none).
func (pl *Planner) insertGoalSteps(steps []graphStep, goals string) []graphStep {
	if goals == "" {
		return steps
	}
	lower := strings.ToLower(goals)

	nextID := 0
	for _, s := range steps {
		if s.ID > nextID {
			nextID = s.ID
		}
	}

	for _, gs := range pl.catalog.GoalSteps {
		matched := false
		for _, kw := range gs.Keywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		nextID++
		extra := graphStep{ID: nextID, Title: gs.Title, Topics: gs.Topics, Hours: gs.Hours}

		pos := len(steps)
		for i, s := range steps {
			if strings.Contains(strings.ToLower(s.Title), "project") {
				pos = i
				break
			}
		}

		steps = append(steps[:pos], append([]graphStep{extra}, steps[pos:]...)...)
	}

	return steps
}

// scaleForDeadline rescales hours by a single proportional factor when the
// plan exceeds the hours available before the deadline; no step ever drops
// below one hour.
func scaleForDeadline(steps []graphStep, deadline *time.Time, weeklyHours int) []graphStep {
	if deadline == nil {
		return steps
	}

	daysAvailable := time.Until(*deadline).Hours() / 24
	weeksAvailable := daysAvailable / 7
	if weeksAvailable < 1 {
		weeksAvailable = 1
	}
	available := weeksAvailable * float64(weeklyHours)

	var total float64
	for _, s := range steps {
		total += s.Hours
	}
	if total <= available || total == 0 {
		return steps
	}

	factor := available / total
	for i := range steps {
		scaled := math.Round(steps[i].Hours*factor*10) / 10
		if scaled < 1 {
			scaled = 1
		}
		steps[i].Hours = scaled
	}

	return steps
}

// TotalHours sums the plan's estimated hours.
func TotalHours(steps []PlannedStep) float64 {
	var total float64
	for _, s := range steps {
		total += s.Hours
	}
	return total
}
