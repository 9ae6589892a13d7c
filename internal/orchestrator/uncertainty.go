package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dzlearn/masar/pkg/models"
)

// MaxQuestions is the hard cap on clarifying questions per onboarding run.
const MaxQuestions = 3

// Sub-score weights. They sum to 1 so the weighted certainty stays in [0,1].
const (
	weightSubject     = 0.3
	weightLevel       = 0.2
	weightGoals       = 0.25
	weightTime        = 0.15
	weightPreferences = 0.1
)

var genericSubjectTerms = []string{"programming", "coding", "technology", "computer"}

// Scorer measures how incomplete or ambiguous a learner profile is and
// decides how many clarifying questions to surface.
type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// Uncertainty returns a score in [0,1]; higher means more uncertain.
func (s *Scorer) Uncertainty(p *models.LearnerProfile) float64 {
	certainty := s.scoreSubject(p)*weightSubject +
		s.scoreLevel(p)*weightLevel +
		s.scoreGoals(p)*weightGoals +
		s.scoreTime(p)*weightTime +
		s.scorePreferences(p)*weightPreferences

	return 1 - certainty
}

// RequiredQuestionCount maps an uncertainty score to the number of
// clarifying questions to ask (0 to MaxQuestions).
func (s *Scorer) RequiredQuestionCount(uncertainty float64) int {
	switch {
	case uncertainty < 0.2:
		return 0
	case uncertainty < 0.4:
		return 1
	case uncertainty < 0.6:
		return 2
	default:
		return MaxQuestions
	}
}

type candidateQuestion struct {
	question models.ClarifyingQuestion
	priority int
}

// GenerateQuestions returns up to count clarifying questions, targeting the
// weakest-scoring profile dimensions first.
func (s *Scorer) GenerateQuestions(p *models.LearnerProfile, count int) []models.ClarifyingQuestion {
	if count <= 0 {
		return nil
	}
	if count > MaxQuestions {
		count = MaxQuestions
	}

	var candidates []candidateQuestion

	if s.scoreSubject(p) < 0.7 {
		candidates = append(candidates, candidateQuestion{
			priority: 1,
			question: models.ClarifyingQuestion{
				ProfileID:    p.ID,
				QuestionText: fmt.Sprintf("You want to learn '%s'. Could you be more specific about what aspects interest you most?", p.Subject),
				QuestionType: models.QuestionText,
				TargetField:  "subject",
				IsRequired:   true,
			},
		})
	}

	if s.scoreLevel(p) < 0.7 {
		candidates = append(candidates, candidateQuestion{
			priority: 2,
			question: models.ClarifyingQuestion{
				ProfileID:    p.ID,
				QuestionText: "How would you describe your current experience with this subject?",
				QuestionType: models.QuestionSingleChoice,
				Options: []string{
					"Complete beginner - never studied this before",
					"Some exposure - watched videos or read articles",
					"Basic understanding - completed a course or tutorial",
					"Intermediate - built small projects",
					"Advanced - have professional experience",
				},
				TargetField: "level",
				IsRequired:  true,
			},
		})
	}

	if s.scoreGoals(p) < 0.7 {
		candidates = append(candidates, candidateQuestion{
			priority: 3,
			question: models.ClarifyingQuestion{
				ProfileID:    p.ID,
				QuestionText: "What do you want to achieve after completing this learning path?",
				QuestionType: models.QuestionMultipleChoice,
				Options: []string{
					"Career change / new job",
					"Skill upgrade for current role",
					"Personal project / hobby",
					"Academic requirement",
					"Teaching others",
				},
				TargetField: "goals",
				IsRequired:  true,
			},
		})
	}

	if s.scorePreferences(p) < 0.7 {
		candidates = append(candidates, candidateQuestion{
			priority: 4,
			question: models.ClarifyingQuestion{
				ProfileID:    p.ID,
				QuestionText: "What type of learning resources do you prefer?",
				QuestionType: models.QuestionMultipleChoice,
				Options: []string{
					"Video tutorials",
					"Written articles / documentation",
					"Interactive exercises",
					"Project-based learning",
					"Books / structured courses",
				},
				TargetField: "preferences",
				IsRequired:  true,
			},
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].priority < candidates[j].priority })
	if len(candidates) > count {
		candidates = candidates[:count]
	}

	out := make([]models.ClarifyingQuestion, len(candidates))
	for i, c := range candidates {
		c.question.Ord = i
		out[i] = c.question
	}

	return out
}

func (s *Scorer) scoreSubject(p *models.LearnerProfile) float64 {
	if p.Subject == "" {
		return 0
	}

	lengthScore := float64(len(p.Subject)) / 50
	if lengthScore > 1 {
		lengthScore = 1
	}

	lower := strings.ToLower(p.Subject)
	for _, term := range genericSubjectTerms {
		if strings.Contains(lower, term) {
			return lengthScore * 0.5
		}
	}

	return lengthScore
}

func (s *Scorer) scoreLevel(p *models.LearnerProfile) float64 {
	// default level means the learner probably never chose one
	if p.Level != models.LevelBeginner {
		return 0.8
	}
	return 0.5
}

func (s *Scorer) scoreGoals(p *models.LearnerProfile) float64 {
	if p.Goals == "" {
		return 0
	}

	score := float64(len(p.Goals)) / 200
	if score > 1 {
		return 1
	}
	return score
}

func (s *Scorer) scoreTime(p *models.LearnerProfile) float64 {
	score := 0.5 // base score for having weekly hours at all

	if p.Deadline != nil {
		score += 0.3
	}
	if p.WeeklyHours >= 5 {
		score += 0.2
	}

	if score > 1 {
		return 1
	}
	return score
}

func (s *Scorer) scorePreferences(p *models.LearnerProfile) float64 {
	if len(p.Preferences) == 0 {
		return 0
	}

	score := float64(len(p.Preferences)) / 5
	if score > 1 {
		return 1
	}
	return score
}
