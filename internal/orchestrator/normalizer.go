package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dzlearn/masar/pkg/models"
)

// subjectTaxonomy maps canonical subject keys to accepted aliases. Entries
// are matched in order, so input mentioning several subjects always resolves
// to the first listed match.
var subjectTaxonomy = []struct {
	canonical string
	aliases   []string
}{
	{"python", []string{"python", "py", "python3"}},
	{"javascript", []string{"javascript", "js", "node", "nodejs"}},
	{"web_development", []string{"web", "html", "css", "frontend", "backend"}},
	{"data_science", []string{"data science", "data analysis", "analytics"}},
	{"machine_learning", []string{"machine learning", "ml", "ai", "deep learning"}},
	{"databases", []string{"sql", "database", "mysql", "postgresql", "mongodb"}},
}

var levelMapping = map[string]string{
	"beginner":     models.LevelBeginner,
	"novice":       models.LevelBeginner,
	"intermediate": models.LevelIntermediate,
	"advanced":     models.LevelAdvanced,
	"expert":       models.LevelExpert,
}

// NormalizedProfile is the canonical representation of a learner profile.
// Hash is a SHA-256 over the sorted-key JSON serialization of every other
// field, kept on the roadmap for reproducibility tracking.
type NormalizedProfile struct {
	SubjectOriginal  string
	SubjectCanonical string
	LevelCanonical   string
	WeeklyHours      int
	Deadline         *time.Time
	Language         string
	Goals            string
	Preferences      map[string]any
	Hash             string
}

// Normalizer maps free-text subject and level input onto the canonical
// taxonomy. Unmatched input degrades to defaults rather than erroring.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Normalize(p *models.LearnerProfile) (*NormalizedProfile, error) {
	if p == nil {
		return nil, fmt.Errorf("profile is nil")
	}

	np := &NormalizedProfile{
		SubjectOriginal:  p.Subject,
		SubjectCanonical: n.normalizeSubject(p.Subject),
		LevelCanonical:   n.normalizeLevel(p.Level),
		WeeklyHours:      p.WeeklyHours,
		Deadline:         p.Deadline,
		Language:         p.Language,
		Goals:            p.Goals,
		Preferences:      p.Preferences,
	}

	hash, err := np.computeHash()
	if err != nil {
		return nil, fmt.Errorf("compute profile hash: %w", err)
	}
	np.Hash = hash

	return np, nil
}

func (n *Normalizer) normalizeSubject(subject string) string {
	s := strings.ToLower(strings.TrimSpace(subject))

	for _, entry := range subjectTaxonomy {
		for _, alias := range entry.aliases {
			if s == alias {
				return entry.canonical
			}
		}
		if strings.Contains(s, entry.canonical) {
			return entry.canonical
		}
	}

	// custom subject, slugified
	return strings.ReplaceAll(s, " ", "_")
}

func (n *Normalizer) normalizeLevel(level string) string {
	if canonical, ok := levelMapping[strings.ToLower(strings.TrimSpace(level))]; ok {
		return canonical
	}
	return models.LevelBeginner
}

func (np *NormalizedProfile) computeHash() (string, error) {
	var deadline any
	if np.Deadline != nil {
		deadline = np.Deadline.UTC().Format(time.RFC3339)
	}

	// maps serialize with sorted keys, which keeps the hash stable
	fields := map[string]any{
		"subject_original":  np.SubjectOriginal,
		"subject_canonical": np.SubjectCanonical,
		"level_canonical":   np.LevelCanonical,
		"weekly_hours":      np.WeeklyHours,
		"deadline":          deadline,
		"language":          np.Language,
		"goals":             np.Goals,
		"preferences":       np.Preferences,
	}

	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// ValidateProfile returns field-level messages for input that cannot produce
// a sensible roadmap. An empty slice means the profile is usable.
func (n *Normalizer) ValidateProfile(p *models.LearnerProfile) []string {
	var errs []string

	if len(strings.TrimSpace(p.Subject)) < 2 {
		errs = append(errs, "subject must be at least 2 characters")
	}
	if p.WeeklyHours < 1 {
		errs = append(errs, "weekly hours must be at least 1")
	}
	if p.WeeklyHours > 80 {
		errs = append(errs, "weekly hours cannot exceed 80")
	}
	if p.Deadline != nil && p.Deadline.Before(time.Now().UTC().Truncate(24*time.Hour)) {
		errs = append(errs, "deadline cannot be in the past")
	}

	return errs
}
