// Package market provides skill-demand insights for the Algerian tech job
// market, backed by a versioned reference-data file.
package market

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

//go:embed market.json
var marketData []byte

// SkillDemand describes demand for one skill.
type SkillDemand struct {
	DemandScore   float64  `json:"demand_score"`
	GrowthTrend   string   `json:"growth_trend"`
	AverageSalary string   `json:"average_salary"`
	RelatedSkills []string `json:"related_skills"`
	JobCount      int      `json:"job_count"`
	Category      string   `json:"category"`
}

// Company is one employer entry in the reference data.
type Company struct {
	Name           string   `json:"name"`
	NameAr         string   `json:"name_ar,omitempty"`
	Description    string   `json:"description,omitempty"`
	CompanyType    string   `json:"company_type"`
	Industry       string   `json:"industry"`
	Wilaya         string   `json:"wilaya"`
	Website        string   `json:"website,omitempty"`
	RequiredSkills []string `json:"required_skills"`
	IsHiring       bool     `json:"is_hiring"`
	RemoteFriendly bool     `json:"remote_friendly"`
	MatchScore     float64  `json:"match_score,omitempty"`
}

// Insights is the localized market summary for one subject.
type Insights struct {
	Subject       string   `json:"subject"`
	DemandScore   float64  `json:"demand_score"`
	DemandLevel   string   `json:"demand_level"`
	GrowthTrend   string   `json:"growth_trend"`
	GrowthText    string   `json:"growth_text"`
	AverageSalary string   `json:"average_salary"`
	JobCount      int      `json:"job_count"`
	RelatedSkills []string `json:"related_skills"`
	Message       string   `json:"message"`
}

// RecommendedSkill is a skill suggestion with a localized reason.
type RecommendedSkill struct {
	Skill       string  `json:"skill"`
	DemandScore float64 `json:"demand_score"`
	Reason      string  `json:"reason"`
}

type dataset struct {
	Skills    map[string]SkillDemand `json:"skills"`
	Companies []Company              `json:"companies"`
}

// Analyzer answers skill-demand queries against the embedded dataset.
type Analyzer struct {
	data dataset
}

func NewAnalyzer() (*Analyzer, error) {
	var d dataset
	if err := json.Unmarshal(marketData, &d); err != nil {
		return nil, fmt.Errorf("parse market data: %w", err)
	}
	return &Analyzer{data: d}, nil
}

// SkillDemand returns demand data for a skill, with a partial-match fallback
// and a neutral default for unknown skills.
func (a *Analyzer) SkillDemand(skill string) SkillDemand {
	key := skillKey(skill)

	if d, ok := a.data.Skills[key]; ok {
		return d
	}

	for k, d := range a.data.Skills {
		if strings.Contains(key, k) || strings.Contains(k, key) {
			return d
		}
	}

	return SkillDemand{
		DemandScore:   0.5,
		GrowthTrend:   "stable",
		AverageSalary: "N/A",
		Category:      "unknown",
	}
}

func skillKey(skill string) string {
	s := strings.ToLower(strings.TrimSpace(skill))
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, "-", "_")
}

var demandLevels = map[string]map[string]string{
	"high":     {"ar": "طلب مرتفع جداً", "fr": "Très forte demande", "en": "Very high demand"},
	"good":     {"ar": "طلب جيد", "fr": "Bonne demande", "en": "Good demand"},
	"moderate": {"ar": "طلب متوسط", "fr": "Demande modérée", "en": "Moderate demand"},
	"low":      {"ar": "طلب منخفض", "fr": "Faible demande", "en": "Low demand"},
}

var growthTexts = map[string]map[string]string{
	"rising":    {"ar": "في ارتفاع", "fr": "En hausse", "en": "Rising"},
	"stable":    {"ar": "مستقر", "fr": "Stable", "en": "Stable"},
	"declining": {"ar": "في انخفاض", "fr": "En baisse", "en": "Declining"},
}

var insightMessages = map[string]map[string]string{
	"ar": {
		"high":     "مهارة %s مطلوبة جداً في السوق الجزائرية! هناك حوالي %d فرصة عمل متاحة حالياً.",
		"good":     "%s لها طلب جيد في الجزائر. استمر في التعلم لتحسين فرصك!",
		"moderate": "%s لها طلب متوسط في الجزائر. قد تحتاج لتعلم مهارات إضافية مكملة.",
		"low":      "%s لها طلب محدود حالياً في الجزائر. فكر في دمجها مع مهارات أخرى مطلوبة.",
	},
	"fr": {
		"high":     "La compétence %s est très demandée sur le marché algérien! Il y a environ %d opportunités d'emploi disponibles.",
		"good":     "%s a une bonne demande en Algérie. Continuez à apprendre pour améliorer vos chances!",
		"moderate": "%s a une demande modérée en Algérie. Vous pourriez avoir besoin de compétences complémentaires.",
		"low":      "%s a une demande limitée actuellement en Algérie. Pensez à la combiner avec d'autres compétences demandées.",
	},
	"en": {
		"high":     "%s skill is in very high demand in the Algerian market! There are about %d job opportunities currently available.",
		"good":     "%s has good demand in Algeria. Keep learning to improve your chances!",
		"moderate": "%s has moderate demand in Algeria. You may need to learn complementary skills.",
		"low":      "%s has limited demand currently in Algeria. Consider combining it with other in-demand skills.",
	},
}

func normalizeLang(language string) string {
	switch language {
	case "ar", "fr", "en":
		return language
	default:
		return "ar"
	}
}

func demandBucket(score float64) string {
	switch {
	case score >= 0.8:
		return "high"
	case score >= 0.6:
		return "good"
	case score >= 0.4:
		return "moderate"
	default:
		return "low"
	}
}

// MarketInsights builds a localized market summary for a subject.
func (a *Analyzer) MarketInsights(subject, language string) Insights {
	skill := a.SkillDemand(subject)
	lang := normalizeLang(language)
	bucket := demandBucket(skill.DemandScore)

	var message string
	if bucket == "high" {
		message = fmt.Sprintf(insightMessages[lang][bucket], subject, skill.JobCount)
	} else {
		message = fmt.Sprintf(insightMessages[lang][bucket], subject)
	}

	return Insights{
		Subject:       subject,
		DemandScore:   skill.DemandScore,
		DemandLevel:   demandLevels[bucket][lang],
		GrowthTrend:   skill.GrowthTrend,
		GrowthText:    growthTexts[skill.GrowthTrend][lang],
		AverageSalary: skill.AverageSalary,
		JobCount:      skill.JobCount,
		RelatedSkills: skill.RelatedSkills,
		Message:       message,
	}
}

// MatchingCompanies returns up to 10 companies hiring for any of the given
// skills, best match first. An empty wilaya matches everywhere.
func (a *Analyzer) MatchingCompanies(skills []string, wilaya string) []Company {
	want := make(map[string]bool, len(skills))
	for _, s := range skills {
		want[skillKey(s)] = true
	}

	var matching []Company
	for _, c := range a.data.Companies {
		if len(c.RequiredSkills) == 0 {
			continue
		}
		matched := 0
		for _, rs := range c.RequiredSkills {
			if want[skillKey(rs)] {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		if wilaya != "" && c.Wilaya != wilaya && c.Wilaya != "remote" {
			continue
		}

		c.MatchScore = float64(matched) / float64(len(c.RequiredSkills))
		matching = append(matching, c)
	}

	sort.SliceStable(matching, func(i, j int) bool { return matching[i].MatchScore > matching[j].MatchScore })
	if len(matching) > 10 {
		matching = matching[:10]
	}
	return matching
}

var recommendationReasons = map[string]string{
	"ar": "مكمل ل %s ومطلوب في السوق",
	"fr": "Complémentaire à %s et demandé sur le marché",
	"en": "Complementary to %s and in demand",
}

// RecommendedSkills suggests up to 5 related skills worth learning next,
// sorted by market demand.
func (a *Analyzer) RecommendedSkills(currentSkills []string, language string) []RecommendedSkill {
	lang := normalizeLang(language)

	have := make(map[string]bool, len(currentSkills))
	for _, s := range currentSkills {
		have[skillKey(s)] = true
	}

	seen := make(map[string]bool)
	var out []RecommendedSkill
	for _, s := range currentSkills {
		demand := a.SkillDemand(s)
		for _, related := range demand.RelatedSkills {
			key := skillKey(related)
			if have[key] || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, RecommendedSkill{
				Skill:       related,
				DemandScore: a.SkillDemand(related).DemandScore,
				Reason:      fmt.Sprintf(recommendationReasons[lang], s),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].DemandScore > out[j].DemandScore })
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}
