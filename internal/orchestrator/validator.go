package orchestrator

import (
	"fmt"
	"sort"

	"github.com/dzlearn/masar/pkg/models"
)

// Issue severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue codes.
const (
	CodeNoSteps          = "no_steps"
	CodePrereqMissing    = "prereq_missing"
	CodePrereqOrdering   = "prereq_ordering"
	CodeTimeBudget       = "time_budget"
	CodeLongDuration     = "long_duration"
	CodeEmptyTitle       = "empty_title"
	CodeThinDescription  = "thin_description"
	CodeInvalidDuration  = "invalid_duration"
	CodeSequenceGap      = "sequence_gap"
	CodeMissingResources = "missing_resources"
)

// Issue is a single validation finding. Sequence is the offending step's
// sequence number, or 0 for roadmap-level findings.
type Issue struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence,omitempty"`
}

// Report collects validation findings. Blocking violations and advisories
// share one list, distinguished by severity.
type Report struct {
	Issues []Issue `json:"issues"`
}

func (r *Report) Valid() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return false
		}
	}
	return true
}

func (r *Report) Errors() []Issue {
	return r.filter(SeverityError)
}

func (r *Report) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

func (r *Report) filter(severity string) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == severity {
			out = append(out, i)
		}
	}
	return out
}

func (r *Report) addError(code string, seq int, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: SeverityError, Code: code, Sequence: seq, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) addWarning(code string, seq int, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: SeverityWarning, Code: code, Sequence: seq, Message: fmt.Sprintf(format, args...)})
}

// Validator checks a persisted roadmap's structural invariants. Findings are
// advisory and never block creation.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate runs every check over a roadmap and its steps. resourceCounts maps
// step ID to the number of attached resources.
func (v *Validator) Validate(rm *models.Roadmap, steps []models.RoadmapStep, profile *models.LearnerProfile, resourceCounts map[int64]int64) Report {
	var report Report

	if len(steps) == 0 {
		report.addError(CodeNoSteps, 0, "roadmap has no steps")
		return report
	}

	sorted := make([]models.RoadmapStep, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })

	v.checkPrereqOrdering(&report, sorted)
	v.checkTimeBudget(&report, sorted, profile)
	v.checkEmptySteps(&report, sorted)
	v.checkSequenceContinuity(&report, sorted)
	v.checkResourceCoverage(&report, sorted, resourceCounts)

	return report
}

func (v *Validator) checkPrereqOrdering(report *Report, steps []models.RoadmapStep) {
	seqByID := make(map[int64]int, len(steps))
	titleByID := make(map[int64]string, len(steps))
	for _, s := range steps {
		seqByID[s.ID] = s.Sequence
		titleByID[s.ID] = s.Title
	}

	for _, s := range steps {
		for _, prereqID := range s.PrereqIDs {
			prereqSeq, ok := seqByID[prereqID]
			if !ok {
				report.addError(CodePrereqMissing, s.Sequence, "step %q has a prerequisite outside this roadmap", s.Title)
				continue
			}
			if prereqSeq >= s.Sequence {
				report.addError(CodePrereqOrdering, s.Sequence,
					"step %q (seq %d) has prerequisite %q (seq %d) that appears later or at the same position",
					s.Title, s.Sequence, titleByID[prereqID], prereqSeq)
			}
		}
	}
}

func (v *Validator) checkTimeBudget(report *Report, steps []models.RoadmapStep, profile *models.LearnerProfile) {
	if profile == nil || profile.WeeklyHours <= 0 {
		return
	}

	var totalHours float64
	for _, s := range steps {
		totalHours += s.EstimatedHours
	}

	if profile.Deadline != nil {
		weeks := profile.Deadline.Sub(nowTime()).Hours() / 24 / 7
		if weeks < 1 {
			weeks = 1
		}
		available := weeks * float64(profile.WeeklyHours)
		if totalHours > available {
			report.addError(CodeTimeBudget, 0,
				"roadmap requires %.0f hours but only %.0f hours are available before the deadline",
				totalHours, available)
		}
	}

	estimatedWeeks := totalHours / float64(profile.WeeklyHours)
	if estimatedWeeks > 52 {
		report.addWarning(CodeLongDuration, 0,
			"roadmap would take approximately %.1f weeks at %d hours/week",
			estimatedWeeks, profile.WeeklyHours)
	}
}

func (v *Validator) checkEmptySteps(report *Report, steps []models.RoadmapStep) {
	for _, s := range steps {
		if len(s.Title) < 3 {
			report.addError(CodeEmptyTitle, s.Sequence, "step %d has an empty or invalid title", s.Sequence)
		}
		if len(s.Description) < 5 {
			report.addWarning(CodeThinDescription, s.Sequence, "step %q has a minimal description", s.Title)
		}
		if s.EstimatedHours <= 0 {
			report.addError(CodeInvalidDuration, s.Sequence, "step %q has an invalid duration", s.Title)
		}
	}
}

func (v *Validator) checkSequenceContinuity(report *Report, steps []models.RoadmapStep) {
	have := make(map[int]bool, len(steps))
	first, last := steps[0].Sequence, steps[0].Sequence
	for _, s := range steps {
		have[s.Sequence] = true
		if s.Sequence < first {
			first = s.Sequence
		}
		if s.Sequence > last {
			last = s.Sequence
		}
	}

	var missing []int
	for seq := first; seq <= last; seq++ {
		if !have[seq] {
			missing = append(missing, seq)
		}
	}
	if len(missing) > 0 {
		report.addWarning(CodeSequenceGap, 0, "sequence gaps at positions: %v", missing)
	}
}

func (v *Validator) checkResourceCoverage(report *Report, steps []models.RoadmapStep, resourceCounts map[int64]int64) {
	uncovered := 0
	for _, s := range steps {
		if resourceCounts[s.ID] == 0 {
			uncovered++
		}
	}
	if uncovered > 0 {
		report.addWarning(CodeMissingResources, 0, "%d steps have no resources attached", uncovered)
	}
}

// ValidateStepMove reports whether moving a step to newSeq would place it
// before one of its prerequisites. Unlike roadmap validation this check is
// enforced at write time, rejecting edits that would corrupt ordering.
func (v *Validator) ValidateStepMove(step *models.RoadmapStep, newSeq int, siblings []models.RoadmapStep) error {
	prereqs := make(map[int64]bool, len(step.PrereqIDs))
	for _, id := range step.PrereqIDs {
		prereqs[id] = true
	}

	for _, s := range siblings {
		if prereqs[s.ID] && s.Sequence >= newSeq {
			return fmt.Errorf("cannot move step before its prerequisite %q", s.Title)
		}
	}

	return nil
}
