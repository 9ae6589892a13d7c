package api_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/dzlearn/masar/pkg/models"
)

func createQuiz(t *testing.T, h http.Handler, token string, stepID int64) models.Assessment {
	t.Helper()

	rr := doJSON(t, h, http.MethodPost, fmt.Sprintf("/v1/steps/%d/assessments", stepID), token, map[string]any{
		"title":     "Variables and types check",
		"questions": []string{"What is a variable?", "Name three built-in types."},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create assessment status %d: %s", rr.Code, rr.Body.String())
	}
	var a models.Assessment
	decodeBody(t, rr, &a)
	return a
}

func TestAssessmentCreateAndList(t *testing.T) {
	h, _ := newServer(t)
	token := signup(t, h, "quiz@example.com")
	onboard(t, h, token, "python")
	detail := generateRoadmap(t, h, token)

	step := detail.Steps[0]
	a := createQuiz(t, h, token, step.ID)
	if a.ID <= 0 || a.StepID != step.ID {
		t.Fatalf("unexpected assessment %+v", a)
	}
	if a.PassScore != 0.7 {
		t.Fatalf("pass score should default to 0.7, got %v", a.PassScore)
	}

	rr := doJSON(t, h, http.MethodGet, fmt.Sprintf("/v1/steps/%d/assessments", step.ID), token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status %d: %s", rr.Code, rr.Body.String())
	}
	var list struct {
		Items []models.Assessment `json:"items"`
	}
	decodeBody(t, rr, &list)
	if len(list.Items) != 1 || list.Items[0].ID != a.ID {
		t.Fatalf("expected the created assessment back, got %+v", list.Items)
	}
	if len(list.Items[0].Questions) != 2 {
		t.Fatalf("questions did not round-trip: %+v", list.Items[0].Questions)
	}
}

func TestAssessmentCreateValidation(t *testing.T) {
	h, _ := newServer(t)
	token := signup(t, h, "quizval@example.com")
	onboard(t, h, token, "python")
	detail := generateRoadmap(t, h, token)
	step := detail.Steps[0]

	cases := []map[string]any{
		{"title": "", "questions": []string{"q"}},
		{"title": "No questions"},
		{"title": "Bad score", "questions": []string{"q"}, "pass_score": 1.5},
	}
	for i, body := range cases {
		rr := doJSON(t, h, http.MethodPost, fmt.Sprintf("/v1/steps/%d/assessments", step.ID), token, body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("case %d: status %d, want 400: %s", i, rr.Code, rr.Body.String())
		}
	}
}

func TestAssessmentAttemptPassMarksMastery(t *testing.T) {
	h, _ := newServer(t)
	token := signup(t, h, "mastery@example.com")
	onboard(t, h, token, "python")
	detail := generateRoadmap(t, h, token)

	step := detail.Steps[0]
	if step.MasteryCheckPassed {
		t.Fatalf("fresh step should not have mastery passed")
	}
	a := createQuiz(t, h, token, step.ID)

	// below the pass score: recorded but not passed
	rr := doJSON(t, h, http.MethodPost, fmt.Sprintf("/v1/assessments/%d/attempts", a.ID), token, map[string]any{"score": 0.5})
	if rr.Code != http.StatusCreated {
		t.Fatalf("attempt status %d: %s", rr.Code, rr.Body.String())
	}
	var res struct {
		Attempt       models.AssessmentAttempt `json:"attempt"`
		MasteryPassed bool                     `json:"mastery_passed"`
	}
	decodeBody(t, rr, &res)
	if res.Attempt.Passed || res.MasteryPassed {
		t.Fatalf("0.5 should not pass a 0.7 quiz: %+v", res)
	}

	// at the pass score: step mastery flips
	rr = doJSON(t, h, http.MethodPost, fmt.Sprintf("/v1/assessments/%d/attempts", a.ID), token, map[string]any{"score": 0.7})
	if rr.Code != http.StatusCreated {
		t.Fatalf("attempt status %d: %s", rr.Code, rr.Body.String())
	}
	decodeBody(t, rr, &res)
	if !res.Attempt.Passed || !res.MasteryPassed {
		t.Fatalf("0.7 should pass: %+v", res)
	}

	after := fetchDetail(t, h, token, detail.Roadmap.ID)
	if !after.Steps[0].MasteryCheckPassed {
		t.Fatalf("step mastery check should be persisted")
	}

	// both attempts show up, newest first
	rr = doJSON(t, h, http.MethodGet, "/v1/assessments/attempts", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("attempts status %d: %s", rr.Code, rr.Body.String())
	}
	var attempts struct {
		Items []models.AssessmentAttempt `json:"items"`
	}
	decodeBody(t, rr, &attempts)
	if len(attempts.Items) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts.Items))
	}
}

func TestAssessmentAttemptValidation(t *testing.T) {
	h, _ := newServer(t)
	token := signup(t, h, "attemptval@example.com")
	onboard(t, h, token, "python")
	detail := generateRoadmap(t, h, token)
	a := createQuiz(t, h, token, detail.Steps[0].ID)

	rr := doJSON(t, h, http.MethodPost, fmt.Sprintf("/v1/assessments/%d/attempts", a.ID), token, map[string]any{"score": 2.0})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range score status %d, want 400", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/v1/assessments/99999/attempts", token, map[string]any{"score": 0.9})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown assessment status %d, want 404", rr.Code)
	}
}

func TestAssessmentOwnership(t *testing.T) {
	h, _ := newServer(t)
	owner := signup(t, h, "quizowner@example.com")
	onboard(t, h, owner, "python")
	detail := generateRoadmap(t, h, owner)
	step := detail.Steps[0]
	a := createQuiz(t, h, owner, step.ID)

	other := signup(t, h, "quizother@example.com")

	rr := doJSON(t, h, http.MethodGet, fmt.Sprintf("/v1/steps/%d/assessments", step.ID), other, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("foreign step list status %d, want 404", rr.Code)
	}
	rr = doJSON(t, h, http.MethodPost, fmt.Sprintf("/v1/assessments/%d/attempts", a.ID), other, map[string]any{"score": 0.9})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("foreign attempt status %d, want 404", rr.Code)
	}
}
