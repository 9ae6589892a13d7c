package api_test

import (
	"net/http"
	"testing"
)

func TestMarketInsights(t *testing.T) {
	h, _ := newServer(t)
	token := signup(t, h, "market@example.com")

	rr := doJSON(t, h, http.MethodGet, "/v1/market/insights?subject=python&language=en", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("insights status %d: %s", rr.Code, rr.Body.String())
	}
	var ins struct {
		Subject     string  `json:"subject"`
		DemandScore float64 `json:"demand_score"`
		DemandLevel string  `json:"demand_level"`
		Message     string  `json:"message"`
	}
	decodeBody(t, rr, &ins)
	if ins.DemandScore != 0.9 {
		t.Fatalf("python demand %.2f", ins.DemandScore)
	}
	if ins.DemandLevel != "Very high demand" {
		t.Fatalf("demand level %q", ins.DemandLevel)
	}
	if ins.Message == "" {
		t.Fatalf("missing localized message")
	}

	rr = doJSON(t, h, http.MethodGet, "/v1/market/insights", token, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing subject: status %d", rr.Code)
	}
}

func TestMarketCompanies(t *testing.T) {
	h, _ := newServer(t)
	token := signup(t, h, "companies@example.com")

	rr := doJSON(t, h, http.MethodGet, "/v1/market/companies?skills=python,sql", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("companies status %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Items []map[string]any `json:"items"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.Items) == 0 {
		t.Fatalf("python+sql should match employers")
	}

	rr = doJSON(t, h, http.MethodGet, "/v1/market/companies", token, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing skills: status %d", rr.Code)
	}
}

func TestMarketSkills(t *testing.T) {
	h, _ := newServer(t)
	token := signup(t, h, "skills@example.com")

	rr := doJSON(t, h, http.MethodGet, "/v1/market/skills?current=python", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("skills status %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Items []struct {
			Skill string `json:"skill"`
		} `json:"items"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.Items) == 0 {
		t.Fatalf("expected skill recommendations")
	}
	for _, s := range resp.Items {
		if s.Skill == "python" {
			t.Fatalf("owned skill recommended back")
		}
	}
}
