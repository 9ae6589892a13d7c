package api

import (
	"net/http"
	"strings"

	"github.com/dzlearn/masar/internal/market"
)

type MarketHandler struct {
	analyzer *market.Analyzer
}

func NewMarketHandler(a *market.Analyzer) *MarketHandler {
	return &MarketHandler{analyzer: a}
}

// Insights returns localized demand insights for a subject.
func (h *MarketHandler) Insights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subject := strings.TrimSpace(q.Get("subject"))
	if subject == "" {
		http.Error(w, "subject is required", http.StatusBadRequest)
		return
	}

	writeJSON(w, h.analyzer.MarketInsights(subject, q.Get("language")), http.StatusOK)
}

// Companies matches the caller's skills against the employer directory.
// Query params: skills (comma-separated), wilaya (optional filter).
func (h *MarketHandler) Companies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skills := splitSkills(q.Get("skills"))
	if len(skills) == 0 {
		http.Error(w, "skills is required", http.StatusBadRequest)
		return
	}

	companies := h.analyzer.MatchingCompanies(skills, q.Get("wilaya"))
	writeJSON(w, map[string]any{"items": companies}, http.StatusOK)
}

// Skills suggests which in-demand skills to learn next, excluding ones the
// caller already has.
func (h *MarketHandler) Skills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recommended := h.analyzer.RecommendedSkills(splitSkills(q.Get("current")), q.Get("language"))
	writeJSON(w, map[string]any{"items": recommended}, http.StatusOK)
}

func splitSkills(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
