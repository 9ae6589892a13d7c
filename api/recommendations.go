package api

import (
	"net/http"
	"strings"

	"github.com/dzlearn/masar/internal/resources"
)

type RecommendationsHandler struct {
	recommender *resources.Recommender
}

func NewRecommendationsHandler(rec *resources.Recommender) *RecommendationsHandler {
	return &RecommendationsHandler{recommender: rec}
}

// Get returns the curated playlists, channels and books for a subject,
// ordered by the learner's language preference.
func (h *RecommendationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subject := strings.TrimSpace(q.Get("subject"))
	if subject == "" {
		http.Error(w, "subject is required", http.StatusBadRequest)
		return
	}

	rec := h.recommender.ForSubject(subject, q.Get("language"))
	writeJSON(w, rec, http.StatusOK)
}
