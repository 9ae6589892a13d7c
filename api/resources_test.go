package api_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/dzlearn/masar/pkg/models"
)

func TestResourceSearch(t *testing.T) {
	h, _ := newServer(t)
	token := signup(t, h, "search@example.com")

	rr := doJSON(t, h, http.MethodGet, "/v1/resources?q=python&free=true&limit=5", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("search status %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Items []models.Resource `json:"items"`
		Limit int               `json:"limit"`
	}
	decodeBody(t, rr, &resp)
	if resp.Limit != 5 {
		t.Fatalf("limit %d", resp.Limit)
	}
	if len(resp.Items) == 0 {
		t.Fatalf("seeded catalog should match python")
	}
	for _, res := range resp.Items {
		if !res.IsFree {
			t.Fatalf("free filter leaked paid resource %q", res.Title)
		}
	}

	rr = doJSON(t, h, http.MethodGet, "/v1/resources?q=xylophone", token, nil)
	decodeBody(t, rr, &resp)
	if len(resp.Items) != 0 {
		t.Fatalf("expected no matches, got %d", len(resp.Items))
	}
}

func TestResourceVote(t *testing.T) {
	h, repo := newServer(t)
	token := signup(t, h, "vote@example.com")

	rr := doJSON(t, h, http.MethodGet, "/v1/resources?q=python&limit=1", token, nil)
	var resp struct {
		Items []models.Resource `json:"items"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.Items) == 0 {
		t.Fatalf("no resource to vote on")
	}
	target := resp.Items[0]

	rr = doJSON(t, h, http.MethodPost, fmt.Sprintf("/v1/resources/%d/vote", target.ID), token, map[string]string{"direction": "up"})
	if rr.Code != http.StatusOK {
		t.Fatalf("vote status %d: %s", rr.Code, rr.Body.String())
	}

	stored, err := repo.GetResourceByID(t.Context(), target.ID)
	if err != nil || stored == nil {
		t.Fatalf("reload resource: %v", err)
	}
	if stored.Upvotes != target.Upvotes+1 {
		t.Fatalf("upvotes %d, want %d", stored.Upvotes, target.Upvotes+1)
	}

	rr = doJSON(t, h, http.MethodPost, fmt.Sprintf("/v1/resources/%d/vote", target.ID), token, map[string]string{"direction": "sideways"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad direction: status %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/v1/resources/99999/vote", token, map[string]string{"direction": "up"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing resource: status %d", rr.Code)
	}
}

func TestRecommendations(t *testing.T) {
	h, _ := newServer(t)
	token := signup(t, h, "curated@example.com")

	rr := doJSON(t, h, http.MethodGet, "/v1/recommendations?subject=python&language=fr", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("recommendations status %d: %s", rr.Code, rr.Body.String())
	}
	var rec struct {
		Playlists []map[string]any `json:"youtube_playlists"`
		Channels  []map[string]any `json:"youtube_channels"`
		Books     []map[string]any `json:"books"`
	}
	decodeBody(t, rr, &rec)
	if len(rec.Playlists) == 0 || len(rec.Channels) == 0 || len(rec.Books) == 0 {
		t.Fatalf("curated catalog empty for python: %+v", rec)
	}

	rr = doJSON(t, h, http.MethodGet, "/v1/recommendations", token, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing subject: status %d", rr.Code)
	}
}
