package api_test

import (
	"net/http"
	"strings"
	"testing"
)

func TestHealthAndVersion(t *testing.T) {
	h, _ := newServer(t)

	rr := doJSON(t, h, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("health status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"service":"masar"`) {
		t.Fatalf("unexpected health body: %s", rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodGet, "/version", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("version status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"version":"test"`) {
		t.Fatalf("unexpected version body: %s", rr.Body.String())
	}
}
