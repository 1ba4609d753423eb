package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/events/pageview", strings.NewReader(`{"page":"/home"}`))

	var body struct {
		Page string `json:"page"`
	}
	if err := ParseJSON(req, &body); err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	if body.Page != "/home" {
		t.Errorf("Expected page /home, got %q", body.Page)
	}
}

func TestParseJSONOrError_InvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/events/pageview", strings.NewReader(`{broken`))
	rec := httptest.NewRecorder()

	var body struct{}
	if ParseJSONOrError(rec, req, &body) {
		t.Error("Expected false for invalid JSON")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 written, got %d", rec.Code)
	}
}

func TestParseQueryInt(t *testing.T) {
	tests := []struct {
		url      string
		expected int
	}{
		{"/metrics/popular", 10},
		{"/metrics/popular?limit=5", 5},
		{"/metrics/popular?limit=abc", 10},
		{"/metrics/popular?limit=-2", 10},
		{"/metrics/popular?limit=0", 10},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.url, nil)
		if got := ParseQueryInt(req, "limit", 10); got != tt.expected {
			t.Errorf("ParseQueryInt(%q) = %d, want %d", tt.url, got, tt.expected)
		}
	}
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics/popular?sort=views", nil)
	if got := ParseQueryString(req, "sort", "count"); got != "views" {
		t.Errorf("Expected views, got %q", got)
	}
	if got := ParseQueryString(req, "missing", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback, got %q", got)
	}
}
