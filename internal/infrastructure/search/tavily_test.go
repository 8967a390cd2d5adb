package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"

	"RegulationScanner/internal/config"
)

func TestTavilySearchMapsResults(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header: %q", got)
		}

		var req tavilyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Query != "svhc update" || req.MaxResults != 3 || req.Days != 180 {
			t.Errorf("unexpected request: %+v", req)
		}

		_, _ = w.Write([]byte(`{"results":[
			{"url":"https://echa.europa.eu/-/news","title":"ECHA adds","content":"snippet","raw_content":"<html></html>","published_date":"2025-06-01"},
			{"url":"https://example.com/x","title":"Other"}
		]}`))
	}))
	defer server.Close()

	client := NewTavilyClient(config.SearchConfig{Endpoint: server.URL, APIKey: "secret", LookbackDays: 180}, server.Client())
	client.limiter = rate.NewLimiter(rate.Inf, 1)

	hits, err := client.Search(context.Background(), "svhc update", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].PublishedDate != "2025-06-01" || hits[0].RawContent != "<html></html>" {
		t.Fatalf("unexpected first hit: %+v", hits[0])
	}
	if hits[1].PublishedDate != "" {
		t.Fatalf("expected empty date, got %q", hits[1].PublishedDate)
	}
}

func TestTavilySearchRequiresKey(t *testing.T) {
	t.Parallel()

	client := NewTavilyClient(config.SearchConfig{}, nil)
	if _, err := client.Search(context.Background(), "q", 1); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestTavilySearchSurfacesStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewTavilyClient(config.SearchConfig{Endpoint: server.URL, APIKey: "k"}, server.Client())
	if _, err := client.Search(context.Background(), "q", 1); err == nil {
		t.Fatalf("expected error for 401")
	}
}
