package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"RegulationScanner/internal/config"
	"RegulationScanner/internal/domain"
	"RegulationScanner/internal/infrastructure/httpjson"
	"RegulationScanner/internal/ports"
)

const defaultEndpoint = "https://api.tavily.com/search"

// TavilyClient implements ports.SearchProvider against the Tavily search API.
type TavilyClient struct {
	endpoint string
	apiKey   string
	days     int
	http     *http.Client
	limiter  *rate.Limiter
}

var _ ports.SearchProvider = (*TavilyClient)(nil)

// NewTavilyClient builds a rate limited client from configuration.
func NewTavilyClient(cfg config.SearchConfig, client *http.Client) *TavilyClient {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &TavilyClient{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		days:     cfg.LookbackDays,
		http:     client,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Name identifies the provider inside the registry.
func (c *TavilyClient) Name() string {
	return "tavily"
}

type tavilyRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	SearchDepth       string `json:"search_depth"`
	Days              int    `json:"days,omitempty"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Results []struct {
		URL           string  `json:"url"`
		Title         string  `json:"title"`
		Content       string  `json:"content"`
		RawContent    string  `json:"raw_content"`
		PublishedDate string  `json:"published_date"`
		Score         float64 `json:"score"`
	} `json:"results"`
}

// Search runs one query and maps the results onto search hits.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchHit, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("tavily api key is not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	payload := tavilyRequest{
		Query:             query,
		MaxResults:        maxResults,
		SearchDepth:       "advanced",
		Days:              c.days,
		IncludeRawContent: true,
	}

	var resp tavilyResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := httpjson.Post(ctx, c.http, c.endpoint, headers, payload, &resp); err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(resp.Results))
	for _, r := range resp.Results {
		hits = append(hits, domain.SearchHit{
			URL:           r.URL,
			Title:         r.Title,
			Content:       r.Content,
			RawContent:    r.RawContent,
			PublishedDate: r.PublishedDate,
		})
	}
	return hits, nil
}
