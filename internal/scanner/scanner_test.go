package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegulationScanner/internal/domain"
	"RegulationScanner/internal/logging"
)

type stubProvider struct {
	hits  map[string][]domain.SearchHit
	fails map[string]error
	calls []string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Search(_ context.Context, query string, _ int) ([]domain.SearchHit, error) {
	s.calls = append(s.calls, query)
	if err := s.fails[query]; err != nil {
		return nil, err
	}
	return s.hits[query], nil
}

func fixedNow() time.Time {
	return time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubProvider{})

	provider, err := reg.Resolve("stub")
	require.NoError(t, err)
	assert.Equal(t, "stub", provider.Name())

	_, err = reg.Resolve("missing")
	assert.Error(t, err)
}

func TestSearchFiltersByLookbackAndSortsNewestFirst(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{hits: map[string][]domain.SearchHit{
		"reach": {
			{URL: "https://a.example/old", Title: "Old", PublishedDate: "2023-01-10"},
			{URL: "https://a.example/undated", Title: "No date here"},
			{URL: "https://a.example/mid", Title: "Mid", PublishedDate: "2025-02-01"},
			{URL: "https://a.example/new", Title: "New", PublishedDate: "2025-06-01T10:00:00Z"},
			{URL: "  ", Title: "empty url"},
		},
	}}

	sc := New(provider, Options{KeepUndated: true, Now: fixedNow}, logging.Discard())
	articles, err := sc.Search(context.Background(), "reach", 5)
	require.NoError(t, err)
	require.Len(t, articles, 3)

	assert.Equal(t, "https://a.example/new", articles[0].URL)
	assert.Equal(t, "https://a.example/mid", articles[1].URL)
	assert.Equal(t, "https://a.example/undated", articles[2].URL)
	assert.Nil(t, articles[2].PublishedAt)
	assert.Equal(t, "a.example", articles[0].Source)
}

func TestSearchDropsUndatedWhenConfigured(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{hits: map[string][]domain.SearchHit{
		"q": {
			{URL: "https://a.example/undated", Title: "nothing"},
			{URL: "https://a.example/dated", Content: "Published on March 3, 2025 by the agency"},
		},
	}}

	sc := New(provider, Options{KeepUndated: false, Now: fixedNow}, logging.Discard())
	articles, err := sc.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	require.NotNil(t, articles[0].PublishedAt)
	assert.Equal(t, "2025-03-03", articles[0].PublishedAt.Format("2006-01-02"))
}

func TestSearchPropagatesProviderError(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{fails: map[string]error{"q": errors.New("boom")}}
	sc := New(provider, Options{Now: fixedNow}, logging.Discard())

	_, err := sc.Search(context.Background(), "q", 5)
	assert.ErrorContains(t, err, "boom")
}

func TestScanTopicSkipsFailingQueriesAndDedupes(t *testing.T) {
	t.Parallel()

	shared := domain.SearchHit{URL: "https://echa.europa.eu/news/1", Title: "SVHC", PublishedDate: "2025-06-10"}
	provider := &stubProvider{
		hits: map[string][]domain.SearchHit{
			"first": {shared, {URL: "https://blog.other.com/post", PublishedDate: "2025-06-11"}},
			"third": {shared, {URL: "https://www.echa.europa.eu/news/2", PublishedDate: "2025-06-12"}},
		},
		fails: map[string]error{"second": errors.New("rate limited")},
	}

	sc := New(provider, Options{KeepUndated: true, Now: fixedNow}, logging.Discard())
	topic := domain.TopicConfig{
		ID:             "eu-reach",
		Queries:        []string{"first", "second", "third"},
		AllowedDomains: []string{"echa.europa.eu"},
	}

	articles := sc.ScanTopic(context.Background(), topic)
	assert.Equal(t, []string{"first", "second", "third"}, provider.calls)
	require.Len(t, articles, 2)
	assert.Equal(t, "https://www.echa.europa.eu/news/2", articles[0].URL)
	assert.Equal(t, "https://echa.europa.eu/news/1", articles[1].URL)
	for _, article := range articles {
		assert.Equal(t, "eu-reach", article.TopicID)
	}
}

func TestDomainAllowed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		url     string
		allowed []string
		want    bool
	}{
		{"https://echa.europa.eu/x", nil, true},
		{"https://echa.europa.eu/x", []string{"echa.europa.eu"}, true},
		{"https://sub.echa.europa.eu/x", []string{"echa.europa.eu"}, true},
		{"https://notecha.europa.eu/x", []string{"echa.europa.eu"}, false},
		{"https://example.com", []string{"echa.europa.eu"}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, domainAllowed(tc.url, tc.allowed), tc.url)
	}
}

func TestSortNewestFirstKeepsUndatedOrder(t *testing.T) {
	t.Parallel()

	d1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	articles := []domain.Article{
		{URL: "u1"},
		{URL: "d1", PublishedAt: &d1},
		{URL: "u2"},
		{URL: "d2", PublishedAt: &d2},
	}

	SortNewestFirst(articles)

	var urls []string
	for _, a := range articles {
		urls = append(urls, a.URL)
	}
	assert.Equal(t, []string{"d2", "d1", "u1", "u2"}, urls)
}
