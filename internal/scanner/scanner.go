package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"RegulationScanner/internal/domain"
	"RegulationScanner/internal/logging"
	"RegulationScanner/internal/ports"
)

// Registry keeps a mapping from provider names to their implementations.
type Registry struct {
	providers map[string]ports.SearchProvider
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: map[string]ports.SearchProvider{}}
}

// Register adds or replaces a provider implementation.
func (r *Registry) Register(provider ports.SearchProvider) {
	if r.providers == nil {
		r.providers = map[string]ports.SearchProvider{}
	}
	r.providers[provider.Name()] = provider
}

// Resolve returns a provider by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.SearchProvider, error) {
	if provider, ok := r.providers[name]; ok {
		return provider, nil
	}
	return nil, fmt.Errorf("search provider %s is not registered", name)
}

// Options tune how raw hits become articles.
type Options struct {
	Lookback     time.Duration
	KeepUndated  bool
	DefaultLimit int
	QueryTimeout time.Duration
	Strategies   []DateStrategy
	Now          func() time.Time
}

// Scanner turns search provider hits into dated, filtered, newest-first articles.
type Scanner struct {
	provider ports.SearchProvider
	opts     Options
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*Scanner)(nil)

// New wires a provider; a zero lookback means one year and a zero limit means five.
func New(provider ports.SearchProvider, opts Options, logger *slog.Logger) *Scanner {
	if opts.Lookback <= 0 {
		opts.Lookback = 365 * 24 * time.Hour
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 5
	}
	if opts.Strategies == nil {
		opts.Strategies = DefaultStrategies()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scanner{provider: provider, opts: opts, logger: logging.Component(logger, "scanner")}
}

// Search runs one query and returns the hits that fall inside the lookback window.
func (s *Scanner) Search(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("search provider is not configured")
	}
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}

	if s.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.QueryTimeout)
		defer cancel()
	}

	hits, err := s.provider.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	cutoff := startOfDay(s.opts.Now().Add(-s.opts.Lookback))
	articles := make([]domain.Article, 0, len(hits))
	for _, hit := range hits {
		article, ok := normalize(hit)
		if !ok {
			continue
		}

		article.PublishedAt = DeriveDate(s.opts.Strategies, hit)
		switch {
		case article.PublishedAt == nil && !s.opts.KeepUndated:
			continue
		case article.PublishedAt != nil && article.PublishedAt.Before(cutoff):
			continue
		}
		articles = append(articles, article)
	}

	SortNewestFirst(articles)
	s.logger.Debug("query searched", "query", query, "raw", len(hits), "kept", len(articles))
	return articles, nil
}

// ScanTopic runs every query of the topic; failing queries are logged and skipped.
func (s *Scanner) ScanTopic(ctx context.Context, topic domain.TopicConfig) []domain.Article {
	limit := s.opts.DefaultLimit
	if topic.MaxArticles > 0 {
		limit = topic.MaxArticles
	}

	seen := map[string]struct{}{}
	var aggregated []domain.Article
	for _, query := range topic.Queries {
		results, err := s.Search(ctx, query, limit)
		if err != nil {
			s.logger.Warn("search query failed", "topic", topic.ID, "query", query, "error", err)
			continue
		}

		for _, article := range results {
			if !domainAllowed(article.URL, topic.AllowedDomains) {
				continue
			}
			if _, dup := seen[article.URL]; dup {
				continue
			}
			seen[article.URL] = struct{}{}
			article.TopicID = topic.ID
			aggregated = append(aggregated, article)
		}
	}

	SortNewestFirst(aggregated)
	s.logger.Debug("topic scanned", "topic", topic.ID, "queries", len(topic.Queries), "articles", len(aggregated))
	return aggregated
}

// SortNewestFirst orders articles by published date descending; undated articles go last.
func SortNewestFirst(articles []domain.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		a, b := articles[i].PublishedAt, articles[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

func normalize(hit domain.SearchHit) (domain.Article, bool) {
	rawURL := strings.TrimSpace(hit.URL)
	if rawURL == "" {
		return domain.Article{}, false
	}

	content := strings.TrimSpace(hit.RawContent)
	if content == "" {
		content = strings.TrimSpace(hit.Content)
	}

	source := strings.TrimSpace(hit.Source)
	if source == "" {
		source = hostname(rawURL)
	}

	return domain.Article{
		URL:     rawURL,
		Title:   strings.TrimSpace(hit.Title),
		Snippet: strings.TrimSpace(hit.Content),
		Content: content,
		Source:  source,
	}, true
}

func hostname(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

func domainAllowed(rawURL string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	host := hostname(rawURL)
	for _, d := range allowed {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && (host == d || strings.HasSuffix(host, "."+d)) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
