package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"

	"RegulationScanner/internal/domain"
	"RegulationScanner/internal/logging"
	"RegulationScanner/internal/ports"
)

const maxBodyBytes = 8 << 20

// PrimaryFetcher implements ports.PrimarySource via registered extractor strategies.
type PrimaryFetcher struct {
	client     *http.Client
	extractors []Extractor
	cache      *cache.Cache
	logger     *slog.Logger
}

var _ ports.PrimarySource = (*PrimaryFetcher)(nil)

// NewPrimaryFetcher wires an HTTP client with the given extractors, tried in order.
// Without extractors it uses the ECHA table parser followed by the readable-text fallback.
func NewPrimaryFetcher(client *http.Client, log *slog.Logger, extractors ...Extractor) *PrimaryFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if len(extractors) == 0 {
		extractors = []Extractor{NewECHAExtractor(), ReadableExtractor{}}
	}
	return &PrimaryFetcher{
		client:     client,
		extractors: extractors,
		cache:      cache.New(1*time.Hour, 10*time.Minute),
		logger:     logging.Component(log, "primary-source"),
	}
}

// Fetch downloads the page and hands it to the first matching extractor. Results are cached for an hour.
func (f *PrimaryFetcher) Fetch(ctx context.Context, rawURL string) (domain.PrimaryDocument, error) {
	if cached, found := f.cache.Get(rawURL); found {
		return cached.(domain.PrimaryDocument), nil
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return domain.PrimaryDocument{}, fmt.Errorf("invalid primary source url %q", rawURL)
	}

	body, err := f.download(ctx, u)
	if err != nil {
		return domain.PrimaryDocument{}, err
	}

	for _, extractor := range f.extractors {
		if !extractor.Match(u) {
			continue
		}
		doc, err := extractor.Extract(body, u)
		if err != nil {
			return domain.PrimaryDocument{}, fmt.Errorf("%s extractor: %w", extractor.Name(), err)
		}
		f.logger.Debug("primary source extracted", "url", rawURL, "extractor", extractor.Name(), "items", len(doc.Items))
		f.cache.Set(rawURL, doc, cache.DefaultExpiration)
		return doc, nil
	}

	return domain.PrimaryDocument{}, fmt.Errorf("no extractor matches %s", rawURL)
}

// Extract returns the page text, or an empty string when anything fails.
func (f *PrimaryFetcher) Extract(ctx context.Context, rawURL string) string {
	doc, err := f.Fetch(ctx, rawURL)
	if err != nil {
		f.logger.Warn("primary source unavailable", "url", rawURL, "error", err)
		return ""
	}
	return doc.Text
}

func (f *PrimaryFetcher) download(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; RegulationScanner/1.0)")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", u.Host, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return body, nil
}
