package scanner

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"RegulationScanner/internal/domain"
)

// DateStrategy tries to derive a publication date from a search hit.
type DateStrategy interface {
	Name() string
	TryExtractDate(hit domain.SearchHit) (time.Time, bool)
}

// DefaultStrategies returns the cascade used by the scanner: provider metadata,
// then HTML meta tags, then the first date mentioned in free text.
func DefaultStrategies() []DateStrategy {
	return []DateStrategy{ProviderDate{}, MetaTagDate{}, FreeTextDate{}}
}

// DeriveDate walks strategies in order and returns the first date found.
func DeriveDate(strategies []DateStrategy, hit domain.SearchHit) *time.Time {
	for _, strategy := range strategies {
		if date, ok := strategy.TryExtractDate(hit); ok {
			d := date.UTC()
			return &d
		}
	}
	return nil
}

// ProviderDate trusts the published date reported by the search provider.
type ProviderDate struct{}

func (ProviderDate) Name() string { return "provider" }

func (ProviderDate) TryExtractDate(hit domain.SearchHit) (time.Time, bool) {
	raw := strings.TrimSpace(hit.PublishedDate)
	if raw == "" {
		return time.Time{}, false
	}
	date, err := dateparse.ParseAny(raw)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

var metaDateSelectors = []string{
	`meta[property="article:published_time"]`,
	`meta[name="article:published_time"]`,
	`meta[itemprop="datePublished"]`,
	`meta[name="date"]`,
	`meta[name="dc.date"]`,
}

// MetaTagDate reads publication meta tags when the hit carries raw HTML.
type MetaTagDate struct{}

func (MetaTagDate) Name() string { return "meta" }

func (MetaTagDate) TryExtractDate(hit domain.SearchHit) (time.Time, bool) {
	raw := hit.RawContent
	if !strings.Contains(strings.ToLower(raw), "<meta") {
		return time.Time{}, false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return time.Time{}, false
	}

	for _, selector := range metaDateSelectors {
		value, ok := doc.Find(selector).First().Attr("content")
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if date, err := dateparse.ParseAny(strings.TrimSpace(value)); err == nil {
			return date, true
		}
	}
	return time.Time{}, false
}

const monthPattern = `(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?`

var (
	freeTextDatePattern = regexp.MustCompile(`(?i)\b(?:` +
		`\d{4}-\d{2}-\d{2}` +
		`|\d{1,2}(?:st|nd|rd|th)?\s+` + monthPattern + `,?\s+\d{4}` +
		`|` + monthPattern + `\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}` +
		`|` + monthPattern + `\s+\d{4}` +
		`)\b`)
	ordinalSuffix = regexp.MustCompile(`(?i)(\d)(?:st|nd|rd|th)\b`)
	monthYearOnly = []string{"January 2006", "Jan 2006"}
)

// FreeTextDate picks the first parseable date mentioned in the hit text.
type FreeTextDate struct{}

func (FreeTextDate) Name() string { return "text" }

func (FreeTextDate) TryExtractDate(hit domain.SearchHit) (time.Time, bool) {
	for _, text := range []string{hit.Title, hit.Content, hit.RawContent} {
		if date, ok := firstDateIn(text); ok {
			return date, true
		}
	}
	return time.Time{}, false
}

func firstDateIn(text string) (time.Time, bool) {
	if strings.TrimSpace(text) == "" {
		return time.Time{}, false
	}
	for _, match := range freeTextDatePattern.FindAllString(text, -1) {
		if date, ok := parseLoose(match); ok {
			return date, true
		}
	}
	return time.Time{}, false
}

func parseLoose(raw string) (time.Time, bool) {
	cleaned := ordinalSuffix.ReplaceAllString(raw, "$1")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if date, err := dateparse.ParseAny(cleaned); err == nil {
		return date, true
	}
	for _, layout := range monthYearOnly {
		if date, err := time.Parse(layout, strings.TrimSuffix(cleaned, ",")); err == nil {
			return date, true
		}
	}
	return time.Time{}, false
}
