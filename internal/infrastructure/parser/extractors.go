package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/markusmobius/go-trafilatura"

	"RegulationScanner/internal/domain"
)

// Extractor turns a fetched page into a primary document.
type Extractor interface {
	Name() string
	Match(u *url.URL) bool
	Extract(body []byte, u *url.URL) (domain.PrimaryDocument, error)
}

var lastUpdatedExpr = regexp.MustCompile(`(?i)Last updated[:\s]*([0-9]{1,2}\s+[A-Za-z]+\.?\s+[0-9]{4})`)

// ECHAExtractor reads substance names and the "Last updated" stamp from the candidate list table.
type ECHAExtractor struct {
	Hosts []string
}

// NewECHAExtractor matches echa.europa.eu and its subdomains.
func NewECHAExtractor() ECHAExtractor {
	return ECHAExtractor{Hosts: []string{"echa.europa.eu"}}
}

// Name identifies the strategy in logs.
func (ECHAExtractor) Name() string {
	return "echa"
}

// Match accepts candidate list pages on the configured hosts.
func (e ECHAExtractor) Match(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	for _, h := range e.Hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return strings.Contains(strings.ToLower(u.Path), "candidate-list")
		}
	}
	return false
}

// Extract parses the table; a page without rows still yields its date when present.
func (ECHAExtractor) Extract(body []byte, u *url.URL) (domain.PrimaryDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.PrimaryDocument{}, fmt.Errorf("parse document: %w", err)
	}

	items := parseCandidateRows(doc)
	updated := parseLastUpdated(doc.Text())

	var text strings.Builder
	if updated != nil {
		fmt.Fprintf(&text, "Last updated: %s\n", updated.Format("2 January 2006"))
	}
	if len(items) > 0 {
		text.WriteString("Substances on the candidate list:\n")
		for _, item := range items {
			text.WriteString("- ")
			text.WriteString(item)
			text.WriteString("\n")
		}
	}

	return domain.PrimaryDocument{
		URL:       u.String(),
		Title:     strings.TrimSpace(doc.Find("title").First().Text()),
		Text:      strings.TrimSpace(text.String()),
		Items:     items,
		UpdatedAt: updated,
	}, nil
}

func parseCandidateRows(doc *goquery.Document) []string {
	var items []string
	doc.Find("table.candidate-list-table tbody tr").Each(func(_ int, tr *goquery.Selection) {
		name := strings.Join(strings.Fields(tr.Find("td").First().Text()), " ")
		if name != "" {
			items = append(items, name)
		}
	})
	return items
}

func parseLastUpdated(text string) *time.Time {
	match := lastUpdatedExpr.FindStringSubmatch(text)
	if len(match) < 2 {
		return nil
	}
	raw := strings.ReplaceAll(match[1], ".", "")
	for _, layout := range []string{"2 January 2006", "2 Jan 2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	if t, err := dateparse.ParseAny(raw); err == nil {
		t = t.UTC()
		return &t
	}
	return nil
}

// ReadableExtractor falls back to the main readable content of any page.
type ReadableExtractor struct{}

// Name identifies the strategy in logs.
func (ReadableExtractor) Name() string {
	return "readable"
}

// Match accepts every URL.
func (ReadableExtractor) Match(*url.URL) bool {
	return true
}

// Extract runs trafilatura over the page.
func (ReadableExtractor) Extract(body []byte, u *url.URL) (domain.PrimaryDocument, error) {
	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{OriginalURL: u})
	if err != nil {
		return domain.PrimaryDocument{}, fmt.Errorf("extract content: %w", err)
	}
	if result == nil || strings.TrimSpace(result.ContentText) == "" {
		return domain.PrimaryDocument{}, fmt.Errorf("no content extracted from %s", u)
	}

	doc := domain.PrimaryDocument{
		URL:   u.String(),
		Title: strings.TrimSpace(result.Metadata.Title),
		Text:  strings.TrimSpace(result.ContentText),
	}
	if !result.Metadata.Date.IsZero() {
		d := result.Metadata.Date.UTC()
		doc.UpdatedAt = &d
	}
	return doc, nil
}
