package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"RegulationScanner/internal/domain"
	"RegulationScanner/internal/logging"
	"RegulationScanner/internal/ports"
)

// ErrInvalidJSON marks an LLM response that could not be decoded into the expected object.
var ErrInvalidJSON = errors.New("llm response is not valid json")

const (
	extractionSystemPrompt = "You are an expert regulatory analyst."
	maxPromptContent       = 8000
)

// ExtractionStatus tells how one article's extraction ended.
type ExtractionStatus string

const (
	ExtractionOK        ExtractionStatus = "ok"
	ExtractionMalformed ExtractionStatus = "malformed"
	ExtractionFailed    ExtractionStatus = "failed"
)

// Extraction is the outcome for one article; Candidate is set only when Status is ok.
type Extraction struct {
	ArticleID int64
	URL       string
	Status    ExtractionStatus
	Candidate *domain.Candidate
	Err       error
}

// Extractor asks the LLM for one structured candidate per article.
type Extractor struct {
	chat        ports.ChatClient
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
	metrics     ports.Metrics
}

// NewExtractor wires the chat client; concurrency below one means sequential.
func NewExtractor(chat ports.ChatClient, concurrency int, timeout time.Duration, logger *slog.Logger, metrics ports.Metrics) *Extractor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Extractor{
		chat:        chat,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logging.Component(logger, "extractor"),
		metrics:     orNopMetrics(metrics),
	}
}

// Extract runs one LLM call per article and returns outcomes in article order.
func (e *Extractor) Extract(ctx context.Context, topic domain.TopicConfig, articles []domain.Article) []Extraction {
	if len(articles) == 0 {
		return nil
	}

	results := make([]Extraction, len(articles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, article := range articles {
		i, article := i, article
		g.Go(func() error {
			results[i] = e.extractOne(gctx, topic, article)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Synthesize returns the candidates of every successful extraction, in article order.
func (e *Extractor) Synthesize(ctx context.Context, topic domain.TopicConfig, articles []domain.Article) []domain.Candidate {
	var candidates []domain.Candidate
	for _, res := range e.Extract(ctx, topic, articles) {
		switch res.Status {
		case ExtractionOK:
			candidates = append(candidates, *res.Candidate)
		case ExtractionMalformed:
			e.logger.Warn("llm returned malformed extraction, skipping article", "topic", topic.ID, "article_id", res.ArticleID, "url", res.URL, "error", res.Err)
			e.metrics.ExtractionFailed(topic.ID, string(res.Status))
		default:
			e.logger.Error("extraction failed", "topic", topic.ID, "article_id", res.ArticleID, "url", res.URL, "error", res.Err)
			e.metrics.ExtractionFailed(topic.ID, string(res.Status))
		}
	}
	e.metrics.CandidatesExtracted(topic.ID, len(candidates))
	return candidates
}

func (e *Extractor) extractOne(ctx context.Context, topic domain.TopicConfig, article domain.Article) Extraction {
	res := Extraction{ArticleID: article.ID, URL: article.URL}
	if e.chat == nil {
		res.Status, res.Err = ExtractionFailed, fmt.Errorf("chat client is not configured")
		return res
	}

	callCtx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.chat.Complete(callCtx, []ports.Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: BuildExtractionPrompt(topic, article)},
	})
	if err != nil {
		res.Status, res.Err = ExtractionFailed, fmt.Errorf("complete extraction: %w", err)
		return res
	}

	candidate, err := ParseCandidate(raw)
	if err != nil {
		res.Status, res.Err = ExtractionMalformed, err
		return res
	}

	candidate.ArticleID = article.ID
	candidate.ArticlePublishedAt = article.PublishedAt
	res.Status, res.Candidate = ExtractionOK, &candidate
	return res
}

// BuildExtractionPrompt embeds the topic and article into the extraction instructions.
func BuildExtractionPrompt(topic domain.TopicConfig, article domain.Article) string {
	published := "N/A"
	if article.PublishedAt != nil {
		published = article.PublishedAt.Format("2006-01-02")
	}

	content := article.Content
	if strings.TrimSpace(content) == "" {
		content = article.Snippet
	}
	if strings.TrimSpace(content) == "" {
		content = "No content available."
	}
	content = truncateRunes(content, maxPromptContent)

	var b strings.Builder
	b.WriteString("You are an expert regulatory intelligence processor. Extract structured information from the news article below about a regulation.\n\n")
	fmt.Fprintf(&b, "The regulation being analyzed is: %q\n", topic.Name)
	if len(topic.TriggerWords) > 0 {
		fmt.Fprintf(&b, "Relevant terms: %s\n", strings.Join(topic.TriggerWords, ", "))
	}
	if topic.PrimarySourceURL != "" {
		fmt.Fprintf(&b, "Official source: %s\n", topic.PrimarySourceURL)
	}

	b.WriteString("\nArticle Text:\n--- START ARTICLE TEXT ---\n")
	fmt.Fprintf(&b, "Title: %s\nURL: %s\nPublished Date: %s\nContent: %s\n", article.Title, article.URL, published, content)
	b.WriteString("--- END ARTICLE TEXT ---\n\n")

	b.WriteString(`Task:
Read the Article Text and determine:
1. update_type: the nature of the change, exactly one of "addition", "revision", "announcement", "guidance".
2. event_month: the month the change took effect or was decided, in YYYY-MM format, or "unspecified".
3. change_scope: the magnitude or kind of change, for example "count_1", "count_3", "process", "timeline", or "unspecified".
4. update_summary: one or two sentences on what changed, starting with "On <Month> <Year>, ".

Constraints:
* Do NOT include evidence, verification, justification or citations.
* Keep it short; vague is fine.
`)
	if forbidden := forbiddenKeywords(topic); len(forbidden) > 0 {
		fmt.Fprintf(&b, "* Do not use the words %s in update_summary.\n", strings.Join(forbidden, ", "))
	}
	b.WriteString(`
Output EXACT JSON ONLY in the format:
{
  "update_type": "addition | revision | announcement | guidance",
  "event_month": "YYYY-MM | unspecified",
  "change_scope": "count_1 | count_3 | process | timeline | unspecified",
  "update_summary": "On <Month> <Year>, short description of what changed"
}`)
	return b.String()
}

func forbiddenKeywords(topic domain.TopicConfig) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, word := range append(strings.Fields(topic.Name), topic.TriggerWords...) {
		word = strings.TrimSpace(word)
		key := strings.ToLower(word)
		if len(word) < 3 {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, fmt.Sprintf("%q", word))
	}
	return out
}

var (
	codeFence      = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	eventMonthExpr = regexp.MustCompile(`^\d{4}-\d{2}$`)
	scopeSpaces    = regexp.MustCompile(`\s+`)
)

type extractionPayload struct {
	UpdateType    *string `json:"update_type"`
	EventMonth    *string `json:"event_month"`
	ChangeScope   *string `json:"change_scope"`
	UpdateSummary *string `json:"update_summary"`
	ImpactLevel   *string `json:"impact_level"`
}

// ParseCandidate decodes an LLM extraction response and normalizes its fields.
func ParseCandidate(raw string) (domain.Candidate, error) {
	body, err := jsonObject(raw)
	if err != nil {
		return domain.Candidate{}, err
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return domain.Candidate{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	return domain.Candidate{
		UpdateType:  domain.ParseUpdateType(deref(payload.UpdateType)),
		EventMonth:  normalizeEventMonth(deref(payload.EventMonth)),
		ChangeScope: normalizeScope(deref(payload.ChangeScope)),
		Summary:     strings.TrimSpace(deref(payload.UpdateSummary)),
		ImpactHint:  strings.ToLower(strings.TrimSpace(deref(payload.ImpactLevel))),
	}, nil
}

func jsonObject(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", ErrInvalidJSON
	}
	return text[start : end+1], nil
}

func normalizeEventMonth(raw string) string {
	raw = strings.TrimSpace(raw)
	if !eventMonthExpr.MatchString(raw) {
		return domain.Unspecified
	}
	if _, err := time.Parse("2006-01", raw); err != nil {
		return domain.Unspecified
	}
	return raw
}

func normalizeScope(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return domain.Unspecified
	}
	return scopeSpaces.ReplaceAllString(raw, "_")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
