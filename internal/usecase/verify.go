package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"RegulationScanner/internal/domain"
	"RegulationScanner/internal/logging"
	"RegulationScanner/internal/ports"
)

const fallbackSummaryRunes = 300

// Verifier compares a topic's latest updates with its official primary source.
type Verifier struct {
	topics  ports.TopicStore
	updates ports.UpdateStore
	source  ports.PrimarySource
	chat    ports.ChatClient
	timeout time.Duration
	logger  *slog.Logger
}

// NewVerifier wires the verification variant of the pipeline.
func NewVerifier(topics ports.TopicStore, updates ports.UpdateStore, source ports.PrimarySource, chat ports.ChatClient, timeout time.Duration, logger *slog.Logger) *Verifier {
	return &Verifier{
		topics:  topics,
		updates: updates,
		source:  source,
		chat:    chat,
		timeout: timeout,
		logger:  logging.Component(logger, "verifier"),
	}
}

type verificationPayload struct {
	Matches     *bool   `json:"matches"`
	Summary     *string `json:"summary"`
	ImpactLevel *string `json:"impact_level"`
}

// Verify fetches the topic's first primary source and asks the LLM whether the
// current latest updates agree with it. An unreachable source yields empty text.
func (v *Verifier) Verify(ctx context.Context, topicID string) (domain.Verification, error) {
	topic, err := v.topics.GetTopic(ctx, topicID)
	if err != nil {
		return domain.Verification{}, fmt.Errorf("load topic %s: %w", topicID, err)
	}

	result := domain.Verification{TopicID: topic.ID, Impact: domain.ImpactNone}
	for _, cfg := range topic.Configs() {
		if cfg.PrimarySourceURL != "" {
			result.SourceURL = cfg.PrimarySourceURL
			break
		}
	}
	if result.SourceURL == "" {
		return result, fmt.Errorf("topic %s has no primary source", topicID)
	}

	var doc domain.PrimaryDocument
	if v.source != nil {
		fetchCtx, cancel := withTimeout(ctx, v.timeout)
		doc, err = v.source.Fetch(fetchCtx, result.SourceURL)
		cancel()
		if err != nil {
			v.logger.Warn("primary source unavailable", "topic", topicID, "url", result.SourceURL, "error", err)
			doc = domain.PrimaryDocument{URL: result.SourceURL}
		}
	}
	result.SourceUpdatedAt = doc.UpdatedAt

	latest, err := v.updates.ListLatest(ctx, topic.ID)
	if err != nil {
		return result, fmt.Errorf("list latest updates: %w", err)
	}
	for _, l := range latest {
		result.Latest = append(result.Latest, l.VerifiedUpdate)
	}

	if v.chat == nil {
		return result, fmt.Errorf("verify %s: llm client is not configured", topicID)
	}

	chatCtx, cancel := withTimeout(ctx, v.timeout)
	raw, err := v.chat.Complete(chatCtx, []ports.Message{
		{Role: "system", Content: BuildVerificationPrompt(topic, doc, latest)},
		{Role: "user", Content: "Compare the updates with the official source now."},
	})
	cancel()
	if err != nil {
		return result, fmt.Errorf("verify %s: %w", topicID, err)
	}

	payload, err := parseVerification(raw)
	if err != nil {
		v.logger.Warn("verification response malformed", "topic", topicID, "error", err)
		result.Summary = truncateRunes(doc.Text, fallbackSummaryRunes)
		return result, nil
	}

	if payload.Matches != nil {
		result.Matches = *payload.Matches
	}
	result.Summary = strings.TrimSpace(deref(payload.Summary))
	result.Impact = domain.ParseImpactLevel(strings.ToLower(strings.TrimSpace(deref(payload.ImpactLevel))))
	return result, nil
}

// BuildVerificationPrompt renders the source text and the latest updates for comparison.
func BuildVerificationPrompt(topic domain.Topic, doc domain.PrimaryDocument, latest []domain.LatestUpdate) string {
	var b strings.Builder
	b.WriteString("You are an expert regulation impact analyst.\n")
	fmt.Fprintf(&b, "Regulation: %s\n\n", topic.Name)

	b.WriteString("Official source")
	if doc.UpdatedAt != nil {
		fmt.Fprintf(&b, " (last updated %s)", doc.UpdatedAt.Format("2 January 2006"))
	}
	b.WriteString(":\n")
	if doc.Text == "" {
		b.WriteString("(unavailable)\n")
	} else {
		b.WriteString(truncateRunes(doc.Text, maxPromptContent))
		b.WriteString("\n")
	}

	b.WriteString("\nRecorded latest updates:\n")
	if len(latest) == 0 {
		b.WriteString("(none)\n")
	}
	for _, l := range latest {
		fmt.Fprintf(&b, "- %s\n", l.Summary)
	}

	b.WriteString(`
Task:
- Decide whether the recorded updates match the official source.
- Summarize the official state in 2-3 sentences.
- Provide impact_level: high | medium | low | none
Output strictly JSON:
{"matches": true, "summary": "...", "impact_level": "high"}`)
	return b.String()
}

func parseVerification(raw string) (verificationPayload, error) {
	var payload verificationPayload
	body, err := jsonObject(raw)
	if err != nil {
		return payload, err
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return payload, nil
}
