package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegulationScanner/internal/domain"
	"RegulationScanner/internal/ports"
)

func verifyTopic() domain.Topic {
	return domain.Topic{
		ID:   "svhc",
		Name: "SVHC Candidate List",
		Profiles: []domain.SearchProfile{
			{Authority: "press"},
			{Authority: "ECHA", PrimarySources: []string{"https://echa.europa.eu/candidate-list-table"}},
		},
	}
}

func TestVerifyParsesVerdict(t *testing.T) {
	store := newMemStore(verifyTopic())
	store.insertLatest(domain.VerifiedUpdate{TopicID: "svhc", Anchor: "a", Summary: "On June 2025, two substances were added."})
	var prompt string
	chat := &fakeChat{respond: func(messages []ports.Message) (string, error) {
		prompt = messages[0].Content
		return "```json\n{\"matches\": true, \"summary\": \"Two substances added.\", \"impact_level\": \"HIGH\"}\n```", nil
	}}
	doc := domain.PrimaryDocument{Text: "Substances on the candidate list:\n- Lead", UpdatedAt: datePtr(2025, 6, 25)}
	v := NewVerifier(store, store, stubPrimary{doc: doc}, chat, 0, nil)

	got, err := v.Verify(context.Background(), "svhc")
	require.NoError(t, err)
	assert.True(t, got.Matches)
	assert.Equal(t, "Two substances added.", got.Summary)
	assert.Equal(t, domain.ImpactHigh, got.Impact)
	assert.Equal(t, "https://echa.europa.eu/candidate-list-table", got.SourceURL)
	assert.Equal(t, doc.UpdatedAt, got.SourceUpdatedAt)
	require.Len(t, got.Latest, 1)
	assert.Contains(t, prompt, "last updated 25 June 2025")
	assert.Contains(t, prompt, "- On June 2025, two substances were added.")
}

func TestVerifyMalformedFallsBackToSourceText(t *testing.T) {
	store := newMemStore(verifyTopic())
	chat := &fakeChat{respond: func([]ports.Message) (string, error) { return "they match", nil }}
	text := strings.Repeat("x", 500)
	v := NewVerifier(store, store, stubPrimary{doc: domain.PrimaryDocument{Text: text}}, chat, 0, nil)

	got, err := v.Verify(context.Background(), "svhc")
	require.NoError(t, err)
	assert.False(t, got.Matches)
	assert.Equal(t, text[:fallbackSummaryRunes], got.Summary)
	assert.Equal(t, domain.ImpactNone, got.Impact)
}

func TestVerifyUnreachableSourceIsEmptyText(t *testing.T) {
	store := newMemStore(verifyTopic())
	var prompt string
	chat := &fakeChat{respond: func(messages []ports.Message) (string, error) {
		prompt = messages[0].Content
		return `{"matches": false, "summary": "Source unavailable.", "impact_level": "unknown"}`, nil
	}}
	v := NewVerifier(store, store, stubPrimary{err: errors.New("dial tcp: timeout")}, chat, 0, nil)

	got, err := v.Verify(context.Background(), "svhc")
	require.NoError(t, err)
	assert.Contains(t, prompt, "(unavailable)")
	assert.Equal(t, domain.ImpactNone, got.Impact)
}

func TestVerifyRequiresPrimarySource(t *testing.T) {
	topic := verifyTopic()
	topic.Profiles = topic.Profiles[:1]
	store := newMemStore(topic)
	v := NewVerifier(store, store, stubPrimary{}, nil, 0, nil)

	_, err := v.Verify(context.Background(), "svhc")
	require.Error(t, err)

	_, err = v.Verify(context.Background(), "missing")
	require.Error(t, err)
}
