package usecase

import (
	"strings"

	"RegulationScanner/internal/domain"
)

var (
	defaultHighTerms   = []string{"ban", "mandatory", "require", "prohibit", "enforce"}
	defaultMediumTerms = []string{"amend", "update", "revise", "consultation"}
)

// ImpactClassifier maps summary text to an impact level by term matching.
type ImpactClassifier struct {
	high   []string
	medium []string
}

// NewImpactClassifier extends the default term sets with extra terms.
func NewImpactClassifier(extraHigh, extraMedium []string) *ImpactClassifier {
	return &ImpactClassifier{
		high:   normalizeTerms(defaultHighTerms, extraHigh),
		medium: normalizeTerms(defaultMediumTerms, extraMedium),
	}
}

// Classify checks high terms first, then medium; anything else is low.
func (c *ImpactClassifier) Classify(text string) domain.ImpactLevel {
	lower := strings.ToLower(text)
	if containsAny(lower, c.high) {
		return domain.ImpactHigh
	}
	if containsAny(lower, c.medium) {
		return domain.ImpactMedium
	}
	return domain.ImpactLow
}

func normalizeTerms(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	for _, t := range append(append([]string{}, base...), extra...) {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
