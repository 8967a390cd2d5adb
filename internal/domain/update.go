package domain

import "time"

// ImpactLevel classifies how strongly an update affects regulated parties.
type ImpactLevel string

const (
	ImpactHigh   ImpactLevel = "high"
	ImpactMedium ImpactLevel = "medium"
	ImpactLow    ImpactLevel = "low"
	ImpactNone   ImpactLevel = "none"
)

// ParseImpactLevel normalizes provider output, defaulting to none.
func ParseImpactLevel(raw string) ImpactLevel {
	switch ImpactLevel(raw) {
	case ImpactHigh, ImpactMedium, ImpactLow:
		return ImpactLevel(raw)
	default:
		return ImpactNone
	}
}

// VerifiedUpdate is the durable record of a detected regulatory change.
type VerifiedUpdate struct {
	ID                 int64       `json:"id"`
	TopicID            string      `json:"topic_id"`
	Anchor             Anchor      `json:"anchor"`
	Title              string      `json:"title"`
	Summary            string      `json:"summary"`
	Impact             ImpactLevel `json:"impact_level"`
	RelatedArticleIDs  []int64     `json:"related_article_ids"`
	DeducedPublishedAt *time.Time  `json:"deduced_published_date"`
	IsLatest           bool        `json:"is_latest"`
	CreatedAt          time.Time   `json:"created_at"`
}

// Supersedes reports whether u should replace current as the latest record of its anchor.
// Without a current latest u always wins; an undated u never displaces an existing latest;
// a dated u displaces an undated latest or one with a strictly earlier date.
func (u VerifiedUpdate) Supersedes(current *VerifiedUpdate) bool {
	if current == nil {
		return true
	}
	if u.DeducedPublishedAt == nil {
		return false
	}
	if current.DeducedPublishedAt == nil {
		return true
	}
	return u.DeducedPublishedAt.After(*current.DeducedPublishedAt)
}

// LatestUpdate is a current latest record joined with its topic and related articles.
type LatestUpdate struct {
	VerifiedUpdate
	TopicName       string       `json:"topic_name"`
	RelatedArticles []ArticleRef `json:"related_articles"`
}
