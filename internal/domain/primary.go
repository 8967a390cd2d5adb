package domain

import "time"

// PrimaryDocument is the text extracted from an official source page.
type PrimaryDocument struct {
	URL       string     `json:"url"`
	Title     string     `json:"title,omitempty"`
	Text      string     `json:"text"`
	Items     []string   `json:"items,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Verification is the outcome of comparing latest updates with a primary source.
type Verification struct {
	TopicID         string           `json:"topic_id"`
	SourceURL       string           `json:"source_url"`
	SourceUpdatedAt *time.Time       `json:"source_updated_at,omitempty"`
	Matches         bool             `json:"matches"`
	Summary         string           `json:"summary"`
	Impact          ImpactLevel      `json:"impact_level"`
	Latest          []VerifiedUpdate `json:"latest"`
}
