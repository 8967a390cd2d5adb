package domain

import (
	"fmt"
	"strings"
	"time"
)

// Unspecified marks an anchor component the extraction could not determine.
const Unspecified = "unspecified"

// UpdateType is the categorical nature of a regulatory change.
type UpdateType string

const (
	UpdateAddition     UpdateType = "addition"
	UpdateRevision     UpdateType = "revision"
	UpdateAnnouncement UpdateType = "announcement"
	UpdateGuidance     UpdateType = "guidance"
	UpdateUnspecified  UpdateType = Unspecified
)

// ParseUpdateType maps free text onto a known update type, defaulting to unspecified.
func ParseUpdateType(raw string) UpdateType {
	switch UpdateType(strings.ToLower(strings.TrimSpace(raw))) {
	case UpdateAddition:
		return UpdateAddition
	case UpdateRevision:
		return UpdateRevision
	case UpdateAnnouncement:
		return UpdateAnnouncement
	case UpdateGuidance:
		return UpdateGuidance
	default:
		return UpdateUnspecified
	}
}

// Candidate is one article's extracted claim about a regulatory change.
type Candidate struct {
	ArticleID          int64
	UpdateType         UpdateType
	EventMonth         string
	ChangeScope        string
	Summary            string
	ImpactHint         string
	ArticlePublishedAt *time.Time
}

// Valid reports whether the candidate carries enough signal to be persisted.
func (c Candidate) Valid() bool {
	return strings.TrimSpace(c.Summary) != "" && c.ArticleID > 0
}

// EventMonthStart returns the first day of the event month when it is known.
func (c Candidate) EventMonthStart() (time.Time, bool) {
	if c.EventMonth == "" || c.EventMonth == Unspecified {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01", c.EventMonth)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Anchor is the deterministic grouping key topic::update-type::event-month::change-scope.
type Anchor string

// BuildAnchor derives the anchor of a candidate within a topic.
func BuildAnchor(topicID string, c Candidate) Anchor {
	return Anchor(fmt.Sprintf("%s::%s::%s::%s",
		topicID,
		orUnspecified(string(c.UpdateType)),
		orUnspecified(c.EventMonth),
		orUnspecified(c.ChangeScope),
	))
}

func orUnspecified(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return Unspecified
	}
	return v
}

// MergedCandidate is the consensus output of one anchor bucket.
type MergedCandidate struct {
	Anchor       Anchor
	Candidate    Candidate
	Summary      string
	ArticleIDs   []int64
	ResolvedDate *time.Time
}
