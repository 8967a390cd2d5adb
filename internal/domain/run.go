package domain

import "time"

// RunResult summarizes one pipeline run for a single topic profile.
type RunResult struct {
	TopicID     string           `json:"topic_id"`
	OK          bool             `json:"ok"`
	Consensus   bool             `json:"consensus"`
	NewArticles int              `json:"new_articles"`
	Candidates  int              `json:"candidates"`
	Merged      int              `json:"merged"`
	Recorded    int              `json:"recorded"`
	Promoted    []VerifiedUpdate `json:"promoted,omitempty"`
}

// TopicOutcome aggregates the profile runs of one topic inside a fleet run.
type TopicOutcome struct {
	TopicID   string           `json:"topic_id"`
	TopicName string           `json:"topic_name"`
	Profiles  int              `json:"profiles"`
	Succeeded int              `json:"succeeded"`
	Consensus bool             `json:"consensus"`
	Failed    bool             `json:"failed"`
	Error     string           `json:"error,omitempty"`
	Promoted  []VerifiedUpdate `json:"promoted,omitempty"`
}

// FleetSummary is the structured result of iterating every configured topic.
type FleetSummary struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Topics     []TopicOutcome `json:"topics"`
}

// Failures returns the outcomes of topics that did not complete.
func (s FleetSummary) Failures() []TopicOutcome {
	var failed []TopicOutcome
	for _, t := range s.Topics {
		if t.Failed {
			failed = append(failed, t)
		}
	}
	return failed
}

// Promoted collects every update that became latest during the fleet run.
func (s FleetSummary) Promoted() []VerifiedUpdate {
	var out []VerifiedUpdate
	for _, t := range s.Topics {
		out = append(out, t.Promoted...)
	}
	return out
}
