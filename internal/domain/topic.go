package domain

import "time"

// Topic is a tracked regulatory subject with one or more search profiles.
type Topic struct {
	ID            string
	Name          string
	Active        bool
	LastScannedAt *time.Time
	Profiles      []SearchProfile
}

// SearchProfile groups the queries and sources one authority is watched through.
type SearchProfile struct {
	Authority      string
	Queries        []string
	PrimarySources []string
	AllowedDomains []string
	TriggerWords   []string
	MaxArticles    int
}

// TopicConfig is the per-run view of a topic consumed by the pipeline.
type TopicConfig struct {
	ID               string
	Name             string
	Queries          []string
	PrimarySourceURL string
	AllowedDomains   []string
	TriggerWords     []string
	MaxArticles      int
}

// Configs expands the topic into one TopicConfig per search profile.
func (t Topic) Configs() []TopicConfig {
	configs := make([]TopicConfig, 0, len(t.Profiles))
	for _, p := range t.Profiles {
		cfg := TopicConfig{
			ID:             t.ID,
			Name:           t.Name,
			Queries:        p.Queries,
			AllowedDomains: p.AllowedDomains,
			TriggerWords:   p.TriggerWords,
			MaxArticles:    p.MaxArticles,
		}
		if len(p.PrimarySources) > 0 {
			cfg.PrimarySourceURL = p.PrimarySources[0]
		}
		configs = append(configs, cfg)
	}
	return configs
}
