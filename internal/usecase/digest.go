package usecase

import (
	"fmt"
	"strings"

	"RegulationScanner/internal/domain"
)

// BuildDigest renders newly promoted updates and failed topics as plain text.
func BuildDigest(summary domain.FleetSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Regulatory updates (%s)\n", summary.StartedAt.Format("2006-01-02"))

	for _, topic := range summary.Topics {
		if len(topic.Promoted) == 0 {
			continue
		}
		name := topic.TopicName
		if name == "" {
			name = topic.TopicID
		}
		fmt.Fprintf(&b, "\n%s\n", name)
		for _, u := range topic.Promoted {
			date := "date unknown"
			if u.DeducedPublishedAt != nil {
				date = u.DeducedPublishedAt.Format("Jan 2006")
			}
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", strings.ToUpper(string(u.Impact)), u.Summary, date)
		}
	}

	if failed := summary.Failures(); len(failed) > 0 {
		b.WriteString("\nFailed topics:\n")
		for _, f := range failed {
			fmt.Fprintf(&b, "- %s: %s\n", f.TopicID, f.Error)
		}
	}

	return strings.TrimSpace(b.String())
}
