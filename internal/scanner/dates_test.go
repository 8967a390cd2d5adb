package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegulationScanner/internal/domain"
)

func TestDeriveDateCascade(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		hit  domain.SearchHit
		want string
	}{
		{
			name: "provider date wins",
			hit: domain.SearchHit{
				PublishedDate: "2025-04-02",
				Content:       "Published 2024-01-01",
			},
			want: "2025-04-02",
		},
		{
			name: "meta tag",
			hit: domain.SearchHit{
				RawContent: `<html><head><meta property="article:published_time" content="2025-05-06T08:00:00Z"></head><body>2020-01-01</body></html>`,
			},
			want: "2025-05-06",
		},
		{
			name: "free text iso",
			hit:  domain.SearchHit{Content: "ECHA added substances on 2025-01-21 to the list."},
			want: "2025-01-21",
		},
		{
			name: "free text month name",
			hit:  domain.SearchHit{Title: "Update", Content: "On January 21st, 2025 the agency announced"},
			want: "2025-01-21",
		},
		{
			name: "month and year",
			hit:  domain.SearchHit{Content: "Consultation opens in March 2025."},
			want: "2025-03-01",
		},
		{
			name: "unparseable provider falls through",
			hit:  domain.SearchHit{PublishedDate: "yesterday-ish", Content: "see 2024-12-24"},
			want: "2024-12-24",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := DeriveDate(DefaultStrategies(), tc.hit)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, got.Format("2006-01-02"))
		})
	}
}

func TestDeriveDateNone(t *testing.T) {
	t.Parallel()

	got := DeriveDate(DefaultStrategies(), domain.SearchHit{Title: "No dates", Content: "Nothing to see"})
	assert.Nil(t, got)
}
