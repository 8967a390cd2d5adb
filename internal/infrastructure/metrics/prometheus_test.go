package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ArticlesInserted("eu-reach", 3)
	r.ArticlesInserted("eu-reach", 2)
	r.ExtractionFailed("eu-reach", "malformed")
	r.UpdateRecorded("eu-reach", true)
	r.UpdateRecorded("eu-reach", false)
	r.UpdateRecorded("eu-reach", true)
	r.TopicRun("eu-reach", "ok", 2*time.Second)

	assert.Equal(t, 5.0, testutil.ToFloat64(r.articlesInserted.WithLabelValues("eu-reach")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.extractionFailures.WithLabelValues("eu-reach", "malformed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.updatesRecorded.WithLabelValues("eu-reach", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.topicRuns.WithLabelValues("eu-reach", "ok")))
}

func TestHandlerServesMetrics(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.CandidatesMerged("eu-reach", 4)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `regulation_scanner_candidates_merged_total{topic="eu-reach"} 4`))
}
