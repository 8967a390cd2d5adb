package ports

import (
	"context"
	"errors"
	"time"

	"RegulationScanner/internal/domain"
)

// ErrLatestChanged is returned by UpdateStore.Record when the latest pointer moved
// between the caller's read and the write.
var ErrLatestChanged = errors.New("latest update changed concurrently")

// ArticleSource runs a topic's queries and returns dated, filtered articles.
type ArticleSource interface {
	ScanTopic(ctx context.Context, topic domain.TopicConfig) []domain.Article
}

// SearchProvider queries an external search engine for recent articles.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]domain.SearchHit, error)
}

// Message is one chat turn sent to an LLM.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient completes a conversation and returns the raw assistant text.
type ChatClient interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ArticleStore deduplicates discovered articles by URL and tracks their processed flag.
type ArticleStore interface {
	DedupeAndInsert(ctx context.Context, topicID string, articles []domain.Article) ([]int64, error)
	ArticlesByID(ctx context.Context, ids []int64) ([]domain.Article, error)
	MarkProcessed(ctx context.Context, ids []int64) error
}

// UpdateStore persists verified updates and maintains the per-anchor latest pointer.
type UpdateStore interface {
	// CurrentLatest returns nil when the anchor has no latest record.
	CurrentLatest(ctx context.Context, topicID string, anchor domain.Anchor) (*domain.VerifiedUpdate, error)
	// Record inserts update. When update.IsLatest is set, the record identified by supersede
	// (or the absence of any latest when supersede is nil) must still be current, otherwise
	// the write is rejected and nothing changes.
	Record(ctx context.Context, update domain.VerifiedUpdate, supersede *int64) (int64, error)
	ListLatest(ctx context.Context, topicID string) ([]domain.LatestUpdate, error)
}

// TopicStore exposes the configured topics and their scan bookkeeping.
type TopicStore interface {
	ListTopics(ctx context.Context) ([]domain.Topic, error)
	GetTopic(ctx context.Context, id string) (domain.Topic, error)
	UpsertTopic(ctx context.Context, topic domain.Topic) error
	StampScanned(ctx context.Context, topicID string, at time.Time) error
}

// PrimarySource fetches the official page backing a topic.
type PrimarySource interface {
	Fetch(ctx context.Context, url string) (domain.PrimaryDocument, error)
	// Extract returns the page text, or an empty string when the fetch fails.
	Extract(ctx context.Context, url string) string
}

// Notifier streams digests of promoted updates to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Metrics records pipeline stage counters.
type Metrics interface {
	ArticlesInserted(topicID string, n int)
	CandidatesExtracted(topicID string, n int)
	ExtractionFailed(topicID, reason string)
	CandidatesMerged(topicID string, n int)
	UpdateRecorded(topicID string, promoted bool)
	TopicRun(topicID, status string, elapsed time.Duration)
}
