package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"RegulationScanner/internal/domain"
	"RegulationScanner/internal/ports"
)

type fakeChat struct {
	mu      sync.Mutex
	calls   int
	respond func(messages []ports.Message) (string, error)
}

func (f *fakeChat) Complete(_ context.Context, messages []ports.Message) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.respond(messages)
}

func (f *fakeChat) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func isComparison(messages []ports.Message) bool {
	return len(messages) > 0 && messages[0].Content == compareSystemPrompt
}

func extractionJSON(updateType, month, scope, summary string) string {
	return fmt.Sprintf(`{"update_type":%q,"event_month":%q,"change_scope":%q,"update_summary":%q}`, updateType, month, scope, summary)
}

type sourceFunc func(ctx context.Context, cfg domain.TopicConfig) []domain.Article

func (f sourceFunc) ScanTopic(ctx context.Context, cfg domain.TopicConfig) []domain.Article {
	return f(ctx, cfg)
}

// memStore is an in-memory ArticleStore, UpdateStore and TopicStore.
type memStore struct {
	mu        sync.Mutex
	articles  []domain.Article
	byURL     map[string]int64
	updates   []domain.VerifiedUpdate
	topics    []domain.Topic
	stamped   map[string]time.Time
	processed map[int64]bool

	beforeRecord func(s *memStore, attempt int)
	records      int
}

var (
	_ ports.ArticleStore = (*memStore)(nil)
	_ ports.UpdateStore  = (*memStore)(nil)
	_ ports.TopicStore   = (*memStore)(nil)
)

func newMemStore(topics ...domain.Topic) *memStore {
	return &memStore{
		byURL:     map[string]int64{},
		topics:    topics,
		stamped:   map[string]time.Time{},
		processed: map[int64]bool{},
	}
}

func (s *memStore) DedupeAndInsert(_ context.Context, topicID string, articles []domain.Article) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, a := range articles {
		if _, ok := s.byURL[a.URL]; ok {
			continue
		}
		a.ID = int64(len(s.articles) + 1)
		a.TopicID = topicID
		s.articles = append(s.articles, a)
		s.byURL[a.URL] = a.ID
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (s *memStore) ArticlesByID(_ context.Context, ids []int64) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Article, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.articles[id-1])
	}
	return out, nil
}

func (s *memStore) MarkProcessed(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.processed[id] = true
	}
	return nil
}

func (s *memStore) CurrentLatest(_ context.Context, topicID string, anchor domain.Anchor) (*domain.VerifiedUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestLocked(topicID, anchor), nil
}

func (s *memStore) latestLocked(topicID string, anchor domain.Anchor) *domain.VerifiedUpdate {
	for i := range s.updates {
		u := s.updates[i]
		if u.TopicID == topicID && u.Anchor == anchor && u.IsLatest {
			return &u
		}
	}
	return nil
}

func (s *memStore) Record(_ context.Context, update domain.VerifiedUpdate, supersede *int64) (int64, error) {
	s.records++
	if s.beforeRecord != nil {
		s.beforeRecord(s, s.records)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if update.IsLatest {
		current := s.latestLocked(update.TopicID, update.Anchor)
		switch {
		case current == nil && supersede != nil,
			current != nil && (supersede == nil || *supersede != current.ID):
			return 0, ports.ErrLatestChanged
		}
		if current != nil {
			for i := range s.updates {
				if s.updates[i].ID == current.ID {
					s.updates[i].IsLatest = false
				}
			}
		}
	}
	update.ID = int64(len(s.updates) + 1)
	s.updates = append(s.updates, update)
	return update.ID, nil
}

// insertLatest places a latest record directly, bypassing Record's checks.
func (s *memStore) insertLatest(u domain.VerifiedUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.updates {
		if s.updates[i].TopicID == u.TopicID && s.updates[i].Anchor == u.Anchor {
			s.updates[i].IsLatest = false
		}
	}
	u.ID = int64(len(s.updates) + 1)
	u.IsLatest = true
	s.updates = append(s.updates, u)
}

func (s *memStore) ListLatest(_ context.Context, topicID string) ([]domain.LatestUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LatestUpdate
	for _, u := range s.updates {
		if u.IsLatest && (topicID == "" || u.TopicID == topicID) {
			out = append(out, domain.LatestUpdate{VerifiedUpdate: u})
		}
	}
	return out, nil
}

func (s *memStore) latestCount(topicID string) int {
	latest, _ := s.ListLatest(context.Background(), topicID)
	return len(latest)
}

func (s *memStore) ListTopics(context.Context) ([]domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]domain.Topic(nil), s.topics...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) GetTopic(_ context.Context, id string) (domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.topics {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Topic{}, fmt.Errorf("topic %s: not found", id)
}

func (s *memStore) UpsertTopic(_ context.Context, topic domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topic)
	return nil
}

func (s *memStore) StampScanned(_ context.Context, topicID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamped[topicID] = at
	return nil
}

type recordingNotifier struct {
	digests []string
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.digests = append(n.digests, digest)
	return nil
}

type stubPrimary struct {
	doc domain.PrimaryDocument
	err error
}

func (s stubPrimary) Fetch(context.Context, string) (domain.PrimaryDocument, error) {
	return s.doc, s.err
}

func (s stubPrimary) Extract(context.Context, string) string {
	if s.err != nil {
		return ""
	}
	return s.doc.Text
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func userContent(messages []ports.Message) string {
	var b strings.Builder
	for _, m := range messages {
		if m.Role == "user" {
			b.WriteString(m.Content)
		}
	}
	return b.String()
}
