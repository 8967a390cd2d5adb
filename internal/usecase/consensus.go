package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"RegulationScanner/internal/domain"
	"RegulationScanner/internal/logging"
	"RegulationScanner/internal/ports"
)

const compareSystemPrompt = "You decide whether two summaries describe the same regulatory update."

var nonWord = regexp.MustCompile(`\W`)

// Consensus buckets candidates by anchor and merges members the LLM judges equivalent.
type Consensus struct {
	chat        ports.ChatClient
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewConsensus wires the chat client used for pairwise comparisons.
func NewConsensus(chat ports.ChatClient, concurrency int, timeout time.Duration, logger *slog.Logger) *Consensus {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Consensus{
		chat:        chat,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logging.Component(logger, "consensus"),
		now:         time.Now,
	}
}

type bucket struct {
	anchor  domain.Anchor
	members []domain.Candidate
}

// GroupAndMerge returns one MergedCandidate per agreeing group, in first-seen anchor order.
func (c *Consensus) GroupAndMerge(ctx context.Context, topicID string, candidates []domain.Candidate) []domain.MergedCandidate {
	var merged []domain.MergedCandidate
	for _, b := range bucketByAnchor(topicID, candidates) {
		merged = append(merged, c.mergeBucket(ctx, b)...)
	}
	return merged
}

func bucketByAnchor(topicID string, candidates []domain.Candidate) []bucket {
	var buckets []bucket
	index := map[domain.Anchor]int{}
	for _, cand := range candidates {
		anchor := domain.BuildAnchor(topicID, cand)
		i, ok := index[anchor]
		if !ok {
			i = len(buckets)
			index[anchor] = i
			buckets = append(buckets, bucket{anchor: anchor})
		}
		buckets[i].members = append(buckets[i].members, cand)
	}
	return buckets
}

func (c *Consensus) mergeBucket(ctx context.Context, b bucket) []domain.MergedCandidate {
	valid := make([]domain.Candidate, 0, len(b.members))
	for _, m := range b.members {
		if !m.Valid() {
			c.logger.Debug("dropping candidate without summary or article", "anchor", b.anchor, "article_id", m.ArticleID)
			continue
		}
		valid = append(valid, m)
	}

	switch len(valid) {
	case 0:
		return nil
	case 1:
		return []domain.MergedCandidate{c.trivial(b.anchor, valid[0])}
	}

	representative, others := valid[0], valid[1:]
	same := c.compareAll(ctx, b.anchor, representative, others)

	group := []domain.Candidate{representative}
	var rest []domain.Candidate
	for i, other := range others {
		if same[i] {
			group = append(group, other)
		} else {
			rest = append(rest, other)
		}
	}

	if len(group) < 2 {
		out := make([]domain.MergedCandidate, 0, len(valid))
		for _, m := range valid {
			out = append(out, c.trivial(b.anchor, m))
		}
		return out
	}

	out := []domain.MergedCandidate{c.merge(b.anchor, group)}
	for _, m := range rest {
		out = append(out, c.trivial(b.anchor, m))
	}
	return out
}

func (c *Consensus) compareAll(ctx context.Context, anchor domain.Anchor, rep domain.Candidate, others []domain.Candidate) []bool {
	same := make([]bool, len(others))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, other := range others {
		i, other := i, other
		g.Go(func() error {
			ok, err := c.SameUpdate(gctx, rep.Summary, other.Summary)
			if err != nil {
				c.logger.Warn("semantic comparison failed, treating as different", "anchor", anchor, "article_id", other.ArticleID, "error", err)
			}
			same[i] = ok
			return nil
		})
	}
	_ = g.Wait()
	return same
}

// SameUpdate asks whether two summaries describe the same update; only a literal YES counts.
func (c *Consensus) SameUpdate(ctx context.Context, a, b string) (bool, error) {
	if c.chat == nil {
		return false, fmt.Errorf("chat client is not configured")
	}

	callCtx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	answer, err := c.chat.Complete(callCtx, []ports.Message{
		{Role: "system", Content: compareSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Summary A:\n%s\n\nSummary B:\n%s\n\nAnswer only YES or NO.", a, b)},
	})
	if err != nil {
		return false, fmt.Errorf("compare summaries: %w", err)
	}
	return isYes(answer), nil
}

func isYes(answer string) bool {
	return strings.ToUpper(nonWord.ReplaceAllString(answer, "")) == "YES"
}

func (c *Consensus) trivial(anchor domain.Anchor, m domain.Candidate) domain.MergedCandidate {
	return domain.MergedCandidate{
		Anchor:       anchor,
		Candidate:    m,
		Summary:      m.Summary,
		ArticleIDs:   []int64{m.ArticleID},
		ResolvedDate: latestPast([]domain.Candidate{m}, c.now()),
	}
}

func (c *Consensus) merge(anchor domain.Anchor, group []domain.Candidate) domain.MergedCandidate {
	summaries := make([]string, 0, len(group))
	ids := make([]int64, 0, len(group))
	for _, m := range group {
		summaries = append(summaries, m.Summary)
		ids = append(ids, m.ArticleID)
	}
	return domain.MergedCandidate{
		Anchor:       anchor,
		Candidate:    group[0],
		Summary:      strings.Join(summaries, " "),
		ArticleIDs:   ids,
		ResolvedDate: latestPast(group, c.now()),
	}
}

func latestPast(group []domain.Candidate, now time.Time) *time.Time {
	var latest *time.Time
	for _, m := range group {
		d := m.ArticlePublishedAt
		if d == nil || d.After(now) {
			continue
		}
		if latest == nil || d.After(*latest) {
			v := *d
			latest = &v
		}
	}
	return latest
}
