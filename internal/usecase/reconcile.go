package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"RegulationScanner/internal/domain"
	"RegulationScanner/internal/logging"
	"RegulationScanner/internal/ports"
)

const (
	titleLength   = 100
	recordRetries = 3
)

// ReconcileResult counts what one reconciliation pass wrote.
type ReconcileResult struct {
	Recorded int
	Promoted []domain.VerifiedUpdate
}

// Reconciler turns merged candidates into verified updates and maintains the latest pointer.
type Reconciler struct {
	articles ports.ArticleStore
	updates  ports.UpdateStore
	impact   *ImpactClassifier
	timeout  time.Duration
	logger   *slog.Logger
	metrics  ports.Metrics
	now      func() time.Time
}

// NewReconciler wires the stores; a nil classifier uses the default term sets.
func NewReconciler(articles ports.ArticleStore, updates ports.UpdateStore, impact *ImpactClassifier, timeout time.Duration, logger *slog.Logger, metrics ports.Metrics) *Reconciler {
	if impact == nil {
		impact = NewImpactClassifier(nil, nil)
	}
	return &Reconciler{
		articles: articles,
		updates:  updates,
		impact:   impact,
		timeout:  timeout,
		logger:   logging.Component(logger, "reconciler"),
		metrics:  orNopMetrics(metrics),
		now:      time.Now,
	}
}

// Reconcile records every usable merged candidate; per-candidate failures are logged and skipped.
func (r *Reconciler) Reconcile(ctx context.Context, topicID string, merged []domain.MergedCandidate) ReconcileResult {
	var result ReconcileResult
	for _, m := range merged {
		if strings.TrimSpace(m.Summary) == "" || len(m.ArticleIDs) == 0 {
			r.logger.Debug("skipping empty merged candidate", "topic", topicID, "anchor", m.Anchor)
			continue
		}
		if err := ctx.Err(); err != nil {
			r.logger.Warn("reconcile interrupted", "topic", topicID, "error", err)
			break
		}

		update, err := r.record(ctx, topicID, m)
		if err != nil {
			r.logger.Error("record verified update failed", "topic", topicID, "anchor", m.Anchor, "error", err)
			continue
		}

		result.Recorded++
		r.metrics.UpdateRecorded(topicID, update.IsLatest)
		if update.IsLatest {
			result.Promoted = append(result.Promoted, update)
		}

		storeCtx, cancel := withTimeout(ctx, r.timeout)
		if err := r.articles.MarkProcessed(storeCtx, m.ArticleIDs); err != nil {
			r.logger.Warn("mark articles processed failed", "topic", topicID, "anchor", m.Anchor, "article_ids", m.ArticleIDs, "error", err)
		}
		cancel()
	}
	return result
}

// BuildUpdate derives the verified update for a merged candidate without touching storage.
func (r *Reconciler) BuildUpdate(topicID string, m domain.MergedCandidate) domain.VerifiedUpdate {
	anchor := m.Anchor
	if anchor == "" {
		anchor = domain.BuildAnchor(topicID, m.Candidate)
	}
	return domain.VerifiedUpdate{
		TopicID:            topicID,
		Anchor:             anchor,
		Title:              truncateRunes(m.Summary, titleLength),
		Summary:            m.Summary,
		Impact:             r.impact.Classify(m.Summary),
		RelatedArticleIDs:  m.ArticleIDs,
		DeducedPublishedAt: DeduceDate(m, r.now()),
	}
}

// DeduceDate prefers the event month, falls back to the resolved merge date and drops future dates.
func DeduceDate(m domain.MergedCandidate, now time.Time) *time.Time {
	var date *time.Time
	if start, ok := m.Candidate.EventMonthStart(); ok {
		date = &start
	} else if m.ResolvedDate != nil {
		d := *m.ResolvedDate
		date = &d
	}
	if date == nil || date.After(now) {
		return nil
	}
	return date
}

func (r *Reconciler) record(ctx context.Context, topicID string, m domain.MergedCandidate) (domain.VerifiedUpdate, error) {
	update := r.BuildUpdate(topicID, m)

	for attempt := 1; ; attempt++ {
		storeCtx, cancel := withTimeout(ctx, r.timeout)
		current, err := r.updates.CurrentLatest(storeCtx, topicID, update.Anchor)
		if err != nil {
			cancel()
			return domain.VerifiedUpdate{}, fmt.Errorf("load current latest: %w", err)
		}

		var supersede *int64
		update.IsLatest = update.Supersedes(current)
		if update.IsLatest && current != nil {
			supersede = &current.ID
		}
		update.CreatedAt = r.now().UTC()

		id, err := r.updates.Record(storeCtx, update, supersede)
		cancel()
		if err == nil {
			update.ID = id
			return update, nil
		}
		if !errors.Is(err, ports.ErrLatestChanged) || attempt >= recordRetries {
			return domain.VerifiedUpdate{}, fmt.Errorf("record update: %w", err)
		}
		r.logger.Debug("latest pointer moved, retrying", "topic", topicID, "anchor", update.Anchor, "attempt", attempt)
	}
}
