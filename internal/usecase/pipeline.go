package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"RegulationScanner/internal/domain"
	"RegulationScanner/internal/logging"
	"RegulationScanner/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source   ports.ArticleSource
	Articles ports.ArticleStore
	Updates  ports.UpdateStore
	Topics   ports.TopicStore
	Chat     ports.ChatClient
	Notifier ports.Notifier
	Metrics  ports.Metrics
	Logger   *slog.Logger
	Options  PipelineOptions
}

// PipelineOptions tunes fan-out, per-call timeouts and impact terms.
type PipelineOptions struct {
	ExtractConcurrency int
	CompareConcurrency int
	LLMTimeout         time.Duration
	StorageTimeout     time.Duration
	ImpactHigh         []string
	ImpactMedium       []string
}

// Pipeline implements the regulatory-update ingestion workflow.
type Pipeline struct {
	source   ports.ArticleSource
	articles ports.ArticleStore
	topics   ports.TopicStore
	notifier ports.Notifier
	metrics  ports.Metrics
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time

	extractor  *Extractor
	consensus  *Consensus
	reconciler *Reconciler
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	metrics := orNopMetrics(deps.Metrics)
	opts := deps.Options
	return &Pipeline{
		source:     deps.Source,
		articles:   deps.Articles,
		topics:     deps.Topics,
		notifier:   deps.Notifier,
		metrics:    metrics,
		logger:     logging.Component(deps.Logger, "pipeline"),
		timeout:    opts.StorageTimeout,
		now:        time.Now,
		extractor:  NewExtractor(deps.Chat, opts.ExtractConcurrency, opts.LLMTimeout, deps.Logger, metrics),
		consensus:  NewConsensus(deps.Chat, opts.CompareConcurrency, opts.LLMTimeout, deps.Logger),
		reconciler: NewReconciler(deps.Articles, deps.Updates, NewImpactClassifier(opts.ImpactHigh, opts.ImpactMedium), opts.StorageTimeout, deps.Logger, metrics),
	}
}

// RunTopic scans, stores, extracts, merges and reconciles one topic profile.
// Empty scans and empty extractions are successful runs without consensus.
func (p *Pipeline) RunTopic(ctx context.Context, cfg domain.TopicConfig) (result domain.RunResult, err error) {
	started := p.now()
	result.TopicID = cfg.ID
	defer func() {
		status := "ok"
		switch {
		case err != nil:
			status = "error"
		case !result.Consensus:
			status = "empty"
		}
		p.metrics.TopicRun(cfg.ID, status, p.now().Sub(started))
	}()

	if p.source == nil || p.articles == nil {
		return result, fmt.Errorf("pipeline is missing its article source or store")
	}

	p.logger.Info("topic run started", "topic", cfg.ID, "queries", len(cfg.Queries))
	found := p.source.ScanTopic(ctx, cfg)

	storeCtx, cancel := withTimeout(ctx, p.timeout)
	ids, insertErr := p.articles.DedupeAndInsert(storeCtx, cfg.ID, found)
	cancel()
	if insertErr != nil {
		p.logger.Warn("some articles were not stored", "topic", cfg.ID, "error", insertErr)
	}
	result.NewArticles = len(ids)
	p.metrics.ArticlesInserted(cfg.ID, len(ids))
	if len(ids) == 0 {
		result.OK = true
		p.logger.Info("no new articles", "topic", cfg.ID, "found", len(found))
		return result, nil
	}

	storeCtx, cancel = withTimeout(ctx, p.timeout)
	stored, err := p.articles.ArticlesByID(storeCtx, ids)
	cancel()
	if err != nil {
		return result, fmt.Errorf("load new articles: %w", err)
	}

	candidates := p.extractor.Synthesize(ctx, cfg, stored)
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		result.OK = true
		p.logger.Info("no candidates extracted", "topic", cfg.ID, "articles", len(stored))
		return result, nil
	}

	merged := p.consensus.GroupAndMerge(ctx, cfg.ID, candidates)
	result.Merged = len(merged)
	p.metrics.CandidatesMerged(cfg.ID, len(merged))

	rec := p.reconciler.Reconcile(ctx, cfg.ID, merged)
	result.Recorded = rec.Recorded
	result.Promoted = rec.Promoted
	result.OK = true
	result.Consensus = true

	p.logger.Info("topic run finished",
		"topic", cfg.ID,
		"new_articles", result.NewArticles,
		"candidates", result.Candidates,
		"merged", result.Merged,
		"recorded", result.Recorded,
		"promoted", len(result.Promoted),
	)
	return result, nil
}

// RunAll runs every profile of every active topic. Topic failures are recorded in
// the summary and never abort the fleet; the error is set only when topics cannot be listed.
func (p *Pipeline) RunAll(ctx context.Context) (domain.FleetSummary, error) {
	summary := domain.FleetSummary{RunID: uuid.NewString(), StartedAt: p.now().UTC()}
	logger := p.logger.With("run_id", summary.RunID)

	if p.topics == nil {
		return summary, fmt.Errorf("topic store is not configured")
	}

	storeCtx, cancel := withTimeout(ctx, p.timeout)
	topics, err := p.topics.ListTopics(storeCtx)
	cancel()
	if err != nil {
		return summary, fmt.Errorf("list topics: %w", err)
	}

	for _, topic := range topics {
		if !topic.Active {
			continue
		}
		if ctx.Err() != nil {
			logger.Warn("fleet run cancelled", "error", ctx.Err())
			break
		}
		summary.Topics = append(summary.Topics, p.runTopicProfiles(ctx, logger, topic))
	}

	summary.FinishedAt = p.now().UTC()
	logger.Info("fleet run finished", "topics", len(summary.Topics), "failed", len(summary.Failures()), "promoted", len(summary.Promoted()))

	p.notify(ctx, logger, summary)
	return summary, nil
}

func (p *Pipeline) runTopicProfiles(ctx context.Context, logger *slog.Logger, topic domain.Topic) domain.TopicOutcome {
	outcome := domain.TopicOutcome{TopicID: topic.ID, TopicName: topic.Name}
	configs := topic.Configs()
	outcome.Profiles = len(configs)

	var errs []string
	for _, cfg := range configs {
		res, err := p.runSafely(ctx, cfg)
		if err != nil {
			logger.Error("topic profile failed", "topic", topic.ID, "error", err)
			errs = append(errs, err.Error())
			continue
		}
		outcome.Succeeded++
		outcome.Consensus = outcome.Consensus || res.Consensus
		outcome.Promoted = append(outcome.Promoted, res.Promoted...)
	}

	if len(errs) > 0 {
		outcome.Error = strings.Join(errs, "; ")
	}
	if outcome.Succeeded == 0 {
		outcome.Failed = outcome.Profiles > 0
		return outcome
	}

	storeCtx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.topics.StampScanned(storeCtx, topic.ID, p.now().UTC()); err != nil {
		logger.Warn("stamp last scanned failed", "topic", topic.ID, "error", err)
	}
	return outcome
}

func (p *Pipeline) runSafely(ctx context.Context, cfg domain.TopicConfig) (res domain.RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("topic run panicked", "topic", cfg.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("topic %s panicked: %v", cfg.ID, r)
		}
	}()
	return p.RunTopic(ctx, cfg)
}

func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, summary domain.FleetSummary) {
	if p.notifier == nil || len(summary.Promoted()) == 0 {
		return
	}
	if err := p.notifier.PublishDigest(ctx, BuildDigest(summary)); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Warn("publish digest failed", "error", err)
	}
}

type nopMetrics struct{}

func (nopMetrics) ArticlesInserted(string, int)           {}
func (nopMetrics) CandidatesExtracted(string, int)        {}
func (nopMetrics) ExtractionFailed(string, string)        {}
func (nopMetrics) CandidatesMerged(string, int)           {}
func (nopMetrics) UpdateRecorded(string, bool)            {}
func (nopMetrics) TopicRun(string, string, time.Duration) {}

func orNopMetrics(m ports.Metrics) ports.Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
