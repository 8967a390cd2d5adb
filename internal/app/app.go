package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"RegulationScanner/internal/config"
	"RegulationScanner/internal/domain"
	"RegulationScanner/internal/infrastructure/llm"
	"RegulationScanner/internal/infrastructure/metrics"
	"RegulationScanner/internal/infrastructure/parser"
	"RegulationScanner/internal/infrastructure/scheduler"
	"RegulationScanner/internal/infrastructure/search"
	"RegulationScanner/internal/infrastructure/storage"
	"RegulationScanner/internal/infrastructure/telegram"
	"RegulationScanner/internal/logging"
	"RegulationScanner/internal/ports"
	"RegulationScanner/internal/scanner"
	"RegulationScanner/internal/usecase"
)

const searchProvider = "tavily"

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	repo      *storage.Repository
	metrics   *metrics.Recorder
	pipeline  *usecase.Pipeline
	verifier  *usecase.Verifier
	scheduler *usecase.Scheduler
	closers   []func() error
}

// New opens storage, seeds configured topics and builds every adapter.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	logger := logging.Component(baseLogger, "app")

	repo, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a := &Application{cfg: cfg, logger: logger, repo: repo, closers: []func() error{repo.Close}}

	if err := SeedTopics(ctx, repo, cfg.Topics); err != nil {
		_ = a.Close()
		return nil, err
	}

	registry := scanner.NewRegistry()
	registry.Register(search.NewTavilyClient(cfg.Search, &http.Client{Timeout: cfg.Timeouts.Search}))
	provider, err := registry.Resolve(searchProvider)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	source := scanner.New(provider, scanner.Options{
		Lookback:     time.Duration(cfg.Search.LookbackDays) * 24 * time.Hour,
		KeepUndated:  cfg.Search.KeepUndatedHits(),
		DefaultLimit: cfg.Search.MaxResultsPerQuery,
		QueryTimeout: cfg.Timeouts.Search,
	}, baseLogger)

	chat, err := a.newChatClient(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.metrics = metrics.NewRecorder()

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID); tg.Configured() {
		notifier = tg
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:   source,
		Articles: repo,
		Updates:  repo,
		Topics:   repo,
		Chat:     chat,
		Notifier: notifier,
		Metrics:  a.metrics,
		Logger:   baseLogger,
		Options: usecase.PipelineOptions{
			ExtractConcurrency: cfg.Pipeline.ExtractConcurrency,
			CompareConcurrency: cfg.Pipeline.CompareConcurrency,
			LLMTimeout:         cfg.Timeouts.LLM,
			StorageTimeout:     cfg.Timeouts.Storage,
			ImpactHigh:         cfg.Impact.High,
			ImpactMedium:       cfg.Impact.Medium,
		},
	})

	primary := parser.NewPrimaryFetcher(&http.Client{Timeout: cfg.Timeouts.PrimarySource}, baseLogger)
	a.verifier = usecase.NewVerifier(repo, repo, primary, chat, cfg.Timeouts.LLM, baseLogger)

	return a, nil
}

func (a *Application) newChatClient(ctx context.Context) (ports.ChatClient, error) {
	switch strings.ToLower(strings.TrimSpace(a.cfg.LLM.Provider)) {
	case "gemini":
		client, err := llm.NewGeminiClient(ctx, a.cfg.Gemini, a.cfg.LLM)
		if errors.Is(err, llm.ErrNotConfigured) {
			a.logger.Warn("gemini is not configured, extraction disabled")
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("init gemini: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return client, nil
	case "", "openai":
		if a.cfg.LLM.APIKey == "" {
			a.logger.Warn("openai api key is not set, extraction disabled")
			return nil, nil
		}
		return llm.NewChatGPTClient(a.cfg.LLM), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", a.cfg.LLM.Provider)
	}
}

// Run executes one fleet run over every active topic.
func (a *Application) Run(ctx context.Context) (domain.FleetSummary, error) {
	return a.pipeline.RunAll(ctx)
}

// Serve runs the cron schedule and the metrics endpoint until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	driver, err := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location())
	if err != nil {
		return err
	}
	a.scheduler = usecase.NewScheduler(driver, a.pipeline, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Metrics.Addr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			a.logger.Info("metrics endpoint listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		if err := a.scheduler.Start(gctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression, "next", driver.Next(time.Now()))
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return a.scheduler.Stop(stopCtx)
	})

	return g.Wait()
}

// Verify compares the topic's latest updates with its primary source.
func (a *Application) Verify(ctx context.Context, topicID string) (domain.Verification, error) {
	return a.verifier.Verify(ctx, topicID)
}

// Latest lists current latest updates; an empty topicID lists all topics.
func (a *Application) Latest(ctx context.Context, topicID string) ([]domain.LatestUpdate, error) {
	return a.repo.ListLatest(ctx, topicID)
}

// Close releases storage and LLM clients.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SeedTopics upserts the topics declared in configuration.
func SeedTopics(ctx context.Context, store ports.TopicStore, topics []config.TopicConfig) error {
	for _, t := range topics {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("seed topics: topic %q has no id", t.Name)
		}
		if err := store.UpsertTopic(ctx, TopicFromConfig(t)); err != nil {
			return fmt.Errorf("seed topic %s: %w", t.ID, err)
		}
	}
	return nil
}

// TopicFromConfig converts a configured topic; a missing active flag means active.
func TopicFromConfig(t config.TopicConfig) domain.Topic {
	topic := domain.Topic{
		ID:     t.ID,
		Name:   t.Name,
		Active: t.Active == nil || *t.Active,
	}
	for _, p := range t.Profiles {
		topic.Profiles = append(topic.Profiles, domain.SearchProfile{
			Authority:      p.Authority,
			Queries:        p.Queries,
			PrimarySources: p.PrimarySources,
			AllowedDomains: p.AllowedDomains,
			TriggerWords:   p.TriggerWords,
			MaxArticles:    p.MaxArticles,
		})
	}
	return topic
}
