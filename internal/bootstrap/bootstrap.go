package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sergiocoding96/order-pipeline/internal/config"
	"github.com/sergiocoding96/order-pipeline/internal/core/usecase"
	"github.com/sergiocoding96/order-pipeline/internal/infrastructure/extractor/payload"
	"github.com/sergiocoding96/order-pipeline/internal/infrastructure/llm/ollama"
	"github.com/sergiocoding96/order-pipeline/internal/infrastructure/llm/openaicompat"
	"github.com/sergiocoding96/order-pipeline/internal/infrastructure/repository/postgres"
	"github.com/sergiocoding96/order-pipeline/internal/infrastructure/resilience"
	"github.com/sergiocoding96/order-pipeline/internal/infrastructure/storage/localfs"
	natsbus "github.com/sergiocoding96/order-pipeline/internal/infrastructure/transport/nats"
	"github.com/sergiocoding96/order-pipeline/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Log    *slog.Logger

	Bus     *natsbus.Bus
	Queue   *usecase.ProcessingQueue
	Ingest  *usecase.IngestUseCase
	Metrics *metrics.PipelineMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	registry := postgres.NewRegistryRepository(db)
	if err := registry.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure registry schema: %w", err)
	}
	orders := postgres.NewOrderRepository(db)
	if err := orders.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure orders schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	bus, err := natsbus.NewWithOptions(cfg.NATSURL, cfg.NATSInboundSubject, cfg.NATSEventsSubject, natsbus.Options{
		ResilienceExecutor: executor,
		Logger:             log,
	})
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	providerTimeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second
	primary := openaicompat.New(openaicompat.Config{
		BaseURL:           cfg.OpenAICompatBaseURL,
		APIKey:            cfg.OpenAICompatAPIKey,
		Model:             cfg.OpenAICompatModel,
		VisionModel:       cfg.OpenAICompatVisionModel,
		Timeout:           providerTimeout,
		RequestsPerSecond: cfg.ProviderRPS,
		Executor:          executor,
	})
	fallback := ollama.New(ollama.Config{
		BaseURL:           cfg.OllamaURL,
		Model:             cfg.OllamaModel,
		Timeout:           providerTimeout,
		RequestsPerSecond: cfg.ProviderRPS,
		Executor:          executor,
	})

	rules, err := usecase.LoadClassifyRules(cfg.ClassifyRulesPath)
	if err != nil {
		log.Warn("classify rules file ignored", "error", err)
	}
	classifier := usecase.NewClassifier(rules)

	pipelineMetrics := metrics.NewPipelineMetrics("order-pipeline")

	inputs := payload.NewBuilder(storage)
	resolver := usecase.NewResolver(registry, primary, cfg.ResolveAIThreshold, pipelineMetrics, log)
	extractor := usecase.NewExtractor(primary, primary, fallback, cfg.ExtractParseRetries, pipelineMetrics, log)
	pipeline := usecase.NewPipeline(classifier, inputs, extractor, resolver, orders, log)

	queue := usecase.NewProcessingQueue(usecase.QueueConfig{
		Concurrency: cfg.QueueConcurrency,
		MaxAttempts: cfg.QueueMaxAttempts,
		RetryDelay:  cfg.QueueRetryDelay,
	}, classifier, pipeline, bus, pipelineMetrics, log)

	ingest := usecase.NewIngestUseCase(storage, classifier, queue, log)

	return &App{
		Config:  cfg,
		Log:     log,
		Bus:     bus,
		Queue:   queue,
		Ingest:  ingest,
		Metrics: pipelineMetrics,

		closeFn: func() {
			bus.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
