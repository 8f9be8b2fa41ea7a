package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vectorscan/fault-diagnosis/internal/config"
	"github.com/vectorscan/fault-diagnosis/internal/core/diagnosis"
	"github.com/vectorscan/fault-diagnosis/internal/core/equipment"
	"github.com/vectorscan/fault-diagnosis/internal/core/ports"
	"github.com/vectorscan/fault-diagnosis/internal/core/textnorm"
	"github.com/vectorscan/fault-diagnosis/internal/core/usecase"
	"github.com/vectorscan/fault-diagnosis/internal/infrastructure/auth"
	"github.com/vectorscan/fault-diagnosis/internal/infrastructure/llm/ollama"
	"github.com/vectorscan/fault-diagnosis/internal/infrastructure/llm/openai"
	"github.com/vectorscan/fault-diagnosis/internal/infrastructure/queue/nats"
	"github.com/vectorscan/fault-diagnosis/internal/infrastructure/repository/postgres"
	"github.com/vectorscan/fault-diagnosis/internal/infrastructure/resilience"
	"github.com/vectorscan/fault-diagnosis/internal/infrastructure/vector/qdrant"
	"github.com/vectorscan/fault-diagnosis/internal/observability/metrics"
)

type App struct {
	Config   config.Config
	Metrics  *metrics.HTTPServerMetrics
	Executor *resilience.Executor

	Embedder   ports.Embedder
	Index      ports.FaultIndex
	DiagnoseUC *usecase.DiagnoseUseCase
	IndexUC    *usecase.IndexFaultsUseCase
	History    ports.DiagnosisHistory

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	app := &App{
		Config:  cfg,
		Metrics: metrics.NewHTTPServerMetrics(service),
	}

	resCfg := resilience.DefaultConfig()
	resCfg.RetryMaxAttempts = cfg.RetryMaxAttempts
	resCfg.BreakerEnabled = cfg.BreakerEnabled
	app.Executor = resilience.NewExecutor(resCfg)
	app.Executor.OnStateChange(app.Metrics.ObserveBreakerState)

	embedder, model, err := newProviders(cfg, app.Executor)
	if err != nil {
		return nil, err
	}
	app.Embedder = embedder
	app.Index = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.WithResilience(app.Executor))

	normalizer, err := newNormalizer(cfg.SpellDictionaryPath)
	if err != nil {
		return nil, err
	}

	var generator *diagnosis.Generator
	if model != nil {
		generator = diagnosis.NewGenerator(model,
			diagnosis.WithMaxTokens(cfg.GenMaxTokens),
			diagnosis.WithTemperature(cfg.GenTemperature),
		)
	}

	var index ports.FaultIndex
	if embedder != nil {
		index = app.Index
	}
	app.DiagnoseUC = usecase.NewDiagnoseUseCase(
		normalizer,
		equipment.NewClassifier(),
		embedder,
		index,
		generator,
		diagnosis.NewMockGenerator(),
		usecase.DiagnoseLimits{
			TopK:            cfg.RAGTopK,
			EmbedTimeout:    cfg.EmbedTimeout,
			SearchTimeout:   cfg.SearchTimeout,
			GenerateTimeout: cfg.GenerateTimeout,
		},
	).WithRecorder(app.Metrics)

	if embedder != nil {
		app.IndexUC = usecase.NewIndexFaultsUseCase(embedder, app.Index, 0)
	}

	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.closeFns = append(app.closeFns, func() { _ = db.Close() })

		repo := postgres.NewDiagnosisLogRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		app.DiagnoseUC.WithAuditLog(repo)
		app.History = repo
	} else {
		slog.Info("diagnosis_audit_log_disabled")
	}

	slog.Info("bootstrap_ready",
		"llm_provider", cfg.LLMProvider,
		"ai_enabled", generator != nil && embedder != nil,
		"qdrant_collection", cfg.QdrantCollection,
		"audit_log", app.History != nil,
	)
	return app, nil
}

// newProviders returns nil embedder and model when no provider is configured.
func newProviders(cfg config.Config, executor *resilience.Executor) (ports.Embedder, ports.LanguageModel, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithResilience(executor))
		return ollama.NewEmbedder(client), ollama.NewLanguageModel(client), nil
	case config.ProviderOpenAI:
		client, err := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel,
			openai.WithResilience(executor))
		if errors.Is(err, openai.ErrMissingAPIKey) {
			slog.Warn("llm_provider_unconfigured", "provider", cfg.LLMProvider, "reason", diagnosis.ReasonNoCredentials)
			return nil, nil, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("init openai client: %w", err)
		}
		return openai.NewEmbedder(client), openai.NewLanguageModel(client), nil
	case config.ProviderNone, "":
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func newNormalizer(dictionaryPath string) (*textnorm.Normalizer, error) {
	if dictionaryPath == "" {
		return textnorm.Default(), nil
	}
	words, err := textnorm.LoadDictionary(dictionaryPath)
	if err != nil {
		return nil, fmt.Errorf("load spell dictionary: %w", err)
	}
	return textnorm.New(words), nil
}

// NewAuth loads the user directory and the token service used by the HTTP API.
func (a *App) NewAuth() (*auth.Directory, *auth.TokenService, error) {
	tokens, err := auth.NewTokenService(a.Config.JWTSecret, a.Config.JWTTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("init token service: %w", err)
	}
	users, err := auth.LoadDirectory(a.Config.UsersFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load user directory: %w", err)
	}
	slog.Info("user_directory_loaded", "users", users.Len())
	return users, tokens, nil
}

// OpenQueue connects to NATS; the connection is closed with the app.
func (a *App) OpenQueue() (*nats.Queue, error) {
	queue, err := nats.NewWithOptions(a.Config.NATSURL, a.Config.NATSSubject, nats.Options{
		ResilienceExecutor: a.Executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	a.closeFns = append(a.closeFns, queue.Close)
	return queue, nil
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
