// Package app assembles the assistant's dependencies from configuration. The
// API server and the terminal client share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/shop-assistant/internal/assistant"
	"github.com/capitalize-ai/shop-assistant/internal/commerce"
	"github.com/capitalize-ai/shop-assistant/internal/completion"
	"github.com/capitalize-ai/shop-assistant/internal/config"
	"github.com/capitalize-ai/shop-assistant/internal/handler"
	"github.com/capitalize-ai/shop-assistant/internal/llm"
	natsclient "github.com/capitalize-ai/shop-assistant/internal/nats"
	"github.com/capitalize-ai/shop-assistant/internal/service"
	"github.com/capitalize-ai/shop-assistant/internal/storage"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageNATS   = "nats"
)

var providerNames = map[llm.Provider]string{
	llm.ProviderGemini:    "Gemini",
	llm.ProviderAnthropic: "Claude",
	llm.ProviderOpenAI:    "OpenAI",
}

// App holds the wired dependencies.
type App struct {
	Config     *config.Config
	Store      storage.Store
	Completion *completion.Client
	Commerce   *commerce.Client
	Registry   *service.Registry

	nats    *natsclient.Client
	journal *natsclient.Journal
	checks  map[string]handler.Check
	closers []func()
	logger  *logger.Logger
}

// New builds every dependency named by cfg. A missing or broken LLM
// provider is not fatal: replies then degrade to the apology messages.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		checks: make(map[string]handler.Check),
		logger: log,
	}

	prompts, err := config.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	provider := llm.Provider(cfg.LLMProvider)
	llmClient, err := llm.NewClient(ctx, provider, cfg.LLMAPIKey())
	if err != nil {
		log.Warn("LLM client unavailable, replies will degrade",
			zap.String("provider", cfg.LLMProvider), zap.Error(err))
	}
	a.Completion = completion.NewClient(llmClient, cfg.LLMModel, prompts, log)

	a.Commerce = commerce.NewClient(cfg.BackendURL, cfg.BackendTimeout, log)

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var journal service.Journal
	if cfg.JournalEnabled {
		if err := a.openJournal(ctx); err != nil {
			a.Close()
			return nil, err
		}
		journal = a.journal
	}

	opts := assistant.Options{
		PrecomputeFallback: cfg.PrecomputeFallback,
		HistoryWindow:      cfg.HistoryWindow,
		Persona:            prompts.Persona,
		ProviderName:       providerNames[provider],
	}
	a.Registry = service.NewRegistry(a.Store, a.Commerce, a.Completion, journal, opts, log)

	log.Info("assistant wired",
		zap.String("storage", a.Store.Name()),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.Bool("llm_available", llmClient != nil),
		zap.Bool("journal", journal != nil),
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.StorageBackend {
	case StorageMemory:
		a.Store = storage.NewMemoryStore()

	case StorageSQLite:
		store, err := storage.OpenSQLite(ctx, a.Config.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.Store = store
		a.checks["storage"] = store.Ping
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("failed to close sqlite store", zap.Error(err))
			}
		})

	case StorageNATS:
		client, err := a.connectNATS(ctx)
		if err != nil {
			return err
		}
		store, err := natsclient.EnsureKVStore(ctx, client, a.Config.SessionTTL)
		if err != nil {
			return fmt.Errorf("failed to ensure session bucket: %w", err)
		}
		a.Store = store

	default:
		return fmt.Errorf("unknown storage backend %q", a.Config.StorageBackend)
	}
	return nil
}

func (a *App) openJournal(ctx context.Context) error {
	client, err := a.connectNATS(ctx)
	if err != nil {
		return err
	}
	journal := natsclient.NewJournal(client)
	if err := journal.EnsureStream(ctx); err != nil {
		return fmt.Errorf("failed to ensure journal stream: %w", err)
	}
	a.journal = journal
	return nil
}

// connectNATS connects once; the store and the journal share the connection.
func (a *App) connectNATS(ctx context.Context) (*natsclient.Client, error) {
	if a.nats != nil {
		return a.nats, nil
	}
	if a.Config.NATSURL == "" {
		return nil, errors.New("NATS_URL is required for the nats storage backend and the journal")
	}

	client, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      a.Config.NATSURL,
		CAFile:   a.Config.NATSCAFile,
		CertFile: a.Config.NATSCertFile,
		KeyFile:  a.Config.NATSKeyFile,
		Token:    a.Config.NATSToken,
		Name:     "shop-assistant",
	}, a.logger)
	if err != nil {
		return nil, err
	}
	a.nats = client
	a.checks["nats"] = client.Ping
	a.closers = append(a.closers, client.Close)
	return client, nil
}

// Checks returns the readiness checks of the wired dependencies.
func (a *App) Checks() map[string]handler.Check {
	return a.checks
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
