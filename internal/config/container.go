package config

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"legal-doc-analyzer/internal/domain"
	"legal-doc-analyzer/internal/handler"
	"legal-doc-analyzer/internal/llm"
	"legal-doc-analyzer/internal/repository"
	"legal-doc-analyzer/internal/retrieval"
	"legal-doc-analyzer/internal/risk"
	"legal-doc-analyzer/internal/service"
	"legal-doc-analyzer/internal/store"
	"legal-doc-analyzer/pkg/logger"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Container holds all application dependencies
type Container struct {
	Config    *AppConfig
	Logger    domain.Logger
	Store     domain.Store
	Files     domain.FileStore
	Invoker   *llm.Invoker
	Pool      *service.WorkerPool
	Pipeline  *service.AnalysisPipeline
	Documents *service.DocumentService
	Notebooks *service.NotebookService

	closers []func() error
}

// NewContainer builds every component from cfg. On error anything already
// opened is closed again.
func NewContainer(ctx context.Context, cfg *AppConfig) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logger.NewLogger(cfg.Log.Level, cfg.Log.Format),
	}
	if err := c.build(ctx); err != nil {
		c.close()
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context) error {
	cfg := c.Config

	st, err := newStore(ctx, cfg, c.Logger)
	if err != nil {
		return err
	}
	c.Store = st
	c.closers = append(c.closers, st.Close)

	files, err := newFileStore(cfg)
	if err != nil {
		return err
	}
	c.Files = files

	invoker, err := c.newInvoker(ctx)
	if err != nil {
		return err
	}
	c.Invoker = invoker

	scorer, err := risk.NewScorer(risk.WithBands(cfg.Scoring))
	if err != nil {
		return eris.Wrap(err, "failed to build risk scorer")
	}

	pdf := service.NewPDFProcessor(c.Logger, cfg.Pipeline.MinBlockChars, cfg.Pipeline.PageTimeout)
	c.Pool = service.NewWorkerPool(cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, c.Logger)
	c.Pipeline = service.NewAnalysisPipeline(
		st, st, files, pdf, scorer, invoker, c.Pool,
		service.PipelineConfig{
			MaxAIBlocks:     cfg.Pipeline.MaxAIBlocks,
			BlockWorkers:    cfg.Pipeline.BlockWorkers,
			Budget:          cfg.Pipeline.Budget,
			SummaryMaxChars: cfg.Pipeline.SummaryMaxChars,
			MaxFileSize:     cfg.Upload.MaxFileSize,
		},
		c.Logger,
	)

	chunker := retrieval.NewChunker(
		retrieval.WithChunkSize(cfg.Retrieval.ChunkSize),
		retrieval.WithOverlap(cfg.Retrieval.ChunkOverlap),
	)
	qa := service.NewQAEngine(invoker, retrieval.NewRetriever(chunker), service.QAConfig{
		DocumentContextChars: cfg.Retrieval.DocumentContextChars,
		NotebookContextChars: cfg.Retrieval.NotebookContextChars,
		TopK:                 cfg.Retrieval.TopK,
	}, c.Logger)

	c.Documents = service.NewDocumentService(c.Pipeline, st, st, qa, c.Logger)
	c.Notebooks = service.NewNotebookService(st, pdf, qa, cfg.Upload.MaxFileSize, c.Logger)

	c.Logger.Info("Container initialized",
		"storage", cfg.Storage.Driver,
		"files", cfg.Storage.Files,
		"models", invoker.Targets(),
		"workers", cfg.Pipeline.Workers,
	)
	return nil
}

// Router builds the HTTP handler tree.
func (c *Container) Router() http.Handler {
	return handler.NewRouter(
		handler.NewDocumentHandler(c.Documents, c.Config.Upload.MaxFileSize, c.Logger),
		handler.NewNotebookHandler(c.Notebooks, c.Config.Upload.MaxFileSize, c.Logger),
		c.Config.Server.AllowedOrigins,
		c.Logger,
	)
}

// Start launches the analysis workers.
func (c *Container) Start() {
	c.Pool.Start()
}

// Shutdown drains queued analyses, then closes the store and model clients.
func (c *Container) Shutdown(ctx context.Context) error {
	var drainErr error
	if c.Pool != nil {
		drainErr = c.Pool.Shutdown(ctx)
		if drainErr != nil {
			c.Logger.Warn("Worker pool did not drain in time", "error", drainErr)
		}
	}
	if err := c.close(); err != nil {
		return err
	}
	return drainErr
}

func (c *Container) close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.Logger.Error("Failed to close resource", err)
			if first == nil {
				first = err
			}
		}
	}
	c.closers = nil
	return first
}

func newStore(ctx context.Context, cfg *AppConfig, log domain.Logger) (domain.Store, error) {
	switch cfg.Storage.Driver {
	case DriverSQLite:
		if dir := filepath.Dir(cfg.Storage.DatabasePath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, eris.Wrapf(err, "failed to create database dir %s", dir)
			}
		}
		s, err := store.NewSQLite(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := store.NewPostgres(ctx, cfg.Storage.DatabaseURL, &cfg.Storage.Pool)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case DriverSupabase:
		return repository.NewSupabaseStore(cfg, log)
	default:
		return store.NewMemory(), nil
	}
}

func newFileStore(cfg *AppConfig) (domain.FileStore, error) {
	switch cfg.Storage.Files {
	case FilesLocal:
		return service.NewLocalFileStore(cfg.Storage.FilesDir)
	case FilesSupabase:
		return service.NewStorageService(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.Bucket), nil
	default:
		return service.NewMemoryFileStore(), nil
	}
}

// newInvoker builds the fallback chain. Targets whose provider has no
// credentials are skipped; an empty chain yields a disabled invoker.
func (c *Container) newInvoker(ctx context.Context) (*llm.Invoker, error) {
	ai := c.Config.AI

	specs := ai.Models
	if len(specs) == 0 {
		for _, m := range llm.DefaultGroqModels {
			specs = append(specs, llm.ProviderGroq+":"+m)
		}
	}

	clients := make(map[string]llm.Client)
	clientFor := func(provider string) (llm.Client, error) {
		if cl, ok := clients[provider]; ok {
			return cl, nil
		}
		var (
			cl  llm.Client
			err error
		)
		switch provider {
		case llm.ProviderGroq:
			if ai.GroqAPIKey == "" {
				return nil, nil
			}
			cl, err = llm.NewGroqClient(llm.GroqConfig{APIKey: ai.GroqAPIKey, BaseURL: ai.GroqBaseURL})
		case llm.ProviderAnthropic:
			if ai.AnthropicAPIKey == "" {
				return nil, nil
			}
			cl, err = llm.NewAnthropicClient(ai.AnthropicAPIKey, option.WithMaxRetries(0))
		case llm.ProviderVertex:
			if ai.GCPProjectID == "" {
				return nil, nil
			}
			var vc *llm.VertexClient
			vc, err = llm.NewVertexClient(ctx, llm.VertexConfig{
				ProjectID:       ai.GCPProjectID,
				Location:        ai.GCPLocation,
				CredentialsFile: ai.GCPCredentialsFile,
			})
			if err == nil {
				c.closers = append(c.closers, vc.Close)
				cl = vc
			}
		}
		if err != nil {
			return nil, err
		}
		clients[provider] = cl
		return cl, nil
	}

	var targets []llm.Target
	for _, spec := range specs {
		provider, model, err := llm.ParseTarget(spec)
		if err != nil {
			return nil, eris.Wrap(err, "config: ai.models")
		}
		cl, err := clientFor(provider)
		if err != nil {
			return nil, err
		}
		if cl == nil {
			c.Logger.Warn("Skipping model target without credentials", "target", spec)
			continue
		}
		targets = append(targets, llm.Target{Provider: provider, Model: model, Client: cl})
	}

	inv := llm.NewInvoker(targets,
		llm.WithRetry(ai.AttemptsPerModel, ai.InitialBackoff),
		llm.WithCallTimeout(ai.CallTimeout),
		llm.WithRateLimit(ai.RateLimit, ai.RateBurst),
		llm.WithGeneration(ai.MaxTokens, ai.Temperature),
		llm.WithLogger(c.Logger),
	)
	if !inv.Enabled() {
		c.Logger.Warn("No AI model configured, clause analysis falls back to rules. Set GROQ_API_KEY to enable it.")
	}
	return inv, nil
}
