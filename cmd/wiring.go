package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/josephgoksu/taskforge/internal/app"
	"github.com/josephgoksu/taskforge/internal/complexity"
	"github.com/josephgoksu/taskforge/internal/config"
	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/memory"
	"github.com/josephgoksu/taskforge/internal/prompts"
	"github.com/josephgoksu/taskforge/internal/retrieval"
	"github.com/josephgoksu/taskforge/internal/task"
	"github.com/josephgoksu/taskforge/internal/telemetry"
)

// services is the wired application plus the resources that need closing.
type services struct {
	app       *app.Context
	store     *memory.SQLiteStore
	prompts   *prompts.Resolver
	telemetry telemetry.Client
	logger    *slog.Logger
}

// Close flushes telemetry and closes the database.
func (s *services) Close() {
	if s.telemetry != nil {
		_ = s.telemetry.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

// openServices wires storage, prompts, ranking and telemetry. Model clients are
// only built when withModels is set, so commands that never call a model work
// without provider credentials.
func openServices(ctx context.Context, withModels bool) (*services, error) {
	logger := newLogger(os.Stderr)

	dataDir := config.GetDataDir()
	store, err := memory.NewSQLiteStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open task store at %s: %w", dataDir, err)
	}
	logger.Debug("task store opened", "dir", dataDir)

	s := &services{store: store, logger: logger}

	var reports complexity.Store = store
	if config.ReportsBackend() == config.ReportsBackendFile {
		reports = complexity.NewFileStore(afero.NewOsFs(), config.GetReportsDir())
	}

	var gen llm.Generator
	if withModels {
		adapter, err := newAdapter(ctx, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		gen = adapter
	}

	s.prompts = prompts.NewResolver(afero.NewOsFs(), config.GetPromptsDir(), logger)
	s.telemetry = newTelemetryClient(logger)

	rc := config.LoadRankerConfig()
	ranker := retrieval.NewRanker(task.LoadCategories(),
		retrieval.WithWeights(rc.Weights),
		retrieval.WithRecentWindow(rc.RecentWindow),
	)
	cc := config.LoadContextConfig()
	gatherer := retrieval.NewGatherer(store, afero.NewOsFs(), retrieval.GathererConfig{
		Root:         cc.Root,
		MaxFileBytes: cc.MaxFileBytes,
		TreeDepth:    cc.TreeDepth,
	}, logger)

	s.app = app.NewContext(app.Deps{
		Repo:      store,
		Reports:   reports,
		Gen:       gen,
		Prompts:   s.prompts,
		Ranker:    ranker,
		Gatherer:  gatherer,
		Telemetry: s.telemetry,
		Pipeline:  config.LoadPipelineConfig(),
		Logger:    logger,
	})
	return s, nil
}

func newAdapter(ctx context.Context, logger *slog.Logger) (*llm.Adapter, error) {
	cfgs, err := config.LoadLLMConfig()
	if err != nil {
		return nil, fmt.Errorf("load LLM config: %w", err)
	}
	models, err := llm.NewRoleModels(ctx, cfgs)
	if err != nil {
		return nil, fmt.Errorf("create chat models: %w", err)
	}
	logger.Debug("chat models ready", "provider", cfgs.Main.Provider, "model", cfgs.Main.Model, "research", cfgs.Research != nil)
	return llm.NewAdapter(ctx, models, logger)
}

// newTelemetryClient returns a PostHog client when the user opted in and an
// API key is configured, otherwise a no-op client.
func newTelemetryClient(logger *slog.Logger) telemetry.Client {
	cfg, err := telemetry.LoadConfig(telemetryDir())
	if err != nil {
		logger.Debug("telemetry config unreadable", "error", err)
		return telemetry.NewNoopClient()
	}
	if viper.IsSet("telemetry.enabled") {
		cfg.Enabled = viper.GetBool("telemetry.enabled")
	}
	client, err := telemetry.NewPostHogClient(telemetry.ClientConfig{
		APIKey:   viper.GetString("telemetry.apiKey"),
		Version:  version,
		Config:   cfg,
		Endpoint: viper.GetString("telemetry.endpoint"),
	})
	if err != nil {
		logger.Debug("telemetry disabled", "error", err)
		return telemetry.NewNoopClient()
	}
	return client
}

// watchPrompts reloads prompt overrides while ctx is alive. A missing override
// directory is not an error.
func watchPrompts(ctx context.Context, s *services) {
	dir := config.GetPromptsDir()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return
	}
	go func() {
		if err := s.prompts.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("prompt watcher stopped", "error", err)
		}
	}()
}
