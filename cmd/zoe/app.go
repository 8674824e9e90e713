package main

import (
	"context"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/zoe-assistant/zoe/pkg/classifier"
	"github.com/zoe-assistant/zoe/pkg/convctx"
	"github.com/zoe-assistant/zoe/pkg/db"
	"github.com/zoe-assistant/zoe/pkg/intent"
	"github.com/zoe-assistant/zoe/pkg/llm"
	"github.com/zoe-assistant/zoe/pkg/logger"
	"github.com/zoe-assistant/zoe/pkg/metrics"
	"github.com/zoe-assistant/zoe/pkg/router"
	"github.com/zoe-assistant/zoe/pkg/skills"
)

// app holds the assembled pipeline shared by the serve and chat commands.
type app struct {
	database  *sqlx.DB
	registry  *skills.Registry
	executor  *skills.Executor
	collector *metrics.SQLiteCollector
	router    *router.Router
}

func (a *app) Close() error {
	if a.database != nil {
		return a.database.Close()
	}
	return nil
}

// newApp assembles the pipeline from viper config.
func newApp(ctx context.Context) (*app, error) {
	home, err := zoeHome()
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve state directory")
	}

	dbPath, err := db.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	database, err := db.Open(ctx, dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	runner := db.NewMigrationRunner(database)
	if err := runner.Run(ctx, convctx.Migrations()); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "conversation context migrations failed")
	}
	if err := runner.Run(ctx, metrics.Migrations()); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "metrics migrations failed")
	}

	registry := skills.NewRegistry(skills.RegistryConfig{
		CoreDir:       viper.GetString("skills.core_dir"),
		ModulesDir:    viper.GetString("skills.modules_dir"),
		UserDir:       filepath.Join(home, "skills"),
		ModulesConfig: filepath.Join(home, "modules.yaml"),
		LockfilePath:  filepath.Join(home, "skills.lock.json"),
	})
	if err := registry.Load(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("some skills failed to load")
	}

	executor := skills.NewExecutor(skills.ExecutorConfig{
		AllowedHosts: viper.GetStringSlice("skills.allowed_hosts"),
	})

	collector := metrics.NewSQLiteCollector(database)

	intentExec := intent.NewExecutor(convctx.NewSQLiteStore(database), collector)
	registerBuiltinHandlers(intentExec)

	opts := []router.Option{
		router.WithClassifier(classifier.NewPatternClassifier()),
	}

	responder, err := llm.NewResponder(llm.Config{
		Provider:  viper.GetString("llm.provider"),
		Model:     viper.GetString("llm.model"),
		BaseURL:   viper.GetString("llm.base_url"),
		APIKey:    viper.GetString("llm.api_key"),
		MaxTokens: viper.GetInt("llm.max_tokens"),
	})
	if err != nil {
		logger.G(ctx).WithError(err).Warn("LLM responder unavailable, falling back to canned replies")
	} else {
		opts = append(opts, router.WithResponder(responder))
	}

	return &app{
		database:  database,
		registry:  registry,
		executor:  executor,
		collector: collector,
		router:    router.New(registry, intentExec, opts...),
	}, nil
}
