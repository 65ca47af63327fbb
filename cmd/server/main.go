package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/hintze-labs/toolshed/internal/api"
	"github.com/hintze-labs/toolshed/internal/cache"
	"github.com/hintze-labs/toolshed/internal/config"
	"github.com/hintze-labs/toolshed/internal/db"
	"github.com/hintze-labs/toolshed/internal/extract"
	"github.com/hintze-labs/toolshed/internal/logger"
	"github.com/hintze-labs/toolshed/internal/notify"
)

func main() {
	fs := flag.NewFlagSet("toolshed", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	dbPath := fs.String("db", "", "path to SQLite database file (overrides config)")
	addr := fs.String("addr", "", "listen address (overrides config)")
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Database = *dbPath
	}
	if *addr != "" {
		cfg.Listen = *addr
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "toolshed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	database, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	if cfg.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	var opts []extract.GeminiOption
	if cfg.Gemini.Model != "" {
		opts = append(opts, extract.WithModel(cfg.Gemini.Model))
	}
	if cfg.Gemini.FilterModel != "" {
		opts = append(opts, extract.WithFilterModel(cfg.Gemini.FilterModel))
	}
	extractor, err := extract.NewGeminiExtractor(context.Background(), cfg.Gemini.APIKey, log.Named("gemini"), opts...)
	if err != nil {
		return fmt.Errorf("building extractor: %w", err)
	}

	notifier := notify.New(cfg.WebhookURL, log.Named("notify"))
	if notifier == nil {
		log.Info("webhook notifications disabled")
	}

	router := api.NewRouter(api.Deps{
		DB:      database,
		Extract: extractor,
		Sink:    notifier,
		Cache:   &cache.Signal{},
		Log:     log,
	})

	log.Info("server listening", zap.String("addr", cfg.Listen), zap.String("db", cfg.Database))
	return http.ListenAndServe(cfg.Listen, router)
}
