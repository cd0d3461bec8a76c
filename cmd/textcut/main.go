package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uttgeorge/textcut/internal/agent"
	"github.com/uttgeorge/textcut/internal/api"
	"github.com/uttgeorge/textcut/internal/config"
	"github.com/uttgeorge/textcut/internal/db"
	"github.com/uttgeorge/textcut/internal/llm"
	"github.com/uttgeorge/textcut/internal/logging"
	"github.com/uttgeorge/textcut/internal/project"
	"github.com/uttgeorge/textcut/internal/render"
	"github.com/uttgeorge/textcut/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting textcut", "version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	st, err := store.New(cfg.DataDir())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	repo := project.NewRepository(database.Conn())
	svc := project.NewService(repo, logger)

	transcoder := render.NewFFmpegTranscoder(render.Config{
		FFmpegPath:  cfg.FFmpegPath(),
		FFprobePath: cfg.FFprobePath(),
		Timeout:     cfg.RenderTimeout(),
		Logger:      logging.WithComponent(logger, "render"),
	})

	var editAgent *agent.Agent
	if cfg.LLMAPIKey() != "" {
		client := llm.NewHTTPClient(cfg.LLMBaseURL(), cfg.LLMAPIKey(), cfg.LLMModel(),
			logging.WithComponent(logger, "llm"))
		editAgent = agent.New(agent.Config{
			Client:     client,
			Transcoder: transcoder,
			Store:      st,
			Model:      cfg.LLMModel(),
			Logger:     logging.WithComponent(logger, "agent"),
		})
		logger.Info("AI editing enabled", "model", cfg.LLMModel(),
			"api_key", logging.SanitizeToken(cfg.LLMAPIKey()))
	} else {
		logger.Info("AI editing disabled: no API key configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := project.NewWorker(svc, repo, st, logging.WithComponent(logger, "worker"))
	go worker.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Service:    svc,
		Repository: repo,
		Store:      st,
		Agent:      editAgent,
		Prober:     transcoder,
		Transcoder: transcoder,
		Logger:     logger,
		StartTime:  startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
