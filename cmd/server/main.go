package main

import (
	"DocVerify/internal/adapters/backend"
	"DocVerify/internal/adapters/httpapi"
	"DocVerify/internal/adapters/postgres"
	"DocVerify/internal/adapters/telegram"
	"DocVerify/internal/adapters/verifier"
	"DocVerify/internal/core/ports"
	"DocVerify/internal/core/routing"
	"DocVerify/internal/metrics"
	"DocVerify/internal/orchestrator"
	"DocVerify/internal/shared/config"
	"DocVerify/internal/shared/logger"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	isDevMode := cfg.AppEnv == "dev"
	baseLogger := logger.New(isDevMode)
	baseLogger.Info().
		Str("app_env", cfg.AppEnv).
		Dur("process_interval", cfg.Queue.ProcessInterval).
		Int("batch_size", cfg.Queue.BatchSize).
		Msg("Configuration loaded")

	// 3. Register Metrics
	metrics.Init()

	// 4. Initialize Database
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.DatabaseURL, &baseLogger)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// 5. Initialize the Event Repository
	eventRepo := postgres.NewEventRepository(db, postgres.RetryPolicy{
		MaxAttempts: cfg.Queue.MaxAttempts,
		StaleAfter:  cfg.Queue.StaleAfter,
		BackoffBase: cfg.Queue.BackoffBase,
		BackoffCap:  cfg.Queue.BackoffCap,
	}, &baseLogger)

	// 6. Initialize the external collaborators
	docVerifier := verifier.NewHTTPVerifier(cfg.Verifier.BaseURL, cfg.Verifier.Timeout, &baseLogger)
	backendClient := backend.NewClient(
		cfg.Backend.BaseURL,
		cfg.Backend.Email,
		cfg.Backend.Password,
		cfg.Backend.Timeout,
		&baseLogger,
	)

	// 7. Optional ops alerts via Telegram
	var notifier ports.AlertNotifier
	if cfg.Telegram.BotToken != "" {
		notifier, err = telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, &baseLogger)
		if err != nil {
			// Alerts are nice to have; the pipeline runs without them.
			baseLogger.Error().Err(err).Msg("Telegram alerts disabled")
			notifier = nil
		}
	}

	// 8. Build the Orchestrator
	engine := orchestrator.New(
		eventRepo,
		docVerifier,
		backendClient,
		routing.NewRouter(),
		notifier,
		orchestrator.Options{
			Interval:      cfg.Queue.ProcessInterval,
			PassTimeout:   cfg.Queue.PassTimeout,
			BatchSize:     cfg.Queue.BatchSize,
			VerifyTimeout: cfg.Verifier.Timeout,
		},
		&baseLogger,
	)

	// 9. Run the intake server and the batch scheduler until shutdown
	server := httpapi.NewServer(eventRepo, &cfg.HTTP, &baseLogger)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil {
			baseLogger.Error().Err(err).Msg("Intake server failed")
			stop()
		}
	}()

	go func() {
		defer wg.Done()
		engine.Run(ctx)
	}()

	baseLogger.Info().Msg("All services initialized successfully")
	wg.Wait()
	baseLogger.Info().Msg("Shutdown complete")
}
