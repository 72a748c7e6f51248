package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hft-trading-bot/config"
	"hft-trading-bot/internal/api"
	"hft-trading-bot/internal/cache"
	"hft-trading-bot/internal/database"
	"hft-trading-bot/internal/events"
	"hft-trading-bot/internal/feed"
	"hft-trading-bot/internal/hft"
	"hft-trading-bot/internal/logging"
	"hft-trading-bot/internal/notification"
	"hft-trading-bot/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Logging)
	logger.Info().Msg("HFT trading bot starting")

	eventBus := events.NewEventBus()

	// Notifications
	var notifyManager *notification.Manager
	if cfg.Notification.Enabled {
		notifyManager = notification.NewManager()
		if cfg.Notification.Telegram.Enabled {
			notifyManager.AddNotifier(notification.NewTelegramNotifier(cfg.Notification.Telegram))
			logger.Info().Msg("Telegram notifications enabled")
		}
		eventBus.Subscribe(events.EventCircuitBreakerUpdate, func(event events.Event) {
			active, _ := event.Data["active"].(bool)
			reason, _ := event.Data["reason"].(string)
			if err := notifyManager.SendCircuitBreaker(active, reason); err != nil {
				logger.Warn().Err(err).Msg("Failed to send breaker notification")
			}
		})
	}

	// Persistence
	var repo *database.Repository
	if cfg.Database.Enabled {
		db, err := database.NewDB(cfg.Database, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.RunMigrations(migrateCtx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("Failed to run migrations")
		}
		cancel()
		repo = database.NewRepository(db)
	}

	// Redis signal distribution
	var signalCache *cache.SignalCache
	if cfg.Redis.Enabled {
		cacheService, err := cache.NewCacheService(cfg.Redis, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize Redis")
		}
		defer cacheService.Close()
		signalCache = cache.NewSignalCache(cacheService)
	}

	// Vault-backed credentials
	vaultClient, err := vault.NewClient(cfg.Vault)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Vault client")
	}
	if vaultClient.IsEnabled() {
		healthCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := vaultClient.Health(healthCtx); err != nil {
			logger.Warn().Err(err).Msg("Vault health check failed")
		}
		cancel()
	}

	// Engine
	engine := hft.NewEngine(cfg.HFT, logger)
	engine.OnSignal(func(signal hft.Signal) {
		eventBus.PublishSignal(
			signal.ID, signal.Symbol, string(signal.Direction),
			signal.ConfirmationScore, signal.Confidence, signal.PositionSize,
			string(signal.Urgency),
		)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if repo != nil {
			if err := repo.SaveSignal(ctx, signal); err != nil {
				logger.Error().Err(err).Str("signal_id", signal.ID).Msg("Failed to persist signal")
			}
			if err := repo.RecordDailySignal(ctx); err != nil {
				logger.Warn().Err(err).Msg("Failed to update daily stats")
			}
		}
		if signalCache != nil {
			if err := signalCache.StoreSignal(ctx, signal); err != nil {
				logger.Warn().Err(err).Str("signal_id", signal.ID).Msg("Failed to distribute signal via Redis")
			}
		}
		if notifyManager != nil {
			if err := notifyManager.SendSignal(signal); err != nil {
				logger.Warn().Err(err).Str("signal_id", signal.ID).Msg("Failed to send signal notification")
			}
		}
	})

	// Mirror breaker state to Redis for dashboard consumers
	if signalCache != nil {
		eventBus.Subscribe(events.EventCircuitBreakerUpdate, func(event events.Event) {
			active, _ := event.Data["active"].(bool)
			reason, _ := event.Data["reason"].(string)
			drawdown, _ := event.Data["drawdown"].(float64)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := signalCache.StoreBreakerState(ctx, active, reason, drawdown); err != nil {
				logger.Warn().Err(err).Msg("Failed to mirror breaker state to Redis")
			}
		})
	}

	// Market data feed
	var stream *feed.Stream
	if cfg.Feed.Enabled {
		stream = feed.NewStream(cfg.Feed, engine, eventBus, logger)
		if err := stream.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start market data feed")
		}
		logger.Info().Strs("symbols", cfg.Feed.Symbols).Msg("Market data feed started")
	}

	// API server
	server := api.NewServer(cfg.Server, engine, repo, eventBus, cfg.Auth, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("API server failed")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down")
	if stream != nil {
		stream.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API server shutdown failed")
	}
	logger.Info().Msg("Shutdown complete")
}
