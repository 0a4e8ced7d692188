package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"didauday/internal/api"
	"didauday/internal/config"
	"didauday/internal/database"
	"didauday/internal/domain"
	"didauday/internal/events"
	"didauday/internal/export"
	"didauday/internal/google"
	"didauday/internal/logging"
	"didauday/internal/metrics"
	"didauday/internal/notify"
	"didauday/internal/payment"
	"didauday/internal/policy"
	"didauday/internal/repository"
	"didauday/internal/service"
	"didauday/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	if err := prepareDirectories(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := policy.Seed(ctx, db, cfg.Policy.SeedVersion, &logger); err != nil {
		return err
	}
	checker := policy.NewChecker(db)

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	locker := initLocker(redisClient, &logger)

	gateway := payment.NewClient(cfg.Payment)
	mirror := initLedgerMirror(ctx, cfg, &logger)
	notifier := initNotifier(cfg, &logger)
	eventBus := events.NewEventBus()
	subscribeEvents(eventBus, &logger)

	payoutWorker := worker.NewPayoutWorker(db, gateway, mirror, notifier, eventBus,
		redisClient, worker.DefaultRetryPolicy(), cfg.Payment.PayeeEmail, &logger)
	go payoutWorker.Start(ctx)

	bookingService := service.NewBookingService(db, locker, gateway, eventBus, cfg.Payment.Currency, &logger)
	settlementService := service.NewSettlementService(db, gateway, payoutWorker, notifier, mirror,
		eventBus, cfg.Settlement.CommissionRate, cfg.Payment.PayeeEmail, &logger)
	couponService := service.NewCouponService(db, &logger)
	exporter := export.NewLedgerExporter(cfg.Exports.Path)

	httpServer := api.NewHTTPServer(cfg.API, cfg.Settlement,
		bookingService, settlementService, couponService, exporter, checker, &logger)

	startMetrics(ctx, cfg, &logger)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	if cfg.Exports.Path != "" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	return nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	seed, err := loadInventorySeed(logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if seed != nil {
		if err := db.SeedInventory(ctx, seed); err != nil {
			logger.Error().Err(err).Msg("seed inventory")
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func loadInventorySeed(logger *zerolog.Logger) (*database.InventorySeed, error) {
	seedPath := os.Getenv("INVENTORY_PATH")
	if seedPath == "" {
		seedPath = "configs/inventory.yaml"
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("inventory_path", seedPath).Msg("no inventory seed file, starting with current catalog")
			return nil, nil
		}
		return nil, fmt.Errorf("read inventory seed: %w", err)
	}

	var seed database.InventorySeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse inventory seed: %w", err)
	}
	return &seed, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initLocker prefers redis-backed reservation locks and falls back to
// in-process locks when redis is down or not configured. Single
// instance deployments are safe either way.
func initLocker(redisClient *redis.Client, logger *zerolog.Logger) domain.ReservationLocker {
	memory := repository.NewMemoryLocker()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverLocker(repository.NewRedisLocker(redisClient), memory, logger)
}

func initLedgerMirror(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.LedgerMirror {
	if cfg.Google.CredentialsFile == "" || cfg.Google.LedgerSpreadsheetID == "" {
		return nil
	}

	sheets, err := google.NewSheetsLedger(ctx, cfg.Google.CredentialsFile, cfg.Google.LedgerSpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without ledger mirror")
		return nil
	}
	if err := sheets.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets connection test failed, continuing without ledger mirror")
		return nil
	}

	logger.Info().Msg("google sheets ledger mirror connected")
	return sheets
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	if cfg.Notify.TelegramToken == "" {
		return notify.Noop{}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Notify.TelegramToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return notify.Noop{}
	}

	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifier connected")
	return notify.NewTelegramNotifier(bot, cfg.Notify.OpsChatID, logger)
}

func subscribeEvents(bus *events.EventBus, logger *zerolog.Logger) {
	bus.Subscribe(events.EventPayoutFailed, func(event *events.Event) error {
		logger.Error().RawJSON("payload", event.Payload).Msg("payout failed event")
		return nil
	})
	bus.Subscribe(events.EventBookingCaptured, func(event *events.Event) error {
		logger.Info().RawJSON("payload", event.Payload).Msg("booking captured event")
		return nil
	})
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Int("port", port).Msg("metrics server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
