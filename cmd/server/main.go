package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	adapterports "github.com/stenbridge/settlement-service/internal/adapters/ports"
	"github.com/stenbridge/settlement-service/internal/adapters/postgres"
	redisadapter "github.com/stenbridge/settlement-service/internal/adapters/redis"
	"github.com/stenbridge/settlement-service/internal/adapters/reepay"
	"github.com/stenbridge/settlement-service/internal/config"
	"github.com/stenbridge/settlement-service/internal/domain/ports"
	"github.com/stenbridge/settlement-service/internal/events"
	ordersHandler "github.com/stenbridge/settlement-service/internal/handlers/orders"
	tokensHandler "github.com/stenbridge/settlement-service/internal/handlers/tokens"
	webhookHandler "github.com/stenbridge/settlement-service/internal/handlers/webhook"
	"github.com/stenbridge/settlement-service/internal/services/reconciler"
	"github.com/stenbridge/settlement-service/internal/services/settlement"
	"github.com/stenbridge/settlement-service/internal/services/token"
	"github.com/stenbridge/settlement-service/pkg/middleware"
	"github.com/stenbridge/settlement-service/pkg/observability"
	"github.com/stenbridge/settlement-service/pkg/resilience"
	"github.com/stenbridge/settlement-service/pkg/shutdown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		// Logger is not up yet; fall back to a bare production logger
		logger, _ := zap.NewProduction()
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger := initLogger(cfg.Logger)
	defer logger.Sync()

	logger.Info("Starting settlement service",
		zap.Int("port", cfg.Server.Port),
		zap.Int("metrics_port", cfg.Server.MetricsPort),
	)

	ctx := context.Background()
	sm := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)

	// Secrets: gateway private key + webhook HMAC secret
	secretManager := initSecretManager(ctx, cfg, logger)
	apiKey := mustSecret(ctx, secretManager, cfg.Secrets.APIKeySecret, logger)
	webhookSecret := mustSecret(ctx, secretManager, cfg.Secrets.WebhookSecret, logger)

	// Database
	pool, err := postgres.NewPool(ctx, &postgres.Config{
		DatabaseURL:     cfg.Database.ConnectionString(),
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	sm.RegisterNoErr("postgres-pool", pool.Close)

	executor := postgres.NewDBExecutor(pool)
	orderRepo := postgres.NewOrderRepository(executor)
	tokenRepo := postgres.NewTokenRepository(executor)

	// Redis: event dedup + order cache
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	sm.RegisterCloser("redis-client", rdb)

	eventStore := redisadapter.NewEventStore(rdb, cfg.Redis.EventTTL)
	orderCache := redisadapter.NewOrderCache(rdb, cfg.Redis.CacheTTL)

	// Payment gateway
	gateway := reepay.NewClient(reepay.Config{
		BaseURL:    cfg.Gateway.BaseURL,
		APIKey:     apiKey,
		Timeout:    cfg.Gateway.Timeout,
		MaxRetries: cfg.Gateway.MaxRetries,
	}, logger)

	// Event bus: downstream consumers subscribe here; the default
	// subscriber just logs the transitions.
	bus := events.NewBus(logger)
	subscribeTransitionLogging(bus, logger)

	timeouts := resilience.DefaultTimeoutConfig()

	reconcilerSvc := reconciler.NewService(orderRepo, eventStore, orderCache, bus, logger)
	tokenSvc := token.NewService(tokenRepo, orderRepo, gateway, logger)
	settlementSvc := settlement.NewService(orderRepo, gateway, bus, logger)

	// Authorizations recorded by the reconciler trigger an instant-settle
	// pass for the configured item kinds.
	autoSettler := settlement.NewAutoSettler(settlementSvc, settlement.Policy{
		SettlePhysical:  cfg.Settlement.SettlePhysical,
		SettleVirtual:   cfg.Settlement.SettleVirtual,
		SettleRecurring: cfg.Settlement.SettleRecurring,
		SettleFee:       cfg.Settlement.SettleFee,
	}, timeouts, logger)
	autoSettler.Subscribe(bus)

	// HTTP surface: webhook intake + order state reads + token management
	tracker := shutdown.NewInFlightTracker("webhook-requests", logger)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	mux := http.NewServeMux()
	mux.Handle("/webhooks/reepay", trackInFlight(tracker,
		webhookHandler.NewHandler(reconcilerSvc, webhookSecret, logger)))
	mux.Handle("/orders/", ordersHandler.NewHandler(orderRepo, orderCache, logger))
	tokensH := tokensHandler.NewHandler(tokenSvc, tokenRepo, logger)
	mux.Handle("/tokens", tokensH)
	mux.Handle("/tokens/", tokensH)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      rateLimiter.Middleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: timeouts.HTTPHandler,
		IdleTimeout:  120 * time.Second,
	}

	// Observability server: /metrics, /health, /ready
	healthChecker := observability.NewHealthChecker(pool, rdb)
	metricsServer := observability.StartMetricsServer(
		fmt.Sprintf("%d", cfg.Server.MetricsPort), healthChecker, logger)
	sm.RegisterHTTPServer("metrics-server", metricsServer)

	sm.RegisterHTTPServer("webhook-server", httpServer)
	sm.Register("in-flight-webhooks", tracker.Shutdown)
	sm.Register("auto-settle", autoSettler.Shutdown)
	sm.RegisterNoErr("rate-limiter", rateLimiter.Shutdown)

	// Keep the gateway pointed at this deployment's webhook endpoint
	if cfg.Gateway.WebhookURL != "" {
		syncWorker := shutdown.NewPeriodicWorker("webhook-settings-sync", time.Hour, logger)
		syncWorker.Start(func(ctx context.Context) {
			syncWebhookSettings(ctx, gateway, cfg.Gateway.WebhookURL, timeouts, logger)
		})
		sm.Register("webhook-settings-sync", syncWorker.Shutdown)
	}

	go func() {
		logger.Info("Webhook server listening",
			zap.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	sm.WaitForShutdown()
	logger.Info("Settlement service stopped")
}

// initLogger builds the zap logger from config
func initLogger(cfg config.LoggerConfig) *zap.Logger {
	if cfg.Development {
		logger, _ := zap.NewDevelopment()
		return logger
	}

	level := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(cfg.Level); err == nil {
		level = parsed
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	logger, _ := zapCfg.Build()
	return logger
}

// mustSecret resolves a secret value or aborts startup
func mustSecret(ctx context.Context, sm adapterports.SecretManagerAdapter, name string, logger *zap.Logger) string {
	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	secret, err := sm.GetSecret(fetchCtx, name)
	if err != nil {
		logger.Fatal("Failed to resolve secret",
			zap.String("secret", name),
			zap.Error(err),
		)
	}
	return secret.Value
}

// trackInFlight counts a request against the tracker so shutdown can drain
// deliveries already being applied; new requests during shutdown get a 503
// and the gateway redelivers them.
func trackInFlight(tracker *shutdown.InFlightTracker, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tracker.Add() {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		defer tracker.Done()
		next.ServeHTTP(w, r)
	})
}

// subscribeTransitionLogging registers the default bus subscriber
func subscribeTransitionLogging(bus *events.Bus, logger *zap.Logger) {
	log := func(_ context.Context, event events.Event) {
		logger.Info("order transition", zap.String("event", event.Name()))
	}
	bus.Subscribe(events.OrderAuthorized{}.Name(), log)
	bus.Subscribe(events.OrderSettled{}.Name(), log)
	bus.Subscribe(events.OrderCancelled{}.Name(), log)
	bus.Subscribe(events.OrderRefunded{}.Name(), log)
}

// syncWebhookSettings makes sure the gateway delivers webhooks to this
// service. Runs on startup and then periodically, since the settings can be
// edited in the gateway dashboard.
func syncWebhookSettings(ctx context.Context, gateway ports.PaymentGateway, url string, timeouts *resilience.TimeoutConfig, logger *zap.Logger) {
	callCtx, cancel := timeouts.NonCriticalContext(ctx)
	defer cancel()

	settings, err := gateway.GetWebhookSettings(callCtx)
	if err != nil {
		logger.Warn("Failed to read gateway webhook settings", zap.Error(err))
		return
	}

	for _, existing := range settings.URLs {
		if existing == url && !settings.Disabled {
			return
		}
	}

	settings.URLs = append(settings.URLs, url)
	settings.Disabled = false
	if err := gateway.SetWebhookSettings(callCtx, settings); err != nil {
		logger.Warn("Failed to update gateway webhook settings", zap.Error(err))
		return
	}
	logger.Info("Gateway webhook settings updated", zap.String("url", url))
}
