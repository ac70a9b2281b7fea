package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	httpapi "github.com/i474232898/weather-gateway/internal/api/http"
	"github.com/i474232898/weather-gateway/internal/config"
	"github.com/i474232898/weather-gateway/internal/geo"
	"github.com/i474232898/weather-gateway/internal/scheduler"
	"github.com/i474232898/weather-gateway/internal/store"
	"github.com/i474232898/weather-gateway/internal/weather"
	"github.com/i474232898/weather-gateway/internal/weather/providers"
	"github.com/i474232898/weather-gateway/internal/weather/synthetic"
)

const (
	serviceName = "weather-gateway"
	version     = "1.0.0"
)

type appStore interface {
	httpapi.Store
	Close() error
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func openStore(cfg *config.AppConfig, logger *zap.Logger) (appStore, error) {
	if cfg.StoreDriver == "sqlite" {
		return store.NewSQLiteStore(cfg.StorePath, logger)
	}
	return store.NewMemoryStore(), nil
}

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.ConnectTimeout + cfg.ReadTimeout + cfg.WriteTimeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
			TLSHandshakeTimeout:   cfg.ConnectTimeout,
			ResponseHeaderTimeout: cfg.ReadTimeout,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	provider, err := providers.New(providers.Settings{
		Provider:   cfg.Provider,
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		ProjectID:  cfg.ProjectID,
		KeyID:      cfg.KeyID,
		PrivateKey: cfg.PrivateKey,
		Limits: providers.Limits{
			RequestsPerSecond: cfg.RateLimit,
			Burst:             cfg.RateBurst,
			BreakerFailures:   uint32(cfg.BreakerFailures),
			BreakerTimeout:    cfg.BreakerTimeout,
		},
	}, httpClient, zlog)
	if err != nil {
		zlog.Fatal("failed to create provider", zap.Error(err))
	}

	gateway := weather.NewGateway(provider, synthetic.New(), weather.Options{
		ForceMock:    cfg.MockEnabled,
		ForceRealAPI: cfg.ForceRealAPI,
	}, zlog)
	zlog.Info("weather gateway configured",
		zap.String("provider", provider.Name()),
		zap.String("serving", gateway.ProviderName()),
		zap.String("store", cfg.StoreDriver))

	st, err := openStore(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()

	// Keep the signed token fresh so requests rarely sign one themselves.
	if cfg.HasSigningKey() && !cfg.MockEnabled {
		sched := scheduler.New(gateway, cfg.TokenRefreshInterval, zlog)
		if err := sched.Start(); err != nil {
			zlog.Fatal("failed to start scheduler", zap.Error(err))
		}
		defer sched.Stop()
	}

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.ConnectTimeout + cfg.ReadTimeout + cfg.WriteTimeout,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Gateway: gateway,
		Store:   st,
		Locator: geo.New(cfg.GeocoderAPIKey, zlog),
		Service: serviceName,
		Version: version,
	})

	// Start server with graceful shutdown
	go func() {
		zlog.Info("listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			zlog.Warn("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zlog.Error("error during shutdown", zap.Error(err))
	}
}
