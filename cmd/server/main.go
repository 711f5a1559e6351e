// Command server starts the OpenWeather proxy HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/openweather-proxy/internal/adapter/httpserver"
	"github.com/fairyhunter13/openweather-proxy/internal/adapter/ledger/redisledger"
	"github.com/fairyhunter13/openweather-proxy/internal/adapter/observability"
	"github.com/fairyhunter13/openweather-proxy/internal/adapter/openweather"
	"github.com/fairyhunter13/openweather-proxy/internal/app"
	"github.com/fairyhunter13/openweather-proxy/internal/cache"
	"github.com/fairyhunter13/openweather-proxy/internal/config"
	"github.com/fairyhunter13/openweather-proxy/internal/domain"
	"github.com/fairyhunter13/openweather-proxy/internal/usecase"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// ledgerKeyPrefix namespaces all ledger keys in the shared Redis instance.
const ledgerKeyPrefix = "owm:"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	// Ledger backend
	rdb, err := newRedisClient(cfg)
	if err != nil {
		slog.Error("redis connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = rdb.Close() }()

	// Credential pool. Secrets are never logged; only the derived IDs are.
	creds := domain.CredentialsFromSecrets(cfg.Keys())
	ids := make([]string, len(creds))
	for i, c := range creds {
		ids[i] = c.ID
	}
	slog.Info("credential pool initialized",
		slog.Int("credentials", len(creds)),
		slog.Any("ids", ids),
		slog.Int64("daily_limit", cfg.DailyLimit))

	loc, err := cfg.DayKeyLocation()
	if err != nil {
		slog.Error("invalid day key timezone", slog.Any("error", err))
		os.Exit(1)
	}

	ledger := redisledger.New(rdb, ledgerKeyPrefix)
	resultCache := cache.New(cfg.CacheEnabled, cfg.CacheTTL(), cfg.CacheMaxKeys)
	defer resultCache.Stop()
	provider := openweather.New(cfg.OpenWeatherBaseURL, cfg.APITimeout())

	selector := usecase.NewSelector(creds, ledger, cfg.DailyLimit)
	weatherSvc := usecase.NewWeatherService(selector, ledger, resultCache, provider, usecase.NewStats(), usecase.WeatherServiceConfig{
		CacheEnabled: cfg.CacheEnabled,
		RetryCount:   cfg.RetryCount,
		RetryDelay:   cfg.RetryDelay(),
		DayKeyLoc:    loc,
	})

	srv := httpserver.NewServer(cfg, weatherSvc, resultCache, ledger, app.BuildLedgerCheck(rdb), version)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.KeepAliveTimeout(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.String("addr", srvHTTP.Addr), slog.String("version", version))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}

// newRedisClient connects to the ledger backend, retrying with exponential
// backoff so that container orchestration races at startup do not kill the
// process.
func newRedisClient(cfg config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("op=main.newRedisClient: %w", err)
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB != 0 {
		opts.DB = cfg.RedisDB
	}
	rdb := redis.NewClient(opts)

	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = 30 * time.Second
	probe := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return rdb.Ping(ctx).Err()
	}
	if err := backoff.Retry(probe, expo); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("op=main.newRedisClient: ping: %w", err)
	}
	return rdb, nil
}
