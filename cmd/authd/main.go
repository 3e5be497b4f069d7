// Command authd serves the authcore engine over JSON/HTTP.
//
// Configuration comes from authd.yaml and AUTHD_* environment variables.
// Without AUTHD_DATABASE_URL accounts live in memory; without
// AUTHD_REDIS_ADDR an embedded Redis is started. Both are for local use only.
//
//	AUTHD_JWT_ACCESS_SECRET=... AUTHD_JWT_REFRESH_SECRET=... go run ./cmd/authd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/server"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/oauth"
	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/MrEthical07/authcore/store/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to authd.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "authd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := server.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------- infrastructure ----------
	st, closeStore, err := openStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb, closeRedis, err := openRedis(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	// ---------- engine ----------
	b := authcore.New().
		WithConfig(cfg.EngineConfig()).
		WithRedis(rdb).
		WithStore(st).
		WithLogger(logger).
		WithAuditSink(authcore.NewZapSink(logger))
	for _, pc := range cfg.OIDCConfigs() {
		p, err := oauth.NewOIDCProvider(ctx, pc)
		if err != nil {
			return fmt.Errorf("oidc provider %s: %w", pc.Name, err)
		}
		b.WithOAuthProvider(pc.Name, p)
	}
	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	for _, w := range engine.SecurityReport().Warnings {
		logger.Warn("security", zap.String("warning", w))
	}

	// ---------- http ----------
	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(engine, logger, proxies).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}

func openStore(ctx context.Context, dsn string, logger *zap.Logger) (store.Store, func(), error) {
	if dsn == "" {
		logger.Warn("no database_url configured, using the in-memory store")
		return memory.New(), func() {}, nil
	}
	pg, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, fmt.Errorf("schema: %w", err)
	}
	return pg, func() { _ = pg.Close() }, nil
}

func openRedis(cfg *server.Config, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	addr := cfg.RedisAddr
	var embedded *miniredis.Miniredis
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("embedded redis: %w", err)
		}
		logger.Warn("no redis_addr configured, using an embedded redis", zap.String("addr", mr.Addr()))
		embedded = mr
		addr = mr.Addr()
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.RedisPassword})
	return client, func() {
		_ = client.Close()
		if embedded != nil {
			embedded.Close()
		}
	}, nil
}
