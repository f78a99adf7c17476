package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/safar/order-engine/internal/api"
	"github.com/safar/order-engine/internal/auth"
	"github.com/safar/order-engine/internal/cache"
	"github.com/safar/order-engine/internal/config"
	"github.com/safar/order-engine/internal/database"
	"github.com/safar/order-engine/internal/logger"
	"github.com/safar/order-engine/internal/notify"
	"github.com/safar/order-engine/internal/service"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	zlog, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Build logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	zlog.Info("connected to database")

	applied, err := database.Migrate(ctx, db, database.Up)
	if err != nil {
		return err
	}
	zlog.Info("migrations applied", zap.Strings("versions", applied))

	var productCache cache.ProductCache = cache.Nop{}
	if cfg.Redis.Enabled() {
		client, err := cache.Connect(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()
		productCache = cache.NewRedis(client, cfg.Redis.ProductTTL, zlog)
		zlog.Info("product cache enabled")
	}

	sink, err := notify.NewSink(ctx, cfg.Notify, zlog)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(sink, zlog, cfg.Notify.DispatchTimeout)
	zlog.Info("notifications enabled", zap.String("sink", cfg.Notify.Sink))

	deps := service.Deps{
		DB:         db,
		Cache:      productCache,
		Notifier:   dispatcher,
		Logger:     zlog,
		MaxRetries: cfg.Database.TxMaxRetries,
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := api.NewRouter(api.Services{
		Catalog:  service.NewCatalogService(deps),
		Orders:   service.NewOrderService(deps),
		Carts:    service.NewCartService(deps),
		Accounts: service.NewAccountService(deps, tokens, cfg.Auth.AdminRegistrationKey),
	}, api.Options{
		Tokens:            tokens,
		TokenTTL:          tokens.TTL(),
		Policy:            auth.DefaultPolicy(),
		Logger:            zlog,
		CORSOrigins:       cfg.Server.CORSOrigins,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		zlog.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	zlog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// Pending notifications are flushed after the last request has finished.
	if err := dispatcher.Close(shutdownCtx); err != nil {
		zlog.Warn("notification dispatcher did not drain", zap.Error(err))
	}

	zlog.Info("server exited")
	return nil
}
