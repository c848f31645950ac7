package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"seating-backend/config"
	"seating-backend/internal/api"
	"seating-backend/internal/arbiter"
	"seating-backend/internal/broker"
	"seating-backend/internal/db"
	"seating-backend/internal/issuance"
	"seating-backend/internal/logging"
	"seating-backend/internal/notification"
	"seating-backend/internal/notifier"
	"seating-backend/internal/relay"
	"seating-backend/internal/store"
	"seating-backend/internal/watcher"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logger := logging.New(cfg.Log)
	logger.WithField("path", configPath).Info("configuration loaded")
	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logging.Component(logger, "db"))
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB, cfg.Store.Timeout)
	reservations := store.NewCachedReservations(appStore, cfg.Store.ReservationCacheTTL)

	hub := notifier.NewHub(appStore, cfg.Notifier, logging.Component(logger, "notifier"))
	hub.Start(ctx)

	engine := arbiter.New(appStore, reservations, cfg.Arbiter, logging.Component(logger, "arbiter"))
	engine.Observe(hub)

	webpushOptions := setupPush(ctx, cfg, appStore, engine, logger)

	if cfg.Broker.URL != "" {
		publisher, err := broker.Dial(cfg.Broker, logging.Component(logger, "broker"))
		if err != nil {
			logger.WithError(err).Warn("seat change broker unavailable; audit messages disabled")
		} else {
			defer publisher.Close()
			publisher.Start(ctx)
			engine.Observe(publisher)
			logger.WithField("queue", cfg.Broker.Queue).Info("publishing seat changes to broker")
		}
	}

	if client := relay.Connect(cfg.Redis, logging.Component(logger, "relay")); client != nil {
		defer client.Close()
		rl := relay.New(client, cfg.Redis.Channel, hub, logging.Component(logger, "relay"))
		rl.Start(ctx)
		engine.Observe(rl)
		go func() {
			if err := rl.Run(ctx); err != nil {
				logger.WithError(err).Error("change relay stopped")
			}
		}()
	}

	watcherSvc := watcher.NewService(cfg.Watcher, appStore, hub, logging.Component(logger, "watcher"))
	go watcherSvc.Run(ctx)

	// Initialize router
	router := api.NewRouter(api.Deps{
		Store:          appStore,
		Reservations:   reservations,
		Engine:         engine,
		Hub:            hub,
		Issuance:       issuance.NewService(appStore, appStore, cfg.Issuance, logging.Component(logger, "issuance")),
		Webpush:        webpushOptions,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            logging.Component(logger, "http"),
	}, cfg.Server, cfg.Admin.Key)
	if cfg.Admin.Key == "" {
		logger.Warn("admin key is not set; admin endpoints are disabled")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server ListenAndServe")
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server Shutdown")
	}
	cancel()

	logger.Info("server gracefully stopped")
}

// setupPush starts the push workers when push is enabled and configured. It
// returns nil when push is off.
func setupPush(ctx context.Context, cfg *config.Config, s store.Store, engine *arbiter.Engine, logger *logrus.Logger) *webpush.Options {
	if !cfg.Push.Enabled {
		return nil
	}
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Warn("push is enabled but VAPID keys are missing; push disabled")
		return nil
	}

	opts := &webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}
	workers := notification.NewWorkerPool(cfg.Push.Workers, cfg.Notifier.QueueSize, s, opts, logging.Component(logger, "push"))
	workers.Start(ctx)
	engine.Observe(workers)
	return opts
}
