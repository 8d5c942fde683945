package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"guest-visits-backend/config"
	"guest-visits-backend/internal/api"
	"guest-visits-backend/internal/auth"
	"guest-visits-backend/internal/db"
	"guest-visits-backend/internal/events"
	"guest-visits-backend/internal/notification"
	"guest-visits-backend/internal/projection"
	"guest-visits-backend/internal/realtime"
	"guest-visits-backend/internal/store"
	"guest-visits-backend/internal/visits"
	"guest-visits-backend/internal/workdays"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	if cfg.Auth.Secret == "" {
		return errors.New("auth.secret (or SECRET_KEY) must be set")
	}
	enabledTypes, err := events.ParseTypes(cfg.Notifications.EnabledTypes)
	if err != nil {
		return fmt.Errorf("invalid notifications.enabled_types: %w", err)
	}
	if cfg.Server.SlogLevel() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	gormDB, err := db.Init(&cfg.Database, cfg.Server.SlogLevel())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)
	slog.Info("data store initialized", "driver", cfg.Database.Driver)

	loc := cfg.Calendar.Location
	resolver := workdays.NewResolver(workdays.NewHTTPOracle(&cfg.Calendar), loc, nil)
	if cfg.Calendar.PrefetchEnabled {
		warmer := workdays.NewWarmer(resolver, cfg.Calendar.PrefetchInterval, cfg.Calendar.PrefetchHorizonDays)
		go warmer.Run(ctx)
	}

	webpushOptions := pushOptions(&cfg.Notifications.Push)
	pool := notification.NewWorkerPool(
		cfg.Notifications.WorkerPool.Size,
		cfg.Notifications.WorkerPool.QueueSize,
		enabledTypes,
		loc,
		nil,
		providers(&cfg.Notifications, appStore, webpushOptions)...,
	)
	pool.Start(ctx)

	hub := realtime.NewBroadcaster(nil)
	svc := visits.NewService(appStore, projection.NewBuilder(resolver, appStore), hub, pool, loc, cfg.Autocomplete.Limit, nil)
	tokens := auth.NewTokens(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	handler := api.NewHandler(svc, appStore, auth.NewResolver(tokens, appStore, nil), hub, webpushOptions, cfg.Realtime)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler, &cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
		// Websocket handlers watch the request context, so cancelling ctx
		// closes live subscribers with a going-away frame.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server ListenAndServe: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutdown signal received, stopping services")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}

	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	slog.Info("server gracefully stopped")
	return nil
}

// pushOptions returns nil when VAPID keys are not configured, which
// disables web push and the public key endpoint.
func pushOptions(cfg *config.PushConfig) *webpush.Options {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		slog.Warn("VAPID keys are not configured; web push is disabled")
		return nil
	}
	return &webpush.Options{
		VAPIDPublicKey:  cfg.PublicKey,
		VAPIDPrivateKey: cfg.PrivateKey,
		Subscriber:      cfg.Subject,
		TTL:             cfg.TTL,
	}
}

func providers(cfg *config.NotificationsConfig, st store.Store, push *webpush.Options) []notification.Provider {
	var out []notification.Provider
	if cfg.Telegram.Enabled {
		out = append(out, notification.NewTelegramProvider(cfg.Telegram.BaseURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}
	if cfg.GreenAPI.Enabled {
		out = append(out, notification.NewGreenAPIProvider(cfg.GreenAPI.URL, cfg.GreenAPI.ChatID))
	}
	if push != nil {
		out = append(out, notification.NewWebPushProvider(st, push, nil))
	}
	names := make([]string, len(out))
	for i, p := range out {
		names[i] = p.Name()
	}
	slog.Info("notification providers configured", "providers", names)
	return out
}
