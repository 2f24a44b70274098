package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"minishop/internal/config"
	"minishop/internal/database"
	"minishop/internal/handler"
	"minishop/internal/mw"
	"minishop/internal/service"
	"minishop/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.New()

	db, err := database.NewDB(cfg.DatabaseURI)
	if err != nil {
		slog.Error("failed to connect to DB", "error", err)
		os.Exit(1)
	}
	defer database.CloseDB(db)

	if err := database.InitSchema(db); err != nil {
		slog.Error("failed to init DB schema", "error", err)
		os.Exit(1)
	}

	// Services
	settingsSvc := service.NewSettingsService(db)
	webhookURL := settingOrDefault(settingsSvc, service.SettingWebhookURL, cfg.SheetWebhookURL)
	botToken := settingOrDefault(settingsSvc, service.SettingBotToken, cfg.TelegramBotToken)
	chatID := settingOrDefault(settingsSvc, service.SettingChatID, cfg.TelegramChatID)

	sheets := service.NewSheetClient(webhookURL)
	notifier := service.NewTelegramNotifier(botToken, chatID)
	orderSvc := service.NewOrderService(db)
	productSvc := service.NewProductService(db, sheets)
	authSvc, err := service.NewAuthService(cfg.AdminPassword)
	if err != nil {
		slog.Error("failed to init auth", "error", err)
		os.Exit(1)
	}

	// initial catalog pull; the store serves the last synced copy on failure
	if count, err := productSvc.Sync(context.Background()); err != nil {
		slog.Warn("initial product sync failed", "error", err)
	} else {
		slog.Info("catalog synced", "products", count)
	}

	// Worker
	reconciler := worker.NewReconcileWorker(orderSvc, sheets, notifier, cfg.PollInterval)

	// Router
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/api/products", handler.ListProductsHandler(productSvc))
	r.Post("/api/checkout", handler.CheckoutHandler(orderSvc, sheets, notifier))
	r.Post("/api/track", handler.TrackHandler(sheets))
	r.Post("/api/admin/login", handler.LoginHandler(authSvc, cfg.JWTSecret))

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AdminMiddleware(cfg.JWTSecret))

		r.Get("/api/admin/stats", handler.StatsHandler(orderSvc, sheets))
		r.Get("/api/admin/orders", handler.ListOrdersHandler(orderSvc, sheets))
		r.Post("/api/admin/products/sync", handler.SyncProductsHandler(productSvc))
		r.Put("/api/admin/settings", handler.UpdateSettingsHandler(settingsSvc, sheets, notifier))
	})

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go reconciler.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	slog.Info("starting server", "addr", cfg.RunAddress)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-quit
	slog.Info("shutting down...")

	cancel() // stop worker
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	slog.Info("server stopped")
}

// settingOrDefault prefers a persisted setting over the env/flag value.
func settingOrDefault(settings *service.SettingsService, key, fallback string) string {
	value, err := settings.Get(context.Background(), key)
	if err != nil {
		slog.Warn("failed to read setting", "key", key, "error", err)
		return fallback
	}
	if value == "" {
		return fallback
	}
	return value
}
