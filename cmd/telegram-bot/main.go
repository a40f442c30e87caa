package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"meal-planner/internal/app"
	"meal-planner/internal/config"
	"meal-planner/internal/telegram"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateTelegram(); err != nil {
		log.Fatalf("Invalid telegram config: %v", err)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx := context.Background()

	// 2. Breaker alerts go to the bot once it exists
	var bot atomic.Pointer[telegram.Bot]
	onBreakerChange := func(from, to string) {
		if b := bot.Load(); b != nil {
			b.AlertBreakerChange(from, to)
		}
	}

	// 3. Initialize API client, cache and store
	application, err := app.New(ctx, cfg, logger, onBreakerChange)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	// 4. Initialize Telegram Bot
	b, err := telegram.NewBot(cfg, application.Store(), application.Client(), logger)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram Bot: %v", err)
	}
	bot.Store(b)

	// 5. Start Server with Graceful Shutdown
	mux := http.NewServeMux()
	b.RegisterHandlers(mux)

	srv := &http.Server{
		Addr:              ":" + cfg.TelegramPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("telegram bot server listening", "port", cfg.TelegramPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server exiting")
}
