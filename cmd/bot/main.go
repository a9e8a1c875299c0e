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

	"github.com/jac08h/HahOrNahBot/internal/bot"
	"github.com/jac08h/HahOrNahBot/internal/config"
	"github.com/jac08h/HahOrNahBot/internal/database"
	"github.com/jac08h/HahOrNahBot/internal/queue"
	"github.com/jac08h/HahOrNahBot/internal/service"
	"github.com/jac08h/HahOrNahBot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrEmptyBotToken) {
			fmt.Fprintln(os.Stderr, "Error: BOT_TOKEN environment variable is required")
		} else if errors.Is(err, config.ErrEmptyDBPassword) {
			fmt.Fprintln(os.Stderr, "Error: DB_PASSWORD environment variable is required")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		}
		os.Exit(1)
	}

	logger.Init(cfg.App.LogLevel, nil)
	logger.Info("Starting hahornah-bot",
		logger.String("app", cfg.App.Name),
		logger.String("environment", cfg.App.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store service.Store
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory store, data will not survive a restart")
		store = database.NewMemoryStore()
	} else {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			var dbErr *database.ConnectionError
			if errors.As(err, &dbErr) {
				logger.Error("Failed to connect to database",
					logger.Err(dbErr),
					logger.String("host", cfg.Database.Host),
					logger.Int("port", cfg.Database.Port),
				)
			} else {
				logger.Error("Failed to connect to database", logger.Err(err))
			}
			os.Exit(1)
		}
		defer db.Close()
		logger.Info("Connected to database")

		store = database.NewPostgresStore(db)
	}

	var q *queue.NATS
	if cfg.NATS.Enabled {
		q, err = queue.New(cfg.NATS)
		if err != nil {
			logger.Error("Failed to connect to NATS", logger.Err(err))
			os.Exit(1)
		}
		defer q.Close()
		logger.Info("Connected to NATS", logger.String("url", cfg.NATS.URL))
	}

	svc := service.New(store)

	telegramBot, err := bot.New(cfg.Bot, svc, q)
	if err != nil {
		logger.Error("Failed to create bot", logger.Err(err))
		os.Exit(1)
	}

	tbot, err := telegramBot.Start(ctx)
	if err != nil {
		logger.Error("Failed to start bot", logger.Err(err))
		os.Exit(1)
	}
	logger.Info("Telegram bot started")

	healthMux := http.NewServeMux()
	healthMux.HandleFunc(cfg.Health.Endpoint, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: healthMux,
	}

	go func() {
		logger.Info("Health server starting",
			logger.Int("port", cfg.Health.Port),
		)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health server error", logger.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	tbot.Stop()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", logger.Err(err))
	}

	logger.Info("Bot stopped gracefully")
}
