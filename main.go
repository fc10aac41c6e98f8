package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elecsonJ/everyday-english-writing/internal/ai"
	"github.com/elecsonJ/everyday-english-writing/internal/bot"
	"github.com/elecsonJ/everyday-english-writing/internal/config"
	"github.com/elecsonJ/everyday-english-writing/internal/database"
	"github.com/elecsonJ/everyday-english-writing/internal/metrics"
	"github.com/elecsonJ/everyday-english-writing/internal/practice"
	"github.com/elecsonJ/everyday-english-writing/internal/progress"
	"github.com/elecsonJ/everyday-english-writing/pkg/logger"
	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	loc, _ := cfg.Location() // checked by config.Validate

	if err := database.Connect(cfg.Database.Type, cfg.Database.Path, cfg.Database.URL); err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	chatGPT, err := ai.New(cfg.AI, zlog.Named("ai"))
	if err != nil {
		zlog.Fatal("failed to create language model client", zap.Error(err))
	}

	sentenceRepo := database.NewSentenceRepository(database.DB)
	sentences := ai.Fallback{
		Generators: []practice.SentenceGenerator{chatGPT, ai.BankSentences{Bank: sentenceRepo}},
		Log:        zlog.Named("sentences"),
	}

	admins, invalid := cfg.AdminIDs()
	for _, id := range invalid {
		zlog.Warn("invalid admin user id", zap.String("id", id))
	}

	b, err := bot.New(bot.Options{
		Token: cfg.Telegram.Token,
		Config: &bot.BotConfig{
			FeedbackTimeout:  cfg.AI.Timeout,
			ReminderHour:     cfg.Reminder.Hour,
			SchedulerEnabled: cfg.Reminder.Enabled,
			StateTTL:         bot.DefaultConfig().StateTTL,
		},
		Stores:       storeFactory(cfg, zlog.Named("progress")),
		Feedback:     chatGPT,
		Sentences:    sentences,
		Reminders:    database.NewReminderRepository(database.DB),
		SentenceBank: sentenceRepo,
		Stats:        database.NewStatisticsRepository(database.DB),
		Location:     loc,
		AdminUserIDs: admins,
		Log:          zlog.Named("bot"),
	})
	if err != nil {
		zlog.Fatal("failed to create bot", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			zlog.Info("metrics server listening", zap.String("addr", cfg.Metrics.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zlog.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	zlog.Info("bot starting",
		zap.String("storage", cfg.Storage.Type),
		zap.String("database", cfg.Database.Type),
		zap.String("timezone", loc.String()),
	)
	if err := b.Start(ctx); err != nil {
		zlog.Error("bot error", zap.Error(err))
	}

	b.Stop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			zlog.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	zlog.Info("bot stopped successfully")
}

// storeFactory returns the per-chat progress store for the configured backend
func storeFactory(cfg *config.Config, log *zap.Logger) bot.StoreFactory {
	key := func(chatID int64) string {
		return fmt.Sprintf("%s:%d", models.ProgressKey, chatID)
	}

	switch cfg.Storage.Type {
	case "file":
		return func(chatID int64) progress.Store {
			return progress.NewFileStore(cfg.Storage.ProgressDir, key(chatID), log)
		}
	case "memory":
		return func(int64) progress.Store {
			return progress.NewMemoryStore()
		}
	default:
		repo := database.NewProgressRepository(database.DB)
		return func(chatID int64) progress.Store {
			return progress.NewDBStore(repo, key(chatID), log)
		}
	}
}
