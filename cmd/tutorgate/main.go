package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tutorgate/tutorgate/internal/config"
	"github.com/tutorgate/tutorgate/internal/provider"
	"github.com/tutorgate/tutorgate/internal/server"
	"github.com/tutorgate/tutorgate/internal/storage"
)

func main() {
	// Load env if it exists
	godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Server.Environment != "production" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var redis *storage.RedisClient
	if cfg.RateLimit.Store == "redis" {
		redis, err = storage.NewRedis(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redis.Close()
		slog.Info("connected to redis", "addr", cfg.Redis.Addr())
	}

	var postgres *storage.Postgres
	if cfg.Database.DSN != "" {
		postgres, err = storage.NewPostgres(cfg.Database.DSN)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer postgres.Close()

		if err := postgres.AutoMigrate(); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to database, usage logging enabled")
	}

	prov := provider.NewClient(provider.Config{
		Endpoints:   cfg.Provider.Endpoints,
		APIKey:      cfg.Provider.APIKey,
		Model:       cfg.Provider.Model,
		MaxTokens:   cfg.Provider.MaxTokens,
		Temperature: cfg.Provider.Temperature,
		TimeoutSecs: cfg.Provider.TimeoutSecs,
	})

	srv := server.New(cfg, prov, postgres, redis)

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("exited")
}
