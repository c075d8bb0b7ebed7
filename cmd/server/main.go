package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"community/backend/internal/config"
	authdomain "community/backend/internal/domain/auth"
	postdomain "community/backend/internal/domain/post"
	"community/backend/internal/httpserver"
	"community/backend/internal/infrastructure/memory"
	"community/backend/internal/infrastructure/password"
	"community/backend/internal/infrastructure/postgres"
	"community/backend/internal/infrastructure/token"
	"community/backend/internal/logging"
	authusecase "community/backend/internal/usecase/auth"
	postusecase "community/backend/internal/usecase/post"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	if cfg.InsecureJWTSecret {
		logger.Warn("JWT_SECRET not set; signing tokens with the development fallback secret")
	}

	rootCtx := context.Background()
	users, posts, closeStore, err := openStore(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	tokenManager := token.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiry, cfg.JWTIssuer)
	hasher := password.NewBcryptHasher(cfg.BcryptCost)

	authService := authusecase.NewService(users, hasher, tokenManager)
	postService := postusecase.NewService(posts)

	server := httpserver.NewServer(cfg, logger, authService, postService)
	logger.Info("HTTP server listening", "addr", server.Addr(), "storage", cfg.StorageDriver)

	go func() {
		if err := server.Start(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				logger.Info("HTTP server closed")
				return
			}
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	} else {
		logger.Info("graceful shutdown completed")
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (authdomain.UserRepository, postdomain.Repository, func(), error) {
	if cfg.StorageDriver == config.StorageMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return store.Users(), store.Posts(), func() {}, nil
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return postgres.NewUserRepository(db.Pool), postgres.NewPostRepository(db.Pool), db.Close, nil
}
