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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/digital-twin/backend/internal/config"
	"github.com/zhouzirui/digital-twin/backend/internal/handler"
	"github.com/zhouzirui/digital-twin/backend/internal/logging"
	"github.com/zhouzirui/digital-twin/backend/internal/service/ai"
	"github.com/zhouzirui/digital-twin/backend/internal/service/chat"
	"github.com/zhouzirui/digital-twin/backend/internal/service/prompt"
	"github.com/zhouzirui/digital-twin/backend/internal/store/factory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	if err := run(ctx); err != nil {
		stop()
		log.Fatalf("digital twin backend: %v", err)
	}
}

// run owns every resource it opens; deferred cleanups execute before main exits.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// 人设资源缺失时直接退出
	assembler, err := prompt.FromConfig(cfg.Persona)
	if err != nil {
		logger.Error("failed to load persona", zap.String("mode", cfg.Persona.Mode), zap.Error(err))
		return fmt.Errorf("failed to load persona: %w", err)
	}
	logger.Info("persona loaded", zap.String("mode", cfg.Persona.Mode))

	st, err := factory.Open(ctx, cfg.Store)
	if err != nil {
		logger.Error("failed to open conversation store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close conversation store", zap.Error(err))
		}
	}()
	logger.Info("conversation store ready", zap.String("backend", cfg.Store.Backend))

	aiService, err := ai.NewService(ctx, cfg.AI, logger)
	if err != nil {
		logger.Error("failed to initialize AI service", zap.String("provider", cfg.AI.Provider), zap.Error(err))
		return fmt.Errorf("failed to initialize AI service: %w", err)
	}
	logger.Info("AI service initialized", zap.String("provider", cfg.AI.Provider))

	opts := []chat.Option{chat.WithLogger(logger)}
	if cfg.Chat.SerializeSessions {
		opts = append(opts, chat.WithSessionLocks())
	}
	chatService := chat.NewService(st, assembler, aiService, opts...)

	router := handler.NewRouter(chatService, cfg.Server.CORSOrigins)

	return startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("digital twin backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Error("server error", zap.Error(err))
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
