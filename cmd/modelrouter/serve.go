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

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/modelrouter/internal/adapter/llm"
	"github.com/xiaot623/gogo/modelrouter/internal/logging"
	"github.com/xiaot623/gogo/modelrouter/internal/policy"
	"github.com/xiaot623/gogo/modelrouter/internal/repository"
	"github.com/xiaot623/gogo/modelrouter/internal/service"
	"github.com/xiaot623/gogo/modelrouter/internal/tools"
	handler "github.com/xiaot623/gogo/modelrouter/internal/transport/http"
	"github.com/xiaot623/gogo/modelrouter/internal/transport/ws"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides http_port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.HTTPPort = servePort
	}

	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting model router",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("provider", cfg.Provider),
		zap.String("database", cfg.DatabaseURL))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize store
	store, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()

	// Initialize LLM backends
	backends, err := llm.NewBackendsFromConfig(ctx, cfg, logger.Named("llm"))
	if err != nil {
		return fmt.Errorf("failed to initialize LLM backends: %w", err)
	}

	// Initialize policy engine and tools
	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}
	toolRegistry := tools.NewRegistry(policyEngine, logger.Named("tools"))
	tools.RegisterBuiltins(toolRegistry)

	// Initialize service and transports
	svc := service.New(cfg, store, backends, toolRegistry, logger)
	hub := ws.NewHub(logger.Named("ws"))
	wsServer := ws.NewServer(hub, svc, logger.Named("ws"))
	e := handler.NewServer(svc, wsServer, cfg.MaxUploadBytes(), logger.Named("http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		svc.RunSessionSweeper(gctx)
		return nil
	})
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down model router")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := e.Shutdown(shutdownCtx)
		wsServer.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("model router stopped with error", zap.Error(err))
		return err
	}
	logger.Info("model router stopped")
	return nil
}
