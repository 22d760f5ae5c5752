package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"epub-reader/internal/config"
	"epub-reader/internal/handler"

	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve [-p port]",
		Short: "Run the HTTP and reader session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				os.Setenv("PORT", port)
			}
			return serve()
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listening port (overrides PORT)")
	return cmd
}

func serve() error {
	// Wiring
	container, err := config.NewContainer()
	if err != nil {
		return err
	}
	defer container.Close()

	cfg := container.Config
	appLogger := container.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := container.Preloader.Run(ctx); err != nil {
		appLogger.Error("Sample library preload failed", err)
	}

	// Handlers
	documentHandler := handler.NewDocumentHandler(container.DocumentService, appLogger)
	highlightHandler := handler.NewHighlightHandler(container.HighlightService, appLogger)
	positionHandler := handler.NewPositionHandler(container.PositionService, appLogger)
	sessionHandler := handler.NewSessionHandler(
		container.DocumentService,
		container.HighlightService,
		container.PositionService,
		appLogger,
		handler.SessionOptions{
			Debounce:       cfg.GetSelectionDebounce(),
			MenuOffsetY:    cfg.GetMenuOffsetY(),
			AllowedOrigins: cfg.GetAllowedOrigins(),
		},
	)

	// Router
	router := handler.NewRouter(
		documentHandler,
		highlightHandler,
		positionHandler,
		sessionHandler,
		cfg.GetAllowedOrigins(),
		handler.RecoveryMiddleware(appLogger),
		handler.LoggingMiddleware(appLogger),
	)

	server := &http.Server{
		Addr:              ":" + cfg.GetServerPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			appLogger.Error("Server failed to start", err)
			return err
		}
	case <-ctx.Done():
	}

	// Graceful shutdown
	appLogger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("Graceful shutdown timed out", "error", err)
		_ = server.Close()
	}
	if err := sessionHandler.Wait(shutdownCtx); err != nil {
		appLogger.Warn("Reader sessions still running at shutdown", "error", err)
	}

	appLogger.Info("Server exited")
	return nil
}
