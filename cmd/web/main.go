package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/billed-app/billed/internal/bootstrap"
	"github.com/billed-app/billed/internal/config"
	"github.com/billed-app/billed/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("web", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewWeb(cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	go app.SweepLoop(ctx, time.Minute)

	server := &http.Server{
		Addr:              ":" + cfg.WebPort,
		Handler:           app.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("web_listening", "port", cfg.WebPort, "store_mode", cfg.StoreMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("web server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("web_shutdown_failed", "error", err)
	}
}
