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

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	httpadapter "github.com/vectorscan/fault-diagnosis/internal/adapters/http"
	"github.com/vectorscan/fault-diagnosis/internal/bootstrap"
	"github.com/vectorscan/fault-diagnosis/internal/config"
	"github.com/vectorscan/fault-diagnosis/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logging.Setup(os.Stdout, "api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "api")
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	users, tokens, err := app.NewAuth()
	if err != nil {
		slog.Error("auth_init_failed", "error", err)
		os.Exit(1)
	}

	var handler http.Handler = httpadapter.NewRouter(cfg, app.DiagnoseUC, app.History, users, tokens).
		WithMetrics(app.Metrics).
		Handler()
	if cfg.H2CEnabled {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.GenerateTimeout + cfg.EmbedTimeout + cfg.SearchTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr, "h2c", cfg.H2CEnabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
