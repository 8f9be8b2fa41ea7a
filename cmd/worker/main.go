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

	"github.com/vectorscan/fault-diagnosis/internal/bootstrap"
	"github.com/vectorscan/fault-diagnosis/internal/config"
	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
	"github.com/vectorscan/fault-diagnosis/internal/observability/logging"
	"github.com/vectorscan/fault-diagnosis/internal/observability/metrics"
)

const recordTimeout = 2 * time.Minute

func main() {
	cfg := config.Load()
	logging.Setup(os.Stdout, "worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.IndexUC == nil {
		slog.Error("worker_requires_embedding_provider", "llm_provider", cfg.LLMProvider)
		os.Exit(1)
	}

	queue, err := app.OpenQueue()
	if err != nil {
		slog.Error("queue_init_failed", "error", err)
		os.Exit(1)
	}

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject, "collection", cfg.QdrantCollection)
	err = queue.SubscribeFaultRecords(ctx, func(handlerCtx context.Context, record domain.FaultRecord) error {
		recordCtx, cancel := context.WithTimeout(handlerCtx, recordTimeout)
		defer cancel()

		workerMetrics.StartRecord()
		started := time.Now()
		err := app.IndexUC.IndexRecord(recordCtx, record)
		workerMetrics.FinishRecord(time.Since(started), err)
		if err == nil {
			slog.Info("fault_record_indexed", "fault_id", record.ID, "equipment", record.Equipment)
		}
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
