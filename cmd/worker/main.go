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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/app"
	"github.com/promptledger/PromptLedger/internal/config"
	"github.com/promptledger/PromptLedger/internal/logger"
	"github.com/promptledger/PromptLedger/internal/messaging"
	"github.com/promptledger/PromptLedger/internal/tracing"
	"github.com/promptledger/PromptLedger/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.QueueBackend == config.QueueBackendMemory {
		fmt.Println("QUEUE_BACKEND=memory runs workers inside the API process; the standalone worker needs redis or rabbitmq")
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
		Service:  cfg.AppName + "-worker",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)
	zap.ReplaceGlobals(log)
	cfg.LogSummary(log)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(rootCtx, tracing.FromAppConfig(cfg, "worker"), log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	core, err := app.Open(rootCtx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer core.Close()

	if rq, ok := core.Queue.(*messaging.RedisQueue); ok {
		moved, err := rq.Recover(rootCtx)
		if err != nil {
			log.Error("Failed to requeue orphaned deliveries", zap.Error(err))
		} else if moved > 0 {
			log.Warn("Requeued deliveries left in processing by a previous worker", zap.Int("count", moved))
		}
	}

	metricsSrv := startMetricsServer(cfg.MetricsPort, core, log)

	// Deliveries already handed to the handler keep running after this is canceled.
	consumeCtx, stopConsuming := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		log.Info("Worker started",
			zap.String("backend", cfg.QueueBackend),
			zap.String("queue", cfg.ExecutionQueueName),
			zap.Int("concurrency", cfg.WorkerConcurrency))
		done <- worker.Run(consumeCtx, core.Queue, worker.NewHandler(core.Dispatcher, log))
	}()

	select {
	case <-rootCtx.Done():
		log.Info("Shutdown signal received, draining in-flight deliveries", zap.Duration("deadline", cfg.ShutdownDeadline))
	case err := <-done:
		if err != nil {
			log.Error("Consumer stopped with error", zap.Error(err))
		}
		done <- err
	}
	stopConsuming()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDeadline)
	defer cancel()

	select {
	case <-done:
		log.Info("Consumer stopped")
	case <-shutdownCtx.Done():
		log.Warn("In-flight deliveries did not finish before the shutdown deadline")
	}

	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("Metrics server forced to shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("Failed to flush traces", zap.Error(err))
	}
	log.Info("Worker exiting")
}

// startMetricsServer serves /metrics and /health on the metrics port.
func startMetricsServer(port string, core *app.Core, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := core.Ping(ctx); err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("Starting metrics server", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
