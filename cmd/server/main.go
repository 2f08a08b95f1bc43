package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/app"
	"github.com/promptledger/PromptLedger/internal/config"
	"github.com/promptledger/PromptLedger/internal/handler"
	"github.com/promptledger/PromptLedger/internal/logger"
	"github.com/promptledger/PromptLedger/internal/middleware"
	"github.com/promptledger/PromptLedger/internal/tracing"
	"github.com/promptledger/PromptLedger/internal/worker"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
		Service:  cfg.AppName + "-api",
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

	// --- Tracing ---
	traceCfg := tracing.FromAppConfig(cfg, "api")
	shutdownTracing, err := tracing.Init(rootCtx, traceCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// --- Storage, queue, services ---
	core, err := app.Open(rootCtx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer core.Close()

	// --- In-process workers for the memory backend ---
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	if cfg.QueueBackend == config.QueueBackendMemory {
		workers.Add(1)
		go func() {
			defer workers.Done()
			log.Info("Starting in-process execution workers", zap.Int("concurrency", cfg.WorkerConcurrency))
			if err := worker.Run(workerCtx, core.Queue, worker.NewHandler(core.Dispatcher, log)); err != nil {
				log.Error("In-process workers stopped with error", zap.Error(err))
			}
		}()
	}

	// --- HTTP ---
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(traceCfg.ServiceName))
	router.Use(middleware.GinZapLogger(log))

	corsConfig := cors.DefaultConfig()
	origins := cfg.CORSOriginList()
	if len(origins) == 1 && origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{"GET", "HEAD", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.APIKeyHeader, middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Mounts /metrics and must precede the routes it instruments.
	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	authMW := middleware.Auth(middleware.AuthConfig{APIKey: cfg.APIKey, JWTSecret: cfg.JWTSecret}, log)
	h := handler.New(core.Versioning, core.Executions, core.Models, core.Ping, log)
	h.RegisterRoutes(router, authMW)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server listen error", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	<-rootCtx.Done()
	log.Info("Shutting down server...", zap.Duration("deadline", cfg.ShutdownDeadline))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDeadline)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	stopWorkers()
	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("In-flight executions did not finish before the shutdown deadline")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("Failed to flush traces", zap.Error(err))
	}
	log.Info("Server exiting")
}
