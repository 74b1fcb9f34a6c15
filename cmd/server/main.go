package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dsa_tracker/internal/api"
	"dsa_tracker/internal/app/livesync"
	"dsa_tracker/internal/app/service"
	"dsa_tracker/internal/common/security"
	"dsa_tracker/internal/domain/repository"
	"dsa_tracker/internal/platform/ai"
	"dsa_tracker/internal/platform/config"
	"dsa_tracker/internal/platform/database"
	"dsa_tracker/internal/platform/executor"
	"dsa_tracker/internal/platform/logger"
	"dsa_tracker/internal/platform/metrics"
	"dsa_tracker/internal/platform/redisclient"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// 1. Load Configuration
	config.Load()

	appLog, err := logger.New(config.AppConfig.LogMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLog.Sync()
	appLog.Info("Configuration loaded", "store_driver", config.AppConfig.StoreDriver)

	// 2. Initialize JWT
	security.InitJWT(config.AppConfig.JWTKey, config.AppConfig.JWTExp)

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	// 4. Storage backends
	ctx := context.Background()
	var (
		store    repository.DocumentStore
		userRepo repository.UserRepository
		runLock  service.RunLocker
		denylist security.Denylist
	)
	switch config.AppConfig.StoreDriver {
	case config.StoreDriverMemory:
		appLog.Warn("Using in-memory storage; data is lost on restart")
		store = repository.NewMemoryDocumentStore()
		userRepo = repository.NewMemoryUserRepository()
		runLock = service.NewLocalRunLock()
		denylist = security.NewMemoryDenylist()

	case config.StoreDriverPostgres:
		db, err := database.Connect(ctx)
		if err != nil {
			appLog.Fatal("Database connection failed", "error", err)
		}
		defer database.Close()
		if err := database.Migrate(ctx, db, repository.EnsureUserSchema, repository.EnsureDocumentSchema); err != nil {
			appLog.Fatal("Database migration failed", "error", err)
		}
		appLog.Info("Database connected")

		rdb, err := redisclient.Connect(ctx)
		if err != nil {
			appLog.Fatal("Redis connection failed", "error", err)
		}
		defer redisclient.Close()
		appLog.Info("Redis connected")

		feed := redisclient.NewChangeFeed(rdb, config.AppConfig.ChangeFeedPrefix, appLog)
		store = repository.NewPgDocumentStore(db, feed)
		userRepo = repository.NewPgUserRepository(db)
		runLock = redisclient.NewRunLock(rdb, "run-lock", time.Duration(config.AppConfig.ExecutionLockTTLSeconds)*time.Second)
		denylist = redisclient.NewDenylist(rdb, "revoked-token")

	default:
		appLog.Fatal("Unknown store driver", "store_driver", config.AppConfig.StoreDriver)
	}

	// 5. External clients
	runner := executor.NewPistonClient(config.AppConfig.ExecutorURL, config.AppConfig.ExecutorTimeout)
	var generator ai.TextGenerator
	if client, err := ai.NewOpenAIClient(config.AppConfig.AIAPIKey, config.AppConfig.AIBaseURL, config.AppConfig.AIModel); err != nil {
		appLog.Warn("AI assistant disabled", "reason", err)
	} else {
		generator = client
	}

	// 6. Initialize Services
	controller := livesync.NewController(store, appLog,
		livesync.WithMetrics(appMetrics),
		livesync.WithErrorHandler(func(tenantID string, err error) {
			appLog.Warn("Tree subscription error", "tenant", tenantID, "error", err)
		}),
	)
	authService := service.NewAuthService(userRepo, denylist, appLog)
	trackerService := service.NewTrackerService(store, appLog, appMetrics)
	executionService := service.NewExecutionService(runner, runLock, appLog)
	assistantService := service.NewAssistantService(generator, appLog)

	// 7. Initialize Router & HTTP Server
	router := api.NewRouter(api.Services{
		Auth:       authService,
		Tracker:    trackerService,
		Execution:  executionService,
		Assistant:  assistantService,
		Controller: controller,
		Gatherer:   registry,
		Log:        appLog,
	})

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	// Tree streams never finish on their own; end them when shutdown begins.
	streamCtx, cancelStreams := context.WithCancel(context.Background())
	server.BaseContext = func(net.Listener) context.Context { return streamCtx }
	server.RegisterOnShutdown(cancelStreams)

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		appLog.Info("Server starting", "port", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("Could not listen", "port", config.AppConfig.APIPort, "error", err)
		}
	}()

	<-stop // Wait for interrupt signal

	appLog.Info("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server shutdown failed", "error", err)
		return
	}
	appLog.Info("Server stopped gracefully")
}
