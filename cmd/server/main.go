package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"jobscout/internal/api/handlers"
	"jobscout/internal/api/routes"
	"jobscout/internal/background"
	"jobscout/internal/config"
	"jobscout/internal/grpc/server"
	"jobscout/internal/logging"
	"jobscout/internal/mux"
	"jobscout/internal/sources"
	"jobscout/pkg/utils"
)

func main() {
	configPath := utils.GetStringOrDefault(os.Getenv("CONFIG_PATH"), "configs/config.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.InitializeLogging(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseLogging()
	logger := logging.GetGlobalLogger()
	logger.Info("Starting jobscout", map[string]interface{}{"config": configPath})

	runtime := sources.NewRuntime(cfg, logger)
	orch, err := runtime.NewOrchestrator()
	if err != nil {
		logger.Fatal("Failed to build discovery pipeline", map[string]interface{}{"error": err.Error()})
	}
	// runs fail individually with a configuration error; the service still starts
	if err := orch.Preflight(); err != nil {
		logger.Warn("Discovery preflight failed", map[string]interface{}{"error": err.Error()})
	}

	var redisClient *utils.RedisClient
	if cfg.Runs.Store == "redis" {
		redisClient = utils.NewRedisClient(cfg)
		pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Redis.Timeout)
		if err := redisClient.Ping(pingCtx); err != nil {
			logger.Warn("Redis is not reachable yet", map[string]interface{}{"error": err.Error()})
		}
		cancel()
	}

	store, err := background.NewRunStore(cfg, redisClient)
	if err != nil {
		logger.Fatal("Failed to create run store", map[string]interface{}{"error": err.Error()})
	}
	runManager := background.NewManager(cfg, store, background.OrchestratorExecutor(orch), logger)
	if err := runManager.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start run manager", map[string]interface{}{"error": err.Error()})
	}

	deps := &handlers.Dependencies{
		Config:     cfg,
		Discoverer: orch,
		Runs:       runManager,
	}
	if redisClient != nil {
		deps.RedisPing = redisClient.Ping
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	routes.SetupRoutes(e, deps, logger)

	grpcServer := server.NewServer(cfg, orch, runManager, logger)
	multiplexer := mux.NewMultiplexer(cfg, grpcServer, e, logger)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := multiplexer.Start(address); err != nil {
		logger.Fatal("Server failed to start", map[string]interface{}{"error": err.Error()})
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...", map[string]interface{}{})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := multiplexer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping servers", map[string]interface{}{"error": err.Error()})
	}
	if err := runManager.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping run manager", map[string]interface{}{"error": err.Error()})
	}
	if err := runtime.Close(); err != nil {
		logger.Error("Error closing source runtime", map[string]interface{}{"error": err.Error()})
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Error closing redis", map[string]interface{}{"error": err.Error()})
		}
	}

	logger.Info("Server shutdown complete", map[string]interface{}{})
}
