package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventory-service/config"
	"inventory-service/internal/api"
	"inventory-service/internal/broker"
	"inventory-service/internal/clock"
	"inventory-service/internal/mcpserver"
	"inventory-service/internal/redisclient"
	"inventory-service/internal/service"
	"inventory-service/internal/store"
	"inventory-service/internal/util"
	"inventory-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting inventory service", zap.String("transport", cfg.Server.Transport))

	tp, err := util.InitTracer("inventory-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				log.Printf("Error shutting down tracer: %v", err)
			}
		}()
	}

	location, err := clock.LoadLocation(cfg.Inventory.Timezone)
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	logger.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	var locker service.Locker
	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		locker = redisclient.NewItemLocker(redisClient, time.Duration(cfg.Redis.LockTTLSeconds)*time.Second)
		logger.Info("Redis connected, using distributed item locks")
	}

	var publisher service.Publisher
	if cfg.KafkaEnabled() {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicStock)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicStock))
	}

	inventoryService := service.NewInventoryService(db, locker, publisher, clock.NewMonotonic(nil), location)

	if cfg.Inventory.SeedOnEmpty {
		if _, err := inventoryService.SeedStarterItems(ctx, store.StarterItems); err != nil {
			log.Fatalf("Failed to seed starter items: %v", err)
		}
	}

	tools := service.NewTools(inventoryService, location)
	mcpServer := mcpserver.NewServer(tools)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var adjustmentWorker *worker.AdjustmentWorker
	if cfg.KafkaEnabled() {
		retry := broker.DefaultRetryPolicy
		retry.MaxAttempts = cfg.Kafka.CommandMaxAttempts
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCommands, cfg.Kafka.ConsumerGroup, retry)
		adjustmentWorker = worker.NewAdjustmentWorker(consumer, inventoryService, logger)
		go func() {
			if err := adjustmentWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Adjustment worker stopped; the failing command stays uncommitted", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Transport == "stdio" {
		logger.Info("Serving MCP over stdio")
		if err := mcpserver.ServeStdio(mcpServer); err != nil {
			logger.Error("MCP stdio server stopped", zap.Error(err))
		}
		workerCancel()
		if adjustmentWorker != nil {
			adjustmentWorker.Stop()
		}
		return
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(inventoryService, location, db, mcpserver.NewHTTPHandler(mcpServer))
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port),
			zap.String("mcp", fmt.Sprintf("http://localhost:%s/mcp", cfg.Server.Port)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if adjustmentWorker != nil {
		adjustmentWorker.Stop()
	}

	logger.Info("Server exited")
}
