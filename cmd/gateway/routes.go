package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"resto-pos/config"
	"resto-pos/internal/database"
	"resto-pos/internal/gateway/handlers"
	"resto-pos/internal/gateway/health"
	"resto-pos/internal/gateway/middleware"
	"resto-pos/internal/logger"
	invhandler "resto-pos/internal/services/inventory/handler"
	"resto-pos/internal/services/kitchen"
	poshandler "resto-pos/internal/services/pos/handler"
	"resto-pos/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.LoadConfig()
	appLog := logger.NewLogger("pos-gateway")
	utils.SetSecret(cfg.Auth.JWTSecret)

	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to db: %v", err)
	}

	if err := database.MigratePOSDB(db); err != nil {
		log.Fatalf("Failed to migrate POS database: %v", err)
	}

	redisClient := config.NewRedisClient(cfg.Redis)
	defer redisClient.Close()

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get sql.DB: %v", err)
	}
	checker := health.NewChecker(sqlDB, redisClient, appLog)

	r, err := setupRouter(cfg, db, redisClient, checker, appLog)
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go checker.Run(ctx, cfg.Server.HealthInterval)

	grpcServer := checker.NewGRPCServer()
	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	go func() {
		appLog.Info(ctx, "service_started", "gRPC health service listening", slog.String("port", cfg.Server.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			appLog.Error(ctx, "server_failed", "gRPC server failed", err)
		}
	}()

	server := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: r,
	}
	go func() {
		appLog.Info(ctx, "service_started", "HTTP gateway listening", slog.String("port", cfg.Server.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error(ctx, "server_failed", "HTTP server failed", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLog.Info(context.Background(), "graceful_shutdown", "Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error(shutdownCtx, "graceful_shutdown", "HTTP shutdown failed", err)
	}
	grpcServer.GracefulStop()
	if err := sqlDB.Close(); err != nil {
		appLog.Error(shutdownCtx, "graceful_shutdown", "closing database failed", err)
	}
	appLog.Info(shutdownCtx, "service_stopped", "Gateway stopped gracefully")
}

func setupRouter(cfg config.Config, db *gorm.DB, redisClient *redis.Client, checker *health.Checker, appLog *logger.Logger) (*gin.Engine, error) {
	inventory := invhandler.NewInventoryHandler(db, redisClient, appLog)
	board := kitchen.NewBoard(db, redisClient, appLog, cfg.Kitchen.HistoryLimit, cfg.Kitchen.CacheTTL)
	pos := poshandler.NewPOSHandler(db, redisClient, inventory, board, appLog)

	rateLimit, err := middleware.RateLimit(cfg.Server.RateLimit)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(appLog))
	r.Use(rateLimit)

	r.GET("/health", checker.Handler())

	// --- Protected API Group ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth())
	handlers.RegisterRoutes(protected,
		handlers.NewPOSHTTPHandler(pos),
		handlers.NewKitchenHTTPHandler(board, pos),
		handlers.NewInventoryHTTPHandler(inventory),
	)

	return r, nil
}
