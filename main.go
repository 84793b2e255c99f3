package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/H1xl/pet-palace-browse-full/cache"
	"github.com/H1xl/pet-palace-browse-full/config"
	"github.com/H1xl/pet-palace-browse-full/database"
	"github.com/H1xl/pet-palace-browse-full/handlers"
	"github.com/H1xl/pet-palace-browse-full/kafka"
	"github.com/H1xl/pet-palace-browse-full/middleware"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load(logger)

	// Initialize database
	db, err := database.InitDB(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Product cache and order events degrade gracefully when their
	// backends are unreachable; the storefront itself keeps serving.
	redisClient, err := cache.InitRedis(logger)
	if err != nil {
		logger.Warn("Redis unavailable, product cache disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Warn("Kafka unavailable, order events disabled", zap.Error(err))
		producer = nil
	} else {
		defer producer.Close()
	}

	// Initialize OpenTelemetry
	shutdownTracing, err := middleware.InitTracing(cfg.ServiceName)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// Metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	authHandler := handlers.NewAuthHandler(db, logger)
	userHandler := handlers.NewUserHandler(db, logger)
	productHandler := handlers.NewProductHandler(db, redisClient, logger)
	cartHandler := handlers.NewCartHandler(db, logger)
	orderHandler := handlers.NewOrderHandler(db, producer, logger)

	api := router.Group("/api")

	// Public endpoints
	api.POST("/users/register", authHandler.Register)
	api.POST("/users/login", authHandler.Login)
	api.GET("/products", productHandler.GetProducts)
	api.GET("/products/:id", productHandler.GetProduct)

	// Authenticated endpoints
	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware())
	{
		authed.GET("/users/:id", userHandler.GetUser)
		authed.PUT("/users/:id", userHandler.UpdateUser)

		authed.POST("/cart", cartHandler.AddItem)
		authed.GET("/cart", cartHandler.ListItems)
		authed.PUT("/cart/:id", cartHandler.UpdateItem)
		authed.DELETE("/cart/clear", cartHandler.ClearCart)
		authed.DELETE("/cart/:id", cartHandler.RemoveItem)

		authed.POST("/orders", orderHandler.CreateOrder)
		authed.GET("/orders/my", orderHandler.ListMyOrders)
		authed.GET("/orders/:id", orderHandler.GetOrder)
	}

	// Admin-only endpoints
	admin := api.Group("")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireAdmin())
	{
		admin.GET("/users", userHandler.ListUsers)
		admin.DELETE("/users/:id", userHandler.DeleteUser)

		admin.POST("/products", productHandler.CreateProduct)
		admin.PUT("/products/:id", productHandler.UpdateProduct)
		admin.DELETE("/products/:id", productHandler.DeleteProduct)

		admin.GET("/orders", orderHandler.ListOrders)
		admin.PUT("/orders/:id/status", orderHandler.UpdateStatus)
		admin.DELETE("/orders/:id", orderHandler.DeleteOrder)
	}

	// Start server
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Pet Palace API started", zap.String("addr", cfg.HTTPAddr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
