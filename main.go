package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"watchlist_backend/config"
	"watchlist_backend/models"
	"watchlist_backend/routes"
	"watchlist_backend/scheduler"
	"watchlist_backend/services"

	"github.com/gin-gonic/gin"
)

// storeReady tracks whether the persistence layer has been successfully
// initialized, for the /ready health endpoint
var storeReady bool
var storeReadyMutex sync.RWMutex

func main() {
	log.Println("==============================================")
	log.Println("  Watchlist Backend API - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middlewares
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Setup health check endpoints FIRST so the platform can detect the
	// service is up; persistence is initialized in background
	setupHealthEndpoints(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start server immediately so the platform knows we're listening
	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Initialize persistence and setup routes in background
	var jobScheduler *scheduler.Scheduler
	var realtime *services.RealtimeService
	go func() {
		watchlistStore, alertStore, err := initStores(cfg)
		if err != nil {
			log.Printf("ERROR: Store initialization failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		provider := services.NewFinnhubProvider(cfg.FinnhubBaseURL, cfg.FinnhubAPIKey)
		alertService := services.NewAlertService(alertStore, provider)
		aggregation := services.NewAggregationService(watchlistStore, provider)
		realtime = services.NewRealtimeService(aggregation)
		go realtime.Start()

		// Mark persistence as ready
		storeReadyMutex.Lock()
		storeReady = true
		storeReadyMutex.Unlock()

		// Setup all API routes
		routes.SetupRoutes(router, watchlistStore, alertService, aggregation, realtime)

		// Start background scheduler
		jobScheduler = scheduler.NewScheduler(alertService)
		go jobScheduler.Start()

		log.Println("Application fully initialized")
	}()

	// Graceful shutdown
	gracefulShutdown(server, jobScheduler, realtime)
}

// initStores selects the persistence backend. When MONGODB_URI is configured
// the MongoDB stores are used; otherwise the relational stores back the
// service, with migrations run on startup.
func initStores(cfg *config.Config) (services.WatchlistStore, services.AlertStore, error) {
	if cfg.MongoURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		mongoDB, err := services.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		return services.NewMongoWatchlistStore(mongoDB), services.NewMongoAlertStore(mongoDB), nil
	}

	db, err := config.InitDB()
	if err != nil {
		return nil, nil, err
	}

	log.Println("Running database migrations...")
	if err := models.MigrateWatchlistModels(db); err != nil {
		return nil, nil, err
	}
	if err := models.MigrateAlertModels(db); err != nil {
		return nil, nil, err
	}
	log.Println("Database migrations completed successfully")

	return services.NewGormWatchlistStore(db), services.NewGormAlertStore(db), nil
}

// setupHealthEndpoints sets up health check endpoints
func setupHealthEndpoints(router *gin.Engine) {
	// Root endpoint
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Watchlist Backend API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - checks if service is ready to receive traffic
	router.GET("/ready", func(c *gin.Context) {
		storeReadyMutex.RLock()
		isReady := storeReady
		storeReadyMutex.RUnlock()

		if !isReady {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Store not connected",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler, realtime *services.RealtimeService) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop background workers first
	if jobScheduler != nil {
		jobScheduler.Stop()
	}
	if realtime != nil {
		realtime.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Close database connection
	if config.DB != nil {
		sqlDB, err := config.DB.DB()
		if err == nil {
			sqlDB.Close()
			log.Println("Database connection closed")
		}
	}

	log.Println("Server shutdown completed")
}
