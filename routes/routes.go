package routes

import (
	"watchlist_backend/controllers"
	"watchlist_backend/middleware"
	"watchlist_backend/services"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, watchlistStore services.WatchlistStore, alertService *services.AlertService, aggregation *services.AggregationService, realtime *services.RealtimeService) {
	// Initialize controllers
	watchlistController := controllers.NewWatchlistController(watchlistStore, aggregation, realtime)
	alertController := controllers.NewAlertController(alertService)

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Watchlist routes. Reads allow anonymous access and degrade to empty
		// results; mutations require a session.
		watchlist := api.Group("/watchlist")
		{
			watchlist.GET("", middleware.OptionalJWTAuthMiddleware(), watchlistController.GetWatchlist)
			watchlist.GET("/symbols", middleware.OptionalJWTAuthMiddleware(), watchlistController.GetWatchlistSymbols)
			watchlist.GET("/:symbol/status", middleware.OptionalJWTAuthMiddleware(), watchlistController.GetWatchlistStatus)
			watchlist.GET("/stream", middleware.JWTAuthMiddleware(), watchlistController.StreamWatchlist)
			watchlist.POST("", middleware.JWTAuthMiddleware(), watchlistController.AddToWatchlist)
			watchlist.DELETE("/:symbol", middleware.JWTAuthMiddleware(), watchlistController.RemoveFromWatchlist)
		}

		// Alert routes
		alerts := api.Group("/alerts")
		{
			alerts.GET("", middleware.OptionalJWTAuthMiddleware(), alertController.GetAlerts)
			alerts.POST("", middleware.JWTAuthMiddleware(), alertController.CreateAlert)
			alerts.PUT("/:id", middleware.JWTAuthMiddleware(), alertController.UpdateAlert)
			alerts.DELETE("/:id", middleware.JWTAuthMiddleware(), alertController.DeleteAlert)
		}
	}
}
