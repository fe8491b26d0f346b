package controllers

import (
	"errors"
	"log"
	"net/http"

	"watchlist_backend/middleware"
	"watchlist_backend/services"

	"github.com/gin-gonic/gin"
)

// WatchlistController handles watchlist-related requests. Mutations answer
// with a uniform {success, message} envelope; expected failures (conflict,
// not found, no session) never surface as raw errors.
type WatchlistController struct {
	store       services.WatchlistStore
	aggregation *services.AggregationService
	realtime    *services.RealtimeService
}

// NewWatchlistController creates a new watchlist controller
func NewWatchlistController(store services.WatchlistStore, aggregation *services.AggregationService, realtime *services.RealtimeService) *WatchlistController {
	return &WatchlistController{
		store:       store,
		aggregation: aggregation,
		realtime:    realtime,
	}
}

// GetWatchlist returns the user's watchlist decorated with live market data
// GET /api/v1/watchlist
func (wc *WatchlistController) GetWatchlist(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		c.JSON(http.StatusOK, gin.H{"data": []interface{}{}})
		return
	}

	view, err := wc.aggregation.BuildView(c.Request.Context(), userID)
	if err != nil {
		// Degrade to an empty list; the failure is logged, not leaked
		log.Printf("watchlist view build failed for user %s: %v", userID, err)
		c.JSON(http.StatusOK, gin.H{"data": []interface{}{}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

// GetWatchlistSymbols returns just the user's tracked symbols
// GET /api/v1/watchlist/symbols
func (wc *WatchlistController) GetWatchlistSymbols(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		c.JSON(http.StatusOK, gin.H{"data": []string{}})
		return
	}

	symbols, err := wc.store.SymbolsForUser(c.Request.Context(), userID)
	if err != nil {
		log.Printf("watchlist symbols lookup failed for user %s: %v", userID, err)
		c.JSON(http.StatusOK, gin.H{"data": []string{}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": symbols})
}

// GetWatchlistStatus reports whether a symbol is on the user's watchlist
// GET /api/v1/watchlist/:symbol/status
func (wc *WatchlistController) GetWatchlistStatus(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	symbol := c.Param("symbol")
	if userID == "" || symbol == "" {
		c.JSON(http.StatusOK, gin.H{"in_watchlist": false})
		return
	}

	exists, err := wc.store.Exists(c.Request.Context(), userID, symbol)
	if err != nil {
		log.Printf("watchlist status lookup failed for user %s: %v", userID, err)
		exists = false
	}

	c.JSON(http.StatusOK, gin.H{"in_watchlist": exists})
}

// AddToWatchlist adds a symbol to the user's watchlist
// POST /api/v1/watchlist
func (wc *WatchlistController) AddToWatchlist(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authenticated"})
		return
	}

	var request struct {
		Symbol  string `json:"symbol" binding:"required"`
		Company string `json:"company" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Symbol and company are required"})
		return
	}

	err := wc.store.Add(c.Request.Context(), userID, request.Symbol, request.Company)
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Already in watchlist"})
			return
		}
		log.Printf("addToWatchlist error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to add to watchlist"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Added to watchlist"})
}

// RemoveFromWatchlist removes a symbol from the user's watchlist
// DELETE /api/v1/watchlist/:symbol
func (wc *WatchlistController) RemoveFromWatchlist(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authenticated"})
		return
	}

	err := wc.store.Remove(c.Request.Context(), userID, c.Param("symbol"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Stock not in watchlist"})
			return
		}
		log.Printf("removeFromWatchlist error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to remove from watchlist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Removed from watchlist"})
}

// StreamWatchlist upgrades the request to a websocket streaming the user's
// rebuilt view on a poll interval
// GET /api/v1/watchlist/stream
func (wc *WatchlistController) StreamWatchlist(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authenticated"})
		return
	}

	if err := wc.realtime.HandleConnection(c.Writer, c.Request, userID); err != nil {
		log.Printf("websocket upgrade failed: %v", err)
	}
}
