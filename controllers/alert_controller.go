package controllers

import (
	"errors"
	"log"
	"net/http"

	"watchlist_backend/middleware"
	"watchlist_backend/models"
	"watchlist_backend/services"

	"github.com/gin-gonic/gin"
)

// AlertController handles price alert requests
type AlertController struct {
	alerts *services.AlertService
}

// NewAlertController creates a new alert controller
func NewAlertController(alerts *services.AlertService) *AlertController {
	return &AlertController{alerts: alerts}
}

// GetAlerts returns the user's alerts, most recently created first
// GET /api/v1/alerts
func (ac *AlertController) GetAlerts(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		c.JSON(http.StatusOK, gin.H{"data": []interface{}{}})
		return
	}

	alerts, err := ac.alerts.ListForUser(c.Request.Context(), userID)
	if err != nil {
		log.Printf("getAlerts error: %v", err)
		c.JSON(http.StatusOK, gin.H{"data": []interface{}{}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": alerts})
}

// CreateAlert creates a new price alert
// POST /api/v1/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authenticated"})
		return
	}

	var data models.AlertData
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	alert, err := ac.alerts.Create(c.Request.Context(), userID, &data)
	if err != nil {
		ac.writeAlertError(c, err, "Failed to create alert")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Alert created", "alert": alert})
}

// UpdateAlert updates an existing price alert
// PUT /api/v1/alerts/:id
func (ac *AlertController) UpdateAlert(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authenticated"})
		return
	}

	var data models.AlertData
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	alert, err := ac.alerts.Update(c.Request.Context(), userID, c.Param("id"), &data)
	if err != nil {
		ac.writeAlertError(c, err, "Failed to update alert")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Alert updated", "alert": alert})
}

// DeleteAlert deletes a price alert
// DELETE /api/v1/alerts/:id
func (ac *AlertController) DeleteAlert(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authenticated"})
		return
	}

	err := ac.alerts.Delete(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Alert not found"})
			return
		}
		log.Printf("deleteAlert error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to delete alert"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Alert deleted"})
}

// writeAlertError maps service errors to the response envelope
func (ac *AlertController) writeAlertError(c *gin.Context, err error, genericMessage string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "An alert with this configuration already exists."})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Alert not found"})
	default:
		log.Printf("alert error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": genericMessage})
	}
}
