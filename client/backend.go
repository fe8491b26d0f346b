package client

import (
	"context"
	"errors"
	"log"

	"watchlist_backend/models"
	"watchlist_backend/services"
)

// Result is the uniform envelope mutating operations answer with. Expected
// failures (no session, conflict, not found, validation) arrive as messages,
// never as raised errors.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AlertResult carries the authoritative alert record on success
type AlertResult struct {
	Result
	Alert *models.Alert `json:"alert,omitempty"`
}

// Backend is the server surface the sync controller reconciles against
type Backend interface {
	GetWatchlistView(ctx context.Context) ([]models.StockWithData, error)
	AddToWatchlist(ctx context.Context, symbol, company string) Result
	RemoveFromWatchlist(ctx context.Context, symbol string) Result
	GetAlerts(ctx context.Context) ([]models.Alert, error)
	CreateAlert(ctx context.Context, data *models.AlertData) AlertResult
	UpdateAlert(ctx context.Context, id string, data *models.AlertData) AlertResult
	DeleteAlert(ctx context.Context, id string) Result
}

// ServiceBackend adapts the core services to the Backend contract for one
// resolved session identity. It applies the same error-to-envelope mapping
// the HTTP layer uses.
type ServiceBackend struct {
	userID      string
	watchlist   services.WatchlistStore
	alerts      *services.AlertService
	aggregation *services.AggregationService
}

// NewServiceBackend creates a backend bound to a resolved user identity
func NewServiceBackend(userID string, watchlist services.WatchlistStore, alerts *services.AlertService, aggregation *services.AggregationService) *ServiceBackend {
	return &ServiceBackend{
		userID:      userID,
		watchlist:   watchlist,
		alerts:      alerts,
		aggregation: aggregation,
	}
}

// GetWatchlistView returns the decorated watchlist, degrading store failures
// to an empty list
func (b *ServiceBackend) GetWatchlistView(ctx context.Context) ([]models.StockWithData, error) {
	if b.userID == "" {
		return []models.StockWithData{}, nil
	}
	view, err := b.aggregation.BuildView(ctx, b.userID)
	if err != nil {
		log.Printf("watchlist view build failed: %v", err)
		return []models.StockWithData{}, nil
	}
	return view, nil
}

// AddToWatchlist adds a symbol to the watchlist
func (b *ServiceBackend) AddToWatchlist(ctx context.Context, symbol, company string) Result {
	if b.userID == "" {
		return Result{Success: false, Message: "Not authenticated"}
	}

	err := b.watchlist.Add(ctx, b.userID, symbol, company)
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			return Result{Success: false, Message: "Already in watchlist"}
		}
		log.Printf("addToWatchlist error: %v", err)
		return Result{Success: false, Message: "Failed to add to watchlist"}
	}

	return Result{Success: true, Message: "Added to watchlist"}
}

// RemoveFromWatchlist removes a symbol from the watchlist
func (b *ServiceBackend) RemoveFromWatchlist(ctx context.Context, symbol string) Result {
	if b.userID == "" {
		return Result{Success: false, Message: "Not authenticated"}
	}

	err := b.watchlist.Remove(ctx, b.userID, symbol)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return Result{Success: false, Message: "Stock not in watchlist"}
		}
		log.Printf("removeFromWatchlist error: %v", err)
		return Result{Success: false, Message: "Failed to remove from watchlist"}
	}

	return Result{Success: true, Message: "Removed from watchlist"}
}

// GetAlerts returns the user's alerts, degrading failures to an empty list
func (b *ServiceBackend) GetAlerts(ctx context.Context) ([]models.Alert, error) {
	if b.userID == "" {
		return []models.Alert{}, nil
	}
	alerts, err := b.alerts.ListForUser(ctx, b.userID)
	if err != nil {
		log.Printf("getAlerts error: %v", err)
		return []models.Alert{}, nil
	}
	return alerts, nil
}

// CreateAlert creates a new price alert
func (b *ServiceBackend) CreateAlert(ctx context.Context, data *models.AlertData) AlertResult {
	if b.userID == "" {
		return AlertResult{Result: Result{Success: false, Message: "Not authenticated"}}
	}

	alert, err := b.alerts.Create(ctx, b.userID, data)
	if err != nil {
		return AlertResult{Result: alertErrorResult(err, "Failed to create alert")}
	}

	return AlertResult{Result: Result{Success: true, Message: "Alert created"}, Alert: alert}
}

// UpdateAlert updates an existing price alert
func (b *ServiceBackend) UpdateAlert(ctx context.Context, id string, data *models.AlertData) AlertResult {
	if b.userID == "" {
		return AlertResult{Result: Result{Success: false, Message: "Not authenticated"}}
	}

	alert, err := b.alerts.Update(ctx, b.userID, id, data)
	if err != nil {
		return AlertResult{Result: alertErrorResult(err, "Failed to update alert")}
	}

	return AlertResult{Result: Result{Success: true, Message: "Alert updated"}, Alert: alert}
}

// DeleteAlert deletes a price alert
func (b *ServiceBackend) DeleteAlert(ctx context.Context, id string) Result {
	if b.userID == "" {
		return Result{Success: false, Message: "Not authenticated"}
	}

	err := b.alerts.Delete(ctx, b.userID, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return Result{Success: false, Message: "Alert not found"}
		}
		log.Printf("deleteAlert error: %v", err)
		return Result{Success: false, Message: "Failed to delete alert"}
	}

	return Result{Success: true, Message: "Alert deleted"}
}

// alertErrorResult maps alert service errors to envelope messages
func alertErrorResult(err error, genericMessage string) Result {
	switch {
	case errors.Is(err, services.ErrValidation):
		return Result{Success: false, Message: err.Error()}
	case errors.Is(err, services.ErrConflict):
		return Result{Success: false, Message: "An alert with this configuration already exists."}
	case errors.Is(err, services.ErrNotFound):
		return Result{Success: false, Message: "Alert not found"}
	default:
		log.Printf("alert error: %v", err)
		return Result{Success: false, Message: genericMessage}
	}
}
