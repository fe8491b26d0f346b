package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"watchlist_backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertService validates, snapshots and persists price alerts
type AlertService struct {
	store    AlertStore
	provider MarketDataProvider
}

// NewAlertService creates a new alert service
func NewAlertService(store AlertStore, provider MarketDataProvider) *AlertService {
	return &AlertService{store: store, provider: provider}
}

// validatedAlert holds alert input after validation and canonicalization
type validatedAlert struct {
	symbol    string
	company   string
	alertName string
	alertType string
	threshold float64
}

// validateAlertData checks the client-supplied input before any persistence
// access. All failures wrap ErrValidation.
func validateAlertData(data *models.AlertData) (*validatedAlert, error) {
	symbol := CanonicalSymbol(data.Symbol)
	company := strings.TrimSpace(data.Company)
	alertName := strings.TrimSpace(data.AlertName)

	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrValidation)
	}
	if company == "" {
		return nil, fmt.Errorf("%w: company is required", ErrValidation)
	}
	if alertName == "" {
		return nil, fmt.Errorf("%w: alert name is required", ErrValidation)
	}
	if data.AlertType != models.AlertTypeUpper && data.AlertType != models.AlertTypeLower {
		return nil, fmt.Errorf("%w: alert type must be %q or %q", ErrValidation, models.AlertTypeUpper, models.AlertTypeLower)
	}

	threshold, err := decimal.NewFromString(strings.TrimSpace(data.Threshold))
	if err != nil {
		return nil, fmt.Errorf("%w: threshold must be a number", ErrValidation)
	}
	if !threshold.IsPositive() {
		return nil, fmt.Errorf("%w: threshold must be greater than zero", ErrValidation)
	}

	return &validatedAlert{
		symbol:    symbol,
		company:   company,
		alertName: alertName,
		alertType: data.AlertType,
		threshold: threshold.InexactFloat64(),
	}, nil
}

// Create validates the input, snapshots current pricing and persists a new
// alert. A provider failure is non-fatal; the alert is stored with empty
// snapshot fields.
func (s *AlertService) Create(ctx context.Context, userID string, data *models.AlertData) (*models.Alert, error) {
	v, err := validateAlertData(data)
	if err != nil {
		return nil, err
	}

	currentPrice, changePercent := s.snapshotPrice(ctx, v.symbol)

	alert := &models.Alert{
		ID:            uuid.NewString(),
		UserID:        userID,
		Symbol:        v.symbol,
		Company:       v.company,
		AlertName:     v.alertName,
		AlertType:     v.alertType,
		Threshold:     v.threshold,
		CurrentPrice:  currentPrice,
		ChangePercent: changePercent,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.Create(ctx, alert); err != nil {
		return nil, err
	}

	return alert, nil
}

// Update validates the input, re-snapshots pricing and rewrites the alert
// scoped to (id, userID)
func (s *AlertService) Update(ctx context.Context, userID, id string, data *models.AlertData) (*models.Alert, error) {
	v, err := validateAlertData(data)
	if err != nil {
		return nil, err
	}

	currentPrice, changePercent := s.snapshotPrice(ctx, v.symbol)

	alert := &models.Alert{
		ID:            id,
		UserID:        userID,
		Symbol:        v.symbol,
		Company:       v.company,
		AlertName:     v.alertName,
		AlertType:     v.alertType,
		Threshold:     v.threshold,
		CurrentPrice:  currentPrice,
		ChangePercent: changePercent,
	}

	if err := s.store.Update(ctx, alert); err != nil {
		return nil, err
	}

	// Return the authoritative stored record
	return s.store.GetByID(ctx, userID, id)
}

// Delete removes the alert scoped to (id, userID)
func (s *AlertService) Delete(ctx context.Context, userID, id string) error {
	return s.store.Delete(ctx, userID, id)
}

// ListForUser returns the user's alerts, most recently created first
func (s *AlertService) ListForUser(ctx context.Context, userID string) ([]models.Alert, error) {
	return s.store.ListForUser(ctx, userID)
}

// RefreshSnapshots re-snapshots price fields for every stored alert. Invoked
// by the scheduler; lookups that fail leave the previous snapshot in place.
func (s *AlertService) RefreshSnapshots(ctx context.Context) (int, error) {
	alerts, err := s.store.All(ctx)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for i := range alerts {
		alert := alerts[i]
		overview, err := s.provider.GetOverview(ctx, alert.Symbol)
		if err != nil {
			log.Printf("snapshot refresh skipped for %s: %v", alert.Symbol, err)
			continue
		}

		alert.CurrentPrice = overview.CurrentPrice
		alert.ChangePercent = overview.ChangePercent
		if err := s.store.Update(ctx, &alert); err != nil {
			log.Printf("snapshot refresh failed for alert %s: %v", alert.ID, err)
			continue
		}
		refreshed++
	}

	return refreshed, nil
}

// snapshotPrice fetches the current overview for the symbol. Failures are
// logged and yield nil snapshot fields.
func (s *AlertService) snapshotPrice(ctx context.Context, symbol string) (*float64, *float64) {
	overview, err := s.provider.GetOverview(ctx, symbol)
	if err != nil {
		log.Printf("price snapshot failed for %s: %v", symbol, err)
		return nil, nil
	}
	return overview.CurrentPrice, overview.ChangePercent
}
