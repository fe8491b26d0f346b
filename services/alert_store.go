package services

import (
	"context"
	"errors"
	"fmt"

	"watchlist_backend/models"

	"gorm.io/gorm"
)

// AlertStore is the persisted per-user collection of price-crossing rules.
// Uniqueness of (userID, symbol, alertType, threshold) is enforced by the
// storage layer itself so concurrent writers cannot slip past a check.
type AlertStore interface {
	// Create persists a new alert. Returns ErrConflict when an identical
	// (symbol, alertType, threshold) alert already exists for the user.
	Create(ctx context.Context, alert *models.Alert) error

	// Update rewrites the alert scoped to (id, userID). Returns ErrNotFound
	// when nothing matched and ErrConflict when the new configuration collides
	// with another alert of the same user.
	Update(ctx context.Context, alert *models.Alert) error

	// Delete removes the alert scoped to (id, userID). Returns ErrNotFound
	// when nothing matched.
	Delete(ctx context.Context, userID, id string) error

	// ListForUser returns the user's alerts ordered by CreatedAt descending.
	ListForUser(ctx context.Context, userID string) ([]models.Alert, error)

	// GetByID returns the alert scoped to (id, userID), or ErrNotFound.
	GetByID(ctx context.Context, userID, id string) (*models.Alert, error)

	// All returns every stored alert. Used by the snapshot refresh job.
	All(ctx context.Context) ([]models.Alert, error)
}

// GormAlertStore implements AlertStore on a relational database
type GormAlertStore struct {
	db *gorm.DB
}

// NewGormAlertStore creates a gorm-backed alert store
func NewGormAlertStore(db *gorm.DB) *GormAlertStore {
	return &GormAlertStore{db: db}
}

// Create persists a new alert
func (s *GormAlertStore) Create(ctx context.Context, alert *models.Alert) error {
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// Update rewrites the alert scoped to (id, userID)
func (s *GormAlertStore) Update(ctx context.Context, alert *models.Alert) error {
	result := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ? AND user_id = ?", alert.ID, alert.UserID).
		Updates(map[string]interface{}{
			"symbol":         alert.Symbol,
			"company":        alert.Company,
			"alert_name":     alert.AlertName,
			"alert_type":     alert.AlertType,
			"threshold":      alert.Threshold,
			"current_price":  alert.CurrentPrice,
			"change_percent": alert.ChangePercent,
		})

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return fmt.Errorf("failed to update alert: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes the alert scoped to (id, userID)
func (s *GormAlertStore) Delete(ctx context.Context, userID, id string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Alert{})

	if result.Error != nil {
		return fmt.Errorf("failed to delete alert: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// ListForUser returns the user's alerts, most recently created first
func (s *GormAlertStore) ListForUser(ctx context.Context, userID string) ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// GetByID returns the alert scoped to (id, userID)
func (s *GormAlertStore) GetByID(ctx context.Context, userID, id string) (*models.Alert, error) {
	var alert models.Alert
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch alert: %w", err)
	}
	return &alert, nil
}

// All returns every stored alert
func (s *GormAlertStore) All(ctx context.Context) ([]models.Alert, error) {
	var alerts []models.Alert
	if err := s.db.WithContext(ctx).Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list all alerts: %w", err)
	}
	return alerts, nil
}
