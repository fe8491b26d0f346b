package models

import (
	"time"

	"gorm.io/gorm"
)

// Alert types
const (
	AlertTypeUpper = "upper"
	AlertTypeLower = "lower"
)

// Alert represents a price-crossing rule owned by a user. The composite
// unique index rejects a second alert with the same symbol, direction and
// threshold for the same user at the storage layer.
//
// CurrentPrice and ChangePercent are informational snapshots taken when the
// alert is created or updated; they are not kept in sync with live prices.
type Alert struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	UserID        string    `gorm:"uniqueIndex:idx_user_alert;not null;index" json:"user_id"`
	Symbol        string    `gorm:"uniqueIndex:idx_user_alert;not null" json:"symbol"`
	Company       string    `gorm:"not null" json:"company"`
	AlertName     string    `gorm:"not null" json:"alert_name"`
	AlertType     string    `gorm:"uniqueIndex:idx_user_alert;not null" json:"alert_type"`
	Threshold     float64   `gorm:"uniqueIndex:idx_user_alert;not null" json:"threshold"`
	CurrentPrice  *float64  `json:"current_price,omitempty"`
	ChangePercent *float64  `json:"change_percent,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// AlertData is the client-supplied input for creating or updating an alert.
// Threshold arrives as a string from form input and is validated before use.
type AlertData struct {
	Symbol    string `json:"symbol"`
	Company   string `json:"company"`
	AlertName string `json:"alert_name"`
	AlertType string `json:"alert_type"`
	Threshold string `json:"threshold"`
}

// MigrateAlertModels runs database migrations for alert models
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(&Alert{})
}
