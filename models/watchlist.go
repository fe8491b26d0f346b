package models

import (
	"time"

	"gorm.io/gorm"
)

// WatchlistEntry represents a tracked symbol on a user's watchlist.
// A symbol can appear at most once per user; the composite unique index
// is the storage-level guarantee that closes the check-then-insert race.
type WatchlistEntry struct {
	ID      uint      `gorm:"primaryKey" json:"-"`
	UserID  string    `gorm:"uniqueIndex:idx_user_symbol;not null;index" json:"user_id"`
	Symbol  string    `gorm:"uniqueIndex:idx_user_symbol;not null" json:"symbol"`
	Company string    `gorm:"not null" json:"company"`
	AddedAt time.Time `gorm:"index" json:"added_at"`
}

// StockWithData is a WatchlistEntry decorated with a live market overview.
// It is rebuilt on every aggregation call and never persisted. Pointer price
// fields and empty formatted strings mark symbols whose lookup failed, so the
// presentation layer can render a placeholder instead of a stale number.
type StockWithData struct {
	UserID          string    `json:"user_id"`
	Symbol          string    `json:"symbol"`
	Company         string    `json:"company"`
	AddedAt         time.Time `json:"added_at"`
	CurrentPrice    *float64  `json:"current_price,omitempty"`
	ChangePercent   *float64  `json:"change_percent,omitempty"`
	PriceFormatted  string    `json:"price_formatted,omitempty"`
	ChangeFormatted string    `json:"change_formatted,omitempty"`
	MarketCap       string    `json:"market_cap,omitempty"`
	PERatio         string    `json:"pe_ratio,omitempty"`
}

// MigrateWatchlistModels runs database migrations for watchlist models
func MigrateWatchlistModels(db *gorm.DB) error {
	return db.AutoMigrate(&WatchlistEntry{})
}
