package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"watchlist_backend/models"

	"gorm.io/gorm"
)

// WatchlistStore is the persisted per-user collection of tracked symbols.
// Symbols are canonicalized to uppercase before any comparison or write.
type WatchlistStore interface {
	// Add inserts a new entry. Returns ErrConflict when (userID, symbol)
	// already exists.
	Add(ctx context.Context, userID, symbol, company string) error

	// Remove deletes the entry scoped to (userID, symbol). Returns ErrNotFound
	// when nothing matched, covering "never existed" and "belongs to another
	// user" identically.
	Remove(ctx context.Context, userID, symbol string) error

	// ListForUser returns the user's entries ordered by AddedAt descending.
	ListForUser(ctx context.Context, userID string) ([]models.WatchlistEntry, error)

	// SymbolsForUser returns just the canonical symbols of the user's entries.
	SymbolsForUser(ctx context.Context, userID string) ([]string, error)

	// Exists reports whether (userID, symbol) is present.
	Exists(ctx context.Context, userID, symbol string) (bool, error)
}

// CanonicalSymbol normalizes a ticker to its uppercase join/uniqueness key
func CanonicalSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// GormWatchlistStore implements WatchlistStore on a relational database
type GormWatchlistStore struct {
	db *gorm.DB
}

// NewGormWatchlistStore creates a gorm-backed watchlist store
func NewGormWatchlistStore(db *gorm.DB) *GormWatchlistStore {
	return &GormWatchlistStore{db: db}
}

// Add inserts a new watchlist entry for the user
func (s *GormWatchlistStore) Add(ctx context.Context, userID, symbol, company string) error {
	symbolUpper := CanonicalSymbol(symbol)

	exists, err := s.Exists(ctx, userID, symbolUpper)
	if err != nil {
		return err
	}
	if exists {
		return ErrConflict
	}

	entry := models.WatchlistEntry{
		UserID:  userID,
		Symbol:  symbolUpper,
		Company: company,
		AddedAt: time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		// A racing insert loses at the unique index, not at the existence check
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return fmt.Errorf("failed to add watchlist entry: %w", err)
	}

	return nil
}

// Remove deletes the entry scoped to (userID, symbol)
func (s *GormWatchlistStore) Remove(ctx context.Context, userID, symbol string) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, CanonicalSymbol(symbol)).
		Delete(&models.WatchlistEntry{})

	if result.Error != nil {
		return fmt.Errorf("failed to remove watchlist entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// ListForUser returns the user's entries, most recently added first
func (s *GormWatchlistStore) ListForUser(ctx context.Context, userID string) ([]models.WatchlistEntry, error) {
	var entries []models.WatchlistEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	return entries, nil
}

// SymbolsForUser returns the user's tracked symbols
func (s *GormWatchlistStore) SymbolsForUser(ctx context.Context, userID string) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).
		Model(&models.WatchlistEntry{}).
		Where("user_id = ?", userID).
		Order("added_at DESC").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist symbols: %w", err)
	}
	return symbols, nil
}

// Exists reports whether the user already tracks the symbol
func (s *GormWatchlistStore) Exists(ctx context.Context, userID, symbol string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.WatchlistEntry{}).
		Where("user_id = ? AND symbol = ?", userID, CanonicalSymbol(symbol)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check watchlist entry: %w", err)
	}
	return count > 0, nil
}
