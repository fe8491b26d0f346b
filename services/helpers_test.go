package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"watchlist_backend/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database with the real unique
// indexes migrated, so conflict behavior is exercised against actual
// storage-level constraints.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// In-memory sqlite is per-connection; keep the pool at one
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.MigrateWatchlistModels(db))
	require.NoError(t, models.MigrateAlertModels(db))
	return db
}

// fakeProvider is a scriptable in-memory MarketDataProvider
type fakeProvider struct {
	mu        sync.Mutex
	overviews map[string]*Overview
	failing   map[string]bool
	calls     map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		overviews: make(map[string]*Overview),
		failing:   make(map[string]bool),
		calls:     make(map[string]int),
	}
}

func (f *fakeProvider) setOverview(symbol string, overview *Overview) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overviews[symbol] = overview
}

func (f *fakeProvider) setFailing(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[symbol] = true
}

func (f *fakeProvider) callCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

func (f *fakeProvider) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeProvider) GetOverview(ctx context.Context, symbol string) (*Overview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++

	if f.failing[symbol] {
		return nil, fmt.Errorf("%w: simulated failure for %s", ErrUpstreamUnavailable, symbol)
	}
	if overview, ok := f.overviews[symbol]; ok {
		return overview, nil
	}
	return nil, fmt.Errorf("%w: no data for %s", ErrUpstreamUnavailable, symbol)
}

func floatPtr(v float64) *float64 { return &v }
