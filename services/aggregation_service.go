package services

import (
	"context"
	"log"
	"sync"

	"watchlist_backend/models"
)

// overviewFetchConcurrency bounds the provider fan-out
const overviewFetchConcurrency = 10

// AggregationService joins watchlist entries with concurrent market data
// lookups into a decorated view
type AggregationService struct {
	store    WatchlistStore
	provider MarketDataProvider
}

// NewAggregationService creates a new aggregation service
func NewAggregationService(store WatchlistStore, provider MarketDataProvider) *AggregationService {
	return &AggregationService{store: store, provider: provider}
}

// BuildView loads the user's watchlist and decorates every entry with a live
// overview. Lookups for distinct symbols run concurrently; a failed lookup
// leaves that entry's overview fields unset and never aborts the batch, so
// wall-clock cost is bounded by the slowest single lookup. Entry ordering
// (addedAt descending) is preserved. A store failure is returned to the
// caller; the HTTP boundary decides how to degrade it.
func (s *AggregationService) BuildView(ctx context.Context, userID string) ([]models.StockWithData, error) {
	entries, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return []models.StockWithData{}, nil
	}

	overviews := s.fetchOverviews(ctx, distinctSymbols(entries))

	result := make([]models.StockWithData, len(entries))
	for i, entry := range entries {
		result[i] = mergeEntry(entry, overviews[CanonicalSymbol(entry.Symbol)])
	}

	return result, nil
}

// fetchOverviews fans out one provider lookup per symbol and waits for the
// full set to settle. Failures are logged and recorded as nil overviews.
func (s *AggregationService) fetchOverviews(ctx context.Context, symbols []string) map[string]*Overview {
	overviews := make(map[string]*Overview, len(symbols))
	var mu sync.Mutex
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, overviewFetchConcurrency)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			overview, err := s.provider.GetOverview(ctx, symbol)
			if err != nil {
				log.Printf("overview lookup failed for %s: %v", symbol, err)
				overview = nil
			}

			mu.Lock()
			overviews[symbol] = overview
			mu.Unlock()
		}(symbol)
	}

	wg.Wait()
	return overviews
}

// distinctSymbols collects the canonical symbols of the entries, deduplicated
// with first-seen order preserved
func distinctSymbols(entries []models.WatchlistEntry) []string {
	seen := make(map[string]bool, len(entries))
	symbols := make([]string, 0, len(entries))
	for _, entry := range entries {
		key := CanonicalSymbol(entry.Symbol)
		if !seen[key] {
			seen[key] = true
			symbols = append(symbols, key)
		}
	}
	return symbols
}

// mergeEntry joins one watchlist entry with its overview, computing the
// formatted display strings. A nil overview leaves every derived field unset.
func mergeEntry(entry models.WatchlistEntry, overview *Overview) models.StockWithData {
	stock := models.StockWithData{
		UserID:  entry.UserID,
		Symbol:  CanonicalSymbol(entry.Symbol),
		Company: entry.Company,
		AddedAt: entry.AddedAt,
	}

	if overview == nil {
		return stock
	}

	stock.CurrentPrice = overview.CurrentPrice
	stock.ChangePercent = overview.ChangePercent

	if overview.CurrentPrice != nil {
		stock.PriceFormatted = FormatPrice(*overview.CurrentPrice)
	}
	if overview.ChangePercent != nil {
		stock.ChangeFormatted = FormatChangePercent(*overview.ChangePercent)
	}
	if overview.MarketCapUsd != nil {
		// Finnhub reports market cap in millions of USD
		stock.MarketCap = FormatMarketCap(*overview.MarketCapUsd * 1_000_000)
	}
	if overview.PERatio != nil {
		stock.PERatio = FormatPERatio(*overview.PERatio)
	}

	return stock
}
