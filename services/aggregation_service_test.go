package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAggregation(t *testing.T) (*AggregationService, *GormWatchlistStore, *fakeProvider) {
	db := newTestDB(t)
	store := NewGormWatchlistStore(db)
	provider := newFakeProvider()
	return NewAggregationService(store, provider), store, provider
}

func TestAggregation_EmptyWatchlistSkipsProvider(t *testing.T) {
	ctx := context.Background()
	agg, _, provider := newAggregation(t)

	view, err := agg.BuildView(ctx, "user-1")
	require.NoError(t, err)

	assert.Empty(t, view)
	assert.NotNil(t, view)
	assert.Equal(t, 0, provider.totalCalls())
}

func TestAggregation_PartialProviderFailure(t *testing.T) {
	ctx := context.Background()
	agg, store, provider := newAggregation(t)

	require.NoError(t, store.Add(ctx, "user-1", "AAPL", "Apple Inc"))
	require.NoError(t, store.Add(ctx, "user-1", "XYZ", "XYZ Corp"))

	provider.setOverview("AAPL", &Overview{
		CurrentPrice:  floatPtr(123.4),
		ChangePercent: floatPtr(-2.345),
	})
	provider.setFailing("XYZ")

	view, err := agg.BuildView(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, view, 2)

	bySymbol := make(map[string]int)
	for i, stock := range view {
		bySymbol[stock.Symbol] = i
	}

	aapl := view[bySymbol["AAPL"]]
	require.NotNil(t, aapl.CurrentPrice)
	assert.Equal(t, 123.4, *aapl.CurrentPrice)
	assert.Equal(t, "$123.40", aapl.PriceFormatted)
	assert.Equal(t, "-2.35%", aapl.ChangeFormatted)

	// The failed lookup degrades that entry's fields, nothing more
	xyz := view[bySymbol["XYZ"]]
	assert.Nil(t, xyz.CurrentPrice)
	assert.Nil(t, xyz.ChangePercent)
	assert.Empty(t, xyz.PriceFormatted)
	assert.Empty(t, xyz.ChangeFormatted)
	assert.Equal(t, "XYZ Corp", xyz.Company)
}

func TestAggregation_FormatsMarketCapAndPE(t *testing.T) {
	ctx := context.Background()
	agg, store, provider := newAggregation(t)

	require.NoError(t, store.Add(ctx, "user-1", "AAPL", "Apple Inc"))

	// Market cap arrives in millions of USD
	provider.setOverview("AAPL", &Overview{
		CurrentPrice:  floatPtr(187.5),
		ChangePercent: floatPtr(0.0),
		MarketCapUsd:  floatPtr(2_900_000),
		PERatio:       floatPtr(29.44),
	})

	view, err := agg.BuildView(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, view, 1)

	assert.Equal(t, "$2.90T", view[0].MarketCap)
	assert.Equal(t, "29.4", view[0].PERatio)
	assert.Equal(t, "+0.00%", view[0].ChangeFormatted)
}

func TestAggregation_MissingFundamentalsLeftAbsent(t *testing.T) {
	ctx := context.Background()
	agg, store, provider := newAggregation(t)

	require.NoError(t, store.Add(ctx, "user-1", "AAPL", "Apple Inc"))
	provider.setOverview("AAPL", &Overview{
		CurrentPrice:  floatPtr(187.5),
		ChangePercent: floatPtr(1.2),
	})

	view, err := agg.BuildView(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, view, 1)

	assert.Empty(t, view[0].MarketCap)
	assert.Empty(t, view[0].PERatio)
	assert.Equal(t, "+1.20%", view[0].ChangeFormatted)
}

func TestAggregation_PreservesEntryOrdering(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewGormWatchlistStore(db)
	provider := newFakeProvider()
	agg := NewAggregationService(store, provider)

	symbols := []string{"AAPL", "MSFT", "NVDA", "GOOG"}
	for _, symbol := range symbols {
		require.NoError(t, store.Add(ctx, "user-1", symbol, symbol+" Co"))
		provider.setOverview(symbol, &Overview{
			CurrentPrice:  floatPtr(100),
			ChangePercent: floatPtr(1),
		})
	}
	for i, symbol := range symbols {
		db.Exec(
			"UPDATE watchlist_entries SET added_at = ? WHERE symbol = ?",
			time.Now().UTC().Add(time.Duration(i)*time.Minute), symbol,
		)
	}

	view, err := agg.BuildView(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, view, 4)

	// Most recently added first, matching the store's ordering
	assert.Equal(t, "GOOG", view[0].Symbol)
	assert.Equal(t, "NVDA", view[1].Symbol)
	assert.Equal(t, "MSFT", view[2].Symbol)
	assert.Equal(t, "AAPL", view[3].Symbol)
}

func TestAggregation_OneLookupPerDistinctSymbol(t *testing.T) {
	ctx := context.Background()
	agg, store, provider := newAggregation(t)

	require.NoError(t, store.Add(ctx, "user-1", "AAPL", "Apple Inc"))
	require.NoError(t, store.Add(ctx, "user-1", "MSFT", "Microsoft"))
	provider.setOverview("AAPL", &Overview{CurrentPrice: floatPtr(1), ChangePercent: floatPtr(0)})
	provider.setOverview("MSFT", &Overview{CurrentPrice: floatPtr(2), ChangePercent: floatPtr(0)})

	_, err := agg.BuildView(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.callCount("AAPL"))
	assert.Equal(t, 1, provider.callCount("MSFT"))
}
