package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Overview is a best-effort snapshot of market data for a single symbol.
// Nil fields mean the upstream did not report a value.
type Overview struct {
	CurrentPrice  *float64 `json:"current_price,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
	MarketCapUsd  *float64 `json:"market_cap_usd,omitempty"` // millions of USD
	PERatio       *float64 `json:"pe_ratio,omitempty"`
}

// MarketDataProvider fetches live market data. Implementations may fail per
// symbol independently; callers decide whether a failure is fatal.
type MarketDataProvider interface {
	GetOverview(ctx context.Context, symbol string) (*Overview, error)
}

// FinnhubProvider fetches overviews from the Finnhub REST API
type FinnhubProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewFinnhubProvider creates a Finnhub-backed market data provider
func NewFinnhubProvider(baseURL, apiKey string) *FinnhubProvider {
	return &FinnhubProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// finnhubQuote represents the /quote response
type finnhubQuote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
}

// finnhubMetrics represents the /stock/metric response
type finnhubMetrics struct {
	Metric struct {
		MarketCapitalization *float64 `json:"marketCapitalization"`
		PETTM                *float64 `json:"peTTM"`
	} `json:"metric"`
}

// GetOverview fetches quote and fundamental metrics for a symbol. The quote is
// mandatory; metrics failures only leave market cap and P/E unset.
func (p *FinnhubProvider) GetOverview(ctx context.Context, symbol string) (*Overview, error) {
	var quote finnhubQuote
	if err := p.getJSON(ctx, "/quote", symbol, &quote); err != nil {
		return nil, fmt.Errorf("%w: quote %s: %v", ErrUpstreamUnavailable, symbol, err)
	}

	// Finnhub returns an all-zero quote for unknown symbols
	if quote.Current == 0 && quote.PrevClose == 0 {
		return nil, fmt.Errorf("%w: no quote data for %s", ErrUpstreamUnavailable, symbol)
	}

	overview := &Overview{}
	price := quote.Current
	change := quote.ChangePercent
	overview.CurrentPrice = &price
	overview.ChangePercent = &change

	var metrics finnhubMetrics
	if err := p.getJSON(ctx, "/stock/metric", symbol, &metrics); err == nil {
		overview.MarketCapUsd = metrics.Metric.MarketCapitalization
		overview.PERatio = metrics.Metric.PETTM
	}

	return overview, nil
}

// getJSON performs a GET against the Finnhub API and decodes the response
func (p *FinnhubProvider) getJSON(ctx context.Context, path, symbol string, out interface{}) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("token", p.apiKey)
	if path == "/stock/metric" {
		params.Set("metric", "all")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
