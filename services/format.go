package services

import (
	"fmt"

	"watchlist_backend/models"
)

// FormatPrice renders a price as a fixed two-decimal USD amount
func FormatPrice(price float64) string {
	return fmt.Sprintf("$%.2f", price)
}

// FormatChangePercent renders a percent change with two decimals and an
// explicit sign. Non-negative values, including zero, carry a leading "+".
func FormatChangePercent(changePercent float64) string {
	if changePercent >= 0 {
		return fmt.Sprintf("+%.2f%%", changePercent)
	}
	return fmt.Sprintf("%.2f%%", changePercent)
}

// FormatMarketCap renders a market cap in USD using T/B/M suffixes
func FormatMarketCap(valueUsd float64) string {
	switch {
	case valueUsd >= 1e12:
		return fmt.Sprintf("$%.2fT", valueUsd/1e12)
	case valueUsd >= 1e9:
		return fmt.Sprintf("$%.2fB", valueUsd/1e9)
	case valueUsd >= 1e6:
		return fmt.Sprintf("$%.2fM", valueUsd/1e6)
	default:
		return fmt.Sprintf("$%.0f", valueUsd)
	}
}

// FormatPERatio renders a P/E ratio with one decimal
func FormatPERatio(peRatio float64) string {
	return fmt.Sprintf("%.1f", peRatio)
}

// AlertConditionText describes an alert's trigger condition for display
func AlertConditionText(alert *models.Alert) string {
	if alert.AlertType == models.AlertTypeLower {
		return fmt.Sprintf("Price below %s", FormatPrice(alert.Threshold))
	}
	return fmt.Sprintf("Price above %s", FormatPrice(alert.Threshold))
}

// ThresholdCrossed reports whether a price satisfies an alert's condition.
// Upper alerts trigger strictly above the threshold, lower alerts strictly
// below. The core never calls this on a schedule; it exists for callers that
// compare a fresh quote against a stored rule.
func ThresholdCrossed(alertType string, threshold, price float64) bool {
	if alertType == models.AlertTypeLower {
		return price < threshold
	}
	return price > threshold
}
