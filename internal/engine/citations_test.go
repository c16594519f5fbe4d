package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCitations_PerformanceFormats(t *testing.T) {
	history := []Record{{
		Tool:    "analyze_portfolio_performance",
		Success: true,
		Data: map[string]any{
			"performance": map[string]any{
				"netPerformancePercentage": 5.23,
				"totalInvestment":          10000.0,
				"currentValue":             10523.0,
			},
		},
	}}

	citations := buildCitations(history)
	require.Len(t, citations, 3)

	assert.Equal(t, "[1]", citations[0].Label)
	assert.Equal(t, "Portfolio Analysis", citations[0].DisplayName)
	assert.Equal(t, "performance.netPerformancePercentage", citations[0].Field)
	assert.Equal(t, "5.23%", citations[0].Value)

	assert.Equal(t, "[2]", citations[1].Label)
	assert.Equal(t, "$10,000.00", citations[1].Value)

	assert.Equal(t, "[3]", citations[2].Label)
	assert.Equal(t, "$10,523.00", citations[2].Value)
}

func TestBuildCitations_TransactionsTopCategory(t *testing.T) {
	history := []Record{{
		Tool:    "categorize_transactions",
		Success: true,
		Data: map[string]any{
			"total_transactions": 42,
			"by_type_counts": map[string]any{
				"BUY":      30,
				"SELL":     10,
				"DIVIDEND": 2,
			},
		},
	}}

	citations := buildCitations(history)
	require.Len(t, citations, 2)
	assert.Equal(t, "42", citations[0].Value)
	assert.Equal(t, "categories.top", citations[1].Field)
	assert.Equal(t, "BUY (30)", citations[1].Value)
}

func TestBuildCitations_SequentialLabelsAcrossTools(t *testing.T) {
	history := []Record{
		{
			Tool:    "estimate_capital_gains_tax",
			Success: true,
			Data:    map[string]any{"combined_liability": 1234.56, "tax_year": 2025},
		},
		{
			Tool:    "check_compliance",
			Success: true,
			Data:    map[string]any{"total_violations": 1, "total_warnings": 2},
		},
	}

	citations := buildCitations(history)
	require.Len(t, citations, 4)
	assert.Equal(t, "[1]", citations[0].Label)
	assert.Equal(t, "$1,234.56", citations[0].Value)
	assert.Equal(t, "[2]", citations[1].Label)
	assert.Equal(t, "2025", citations[1].Value)
	assert.Equal(t, "[3]", citations[2].Label)
	assert.Equal(t, "Compliance Check", citations[2].DisplayName)
	assert.Equal(t, "[4]", citations[3].Label)
}

func TestBuildCitations_PredictionMarketsPerAction(t *testing.T) {
	history := []Record{
		{
			Tool:    "explore_prediction_markets",
			Success: true,
			Data:    map[string]any{"action": "browse", "total_markets": 3},
		},
		{
			Tool:    "explore_prediction_markets",
			Success: true,
			Data: map[string]any{
				"action":     "analyze",
				"question":   "Will Bitcoin reach $100k by end of 2026?",
				"volume_24h": 52000.0,
			},
		},
		{
			Tool:    "explore_prediction_markets",
			Success: true,
			Data: map[string]any{
				"action":          "positions",
				"total_positions": 1,
				"exposure_pct":    2.07,
			},
		},
	}

	citations := buildCitations(history)
	require.Len(t, citations, 5)
	assert.Equal(t, "Prediction Markets", citations[0].DisplayName)
	assert.Equal(t, "total_markets", citations[0].Field)
	assert.Equal(t, "3", citations[0].Value)
	assert.Equal(t, "Will Bitcoin reach $100k by end of 2026?", citations[1].Value)
	assert.Equal(t, "$52,000.00", citations[2].Value)
	assert.Equal(t, "1", citations[3].Value)
	assert.Equal(t, "2.07%", citations[4].Value)
}

func TestBuildCitations_SkipsFailedAndEmptyRecords(t *testing.T) {
	history := []Record{
		{Tool: "analyze_portfolio_performance", Success: false, Error: "API_ERROR"},
		{Tool: "check_compliance", Success: true},
		{
			Tool:    "get_market_data",
			Success: true,
			Data:    map[string]any{"total_holdings": 3, "total_market_value": 50000.0},
		},
	}

	citations := buildCitations(history)
	require.Len(t, citations, 2)
	assert.Equal(t, "[1]", citations[0].Label)
	assert.Equal(t, "3", citations[0].Value)
	assert.Equal(t, "$50,000.00", citations[1].Value)
}

func TestBuildCitations_AllocationTopClass(t *testing.T) {
	history := []Record{{
		Tool:    "advise_asset_allocation",
		Success: true,
		Data: map[string]any{
			"current_allocation": map[string]any{
				"EQUITY":       45.0,
				"FIXED_INCOME": 35.0,
				"CASH":         20.0,
			},
			"target_profile": "balanced",
		},
	}}

	citations := buildCitations(history)
	require.Len(t, citations, 2)
	assert.Equal(t, "EQUITY (45.00%)", citations[0].Value)
	assert.Equal(t, "balanced", citations[1].Value)
}

func TestBuildCitations_EmptyHistoryReturnsEmptySlice(t *testing.T) {
	citations := buildCitations(nil)
	assert.NotNil(t, citations)
	assert.Empty(t, citations)
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "$0.00", formatCurrency(0))
	assert.Equal(t, "$999.99", formatCurrency(999.99))
	assert.Equal(t, "$1,000.00", formatCurrency(1000))
	assert.Equal(t, "$1,234,567.89", formatCurrency(1234567.89))
	assert.Equal(t, "-$2,500.50", formatCurrency(-2500.5))
}
