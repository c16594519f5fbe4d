package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/agentforge/internal/tools"
)

func TestValidateResult_FailureCodesPassThrough(t *testing.T) {
	assert.Equal(t, codeNoToolResult, validateResult("analyze_portfolio_performance", nil))

	failed := tools.Fail("API_TIMEOUT", nil)
	assert.Equal(t, "API_TIMEOUT", validateResult("analyze_portfolio_performance", &failed))

	bare := tools.Result{Success: false}
	assert.Equal(t, "API_ERROR", validateResult("analyze_portfolio_performance", &bare))
}

func TestValidateResult_EmptyAndNonFinitePayloads(t *testing.T) {
	empty := tools.OK(map[string]any{}, nil)
	assert.Equal(t, codeEmptyToolPayload, validateResult("categorize_transactions", &empty))

	nan := tools.OK(map[string]any{
		"total_transactions": 2,
		"nested":             map[string]any{"value": math.NaN()},
	}, nil)
	assert.Equal(t, codeNonFiniteValue, validateResult("categorize_transactions", &nan))

	inf := tools.OK(map[string]any{
		"holdings": []any{map[string]any{"price": math.Inf(1)}},
	}, nil)
	assert.Equal(t, codeNonFiniteValue, validateResult("get_market_data", &inf))
}

func TestValidateResult_PerToolShapes(t *testing.T) {
	cases := []struct {
		name string
		tool string
		data map[string]any
		want string
	}{
		{
			name: "performance valid",
			tool: "analyze_portfolio_performance",
			data: map[string]any{"performance": map[string]any{"netPerformancePercentage": 5.2}},
			want: "",
		},
		{
			name: "performance missing block",
			tool: "analyze_portfolio_performance",
			data: map[string]any{"summary": map[string]any{}},
			want: "INVALID_PERFORMANCE_PAYLOAD",
		},
		{
			name: "performance out of sane range",
			tool: "analyze_portfolio_performance",
			data: map[string]any{"performance": map[string]any{"netPerformancePercentage": 10001.0}},
			want: codeUnsaneReturnValue,
		},
		{
			name: "performance below sane range",
			tool: "analyze_portfolio_performance",
			data: map[string]any{"performance": map[string]any{"netPerformancePercentage": -150.0}},
			want: codeUnsaneReturnValue,
		},
		{
			name: "transactions valid",
			tool: "categorize_transactions",
			data: map[string]any{"total_transactions": 12},
			want: "",
		},
		{
			name: "transactions negative count",
			tool: "categorize_transactions",
			data: map[string]any{"total_transactions": -1},
			want: "INVALID_TRANSACTION_COUNT",
		},
		{
			name: "tax valid",
			tool: "estimate_capital_gains_tax",
			data: map[string]any{"combined_liability": 0.0},
			want: "",
		},
		{
			name: "tax negative liability",
			tool: "estimate_capital_gains_tax",
			data: map[string]any{"combined_liability": -4.5},
			want: "INVALID_TAX_PAYLOAD",
		},
		{
			name: "compliance valid",
			tool: "check_compliance",
			data: map[string]any{"total_violations": 0, "total_warnings": 2},
			want: "",
		},
		{
			name: "compliance missing warnings",
			tool: "check_compliance",
			data: map[string]any{"total_violations": 0},
			want: "INVALID_COMPLIANCE_PAYLOAD",
		},
		{
			name: "market valid",
			tool: "get_market_data",
			data: map[string]any{"total_holdings": 2, "holdings": []any{}},
			want: "",
		},
		{
			name: "market holdings not a list",
			tool: "get_market_data",
			data: map[string]any{"total_holdings": 2, "holdings": "AAPL"},
			want: "INVALID_MARKET_DATA_PAYLOAD",
		},
		{
			name: "allocation valid",
			tool: "advise_asset_allocation",
			data: map[string]any{
				"holdings_count":     2,
				"current_allocation": map[string]any{"EQUITY": 60.0, "FIXED_INCOME": 40.0},
			},
			want: "",
		},
		{
			name: "allocation sum drifts",
			tool: "advise_asset_allocation",
			data: map[string]any{
				"holdings_count":     2,
				"current_allocation": map[string]any{"EQUITY": 60.0, "FIXED_INCOME": 30.0},
			},
			want: "INVALID_ALLOCATION_SUM",
		},
		{
			name: "prediction browse valid",
			tool: "explore_prediction_markets",
			data: map[string]any{"action": "browse", "total_markets": 3},
			want: "",
		},
		{
			name: "prediction missing action",
			tool: "explore_prediction_markets",
			data: map[string]any{"total_markets": 3},
			want: "INVALID_PREDICTION_PAYLOAD",
		},
		{
			name: "prediction negative position count",
			tool: "explore_prediction_markets",
			data: map[string]any{"action": "positions", "total_positions": -1},
			want: "INVALID_PREDICTION_PAYLOAD",
		},
		{
			name: "prediction trending valid",
			tool: "explore_prediction_markets",
			data: map[string]any{"action": "trending", "total": 10},
			want: "",
		},
		{
			name: "allocation empty portfolio skips sum check",
			tool: "advise_asset_allocation",
			data: map[string]any{
				"holdings_count":     0,
				"current_allocation": map[string]any{"EQUITY": 0.0},
			},
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := tools.OK(tc.data, nil)
			assert.Equal(t, tc.want, validateResult(tc.tool, &result))
		})
	}
}
