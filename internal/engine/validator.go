package engine

import (
	"math"

	"github.com/fyrsmithlabs/agentforge/internal/tools"
)

// Validation reason codes beyond the tool codes.
const (
	codeNoToolResult      = "NO_TOOL_RESULT"
	codeEmptyToolPayload  = "EMPTY_TOOL_PAYLOAD"
	codeNonFiniteValue    = "NON_FINITE_VALUE"
	codeUnsupportedTool   = "UNSUPPORTED_TOOL"
	codeUnsaneReturnValue = "UNSANE_RETURN_VALUE"
)

// validateResult checks a tool result before it may influence the response.
// Checks short-circuit in a fixed order: success flag, payload presence,
// numeric sanity, then per-tool shape. Returns an empty code when valid.
func validateResult(tool string, result *tools.Result) string {
	if result == nil {
		return codeNoToolResult
	}
	if !result.Success {
		if result.ErrorCode != "" {
			return result.ErrorCode
		}
		return "API_ERROR"
	}
	if tool == "" {
		return codeUnsupportedTool
	}
	if len(result.Data) == 0 {
		return codeEmptyToolPayload
	}
	if !onlyFiniteNumbers(result.Data) {
		return codeNonFiniteValue
	}
	return validatePayload(tool, result.Data)
}

func onlyFiniteNumbers(value any) bool {
	switch v := value.(type) {
	case float64:
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		f := float64(v)
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case map[string]any:
		for _, item := range v {
			if !onlyFiniteNumbers(item) {
				return false
			}
		}
	case []any:
		for _, item := range v {
			if !onlyFiniteNumbers(item) {
				return false
			}
		}
	case []map[string]any:
		for _, item := range v {
			if !onlyFiniteNumbers(item) {
				return false
			}
		}
	}
	return true
}

func validatePayload(tool string, payload map[string]any) string {
	switch tool {
	case "analyze_portfolio_performance":
		performance, ok := payload["performance"].(map[string]any)
		if !ok {
			return "INVALID_PERFORMANCE_PAYLOAD"
		}
		if pct, ok := asFloat(performance["netPerformancePercentage"]); ok {
			if pct < -100 || pct > 10000 {
				return codeUnsaneReturnValue
			}
		}

	case "categorize_transactions":
		if count, ok := asInt(payload["total_transactions"]); !ok || count < 0 {
			return "INVALID_TRANSACTION_COUNT"
		}

	case "estimate_capital_gains_tax":
		liability, ok := asFloat(payload["combined_liability"])
		if !ok || liability < 0 {
			return "INVALID_TAX_PAYLOAD"
		}

	case "check_compliance":
		if v, ok := asInt(payload["total_violations"]); !ok || v < 0 {
			return "INVALID_COMPLIANCE_PAYLOAD"
		}
		if w, ok := asInt(payload["total_warnings"]); !ok || w < 0 {
			return "INVALID_COMPLIANCE_PAYLOAD"
		}

	case "get_market_data":
		if h, ok := asInt(payload["total_holdings"]); !ok || h < 0 {
			return "INVALID_MARKET_DATA_PAYLOAD"
		}
		if !isList(payload["holdings"]) {
			return "INVALID_MARKET_DATA_PAYLOAD"
		}

	case "explore_prediction_markets":
		action, ok := payload["action"].(string)
		if !ok || action == "" {
			return "INVALID_PREDICTION_PAYLOAD"
		}
		switch action {
		case "browse", "search":
			if n, ok := asInt(payload["total_markets"]); !ok || n < 0 {
				return "INVALID_PREDICTION_PAYLOAD"
			}
		case "positions":
			if n, ok := asInt(payload["total_positions"]); !ok || n < 0 {
				return "INVALID_PREDICTION_PAYLOAD"
			}
		case "trending":
			if n, ok := asInt(payload["total"]); !ok || n < 0 {
				return "INVALID_PREDICTION_PAYLOAD"
			}
		}

	default:
		// advise_asset_allocation
		count, ok := asInt(payload["holdings_count"])
		if !ok || count < 0 {
			return "INVALID_HOLDINGS_COUNT"
		}
		allocation, ok := payload["current_allocation"].(map[string]any)
		if !ok || len(allocation) == 0 {
			return "INVALID_ALLOCATION_PAYLOAD"
		}
		sum := 0.0
		for _, value := range allocation {
			pct, ok := asFloat(value)
			if !ok {
				return "INVALID_ALLOCATION_PAYLOAD"
			}
			sum += pct
		}
		if count > 0 && math.Abs(sum-100) > 1 {
			return "INVALID_ALLOCATION_SUM"
		}
	}
	return ""
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	}
	return 0, false
}

func isList(value any) bool {
	switch value.(type) {
	case []any, []map[string]any:
		return true
	}
	return false
}
