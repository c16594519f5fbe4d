package engine

import (
	"context"
	"fmt"
	"strings"
)

// Synthesizer turns a tool result into conversational prose. Implementations
// may call an LLM; any failure falls back to the deterministic summary.
type Synthesizer interface {
	Synthesize(ctx context.Context, query, tool string, data map[string]any) (string, error)
}

// buildSummary produces the deterministic per-tool summary. It reports the
// numbers the tool computed and nothing else.
func buildSummary(tool string, data map[string]any) string {
	if len(data) == 0 {
		return "Analysis complete."
	}

	switch tool {
	case "analyze_portfolio_performance":
		if performance, ok := data["performance"].(map[string]any); ok {
			if pct, ok := asFloat(performance["netPerformancePercentage"]); ok {
				return fmt.Sprintf("Portfolio net performance is %.2f%% for the selected range.", pct)
			}
		}
		return "Portfolio performance data is ready."

	case "categorize_transactions":
		if total, ok := asInt(data["total_transactions"]); ok {
			return fmt.Sprintf(
				"Transaction categorization is complete. I found %d activities in the selected range.", total)
		}
		return "Transaction categorization is complete."

	case "estimate_capital_gains_tax":
		liability := "n/a"
		if value, ok := asFloat(data["combined_liability"]); ok {
			liability = formatCurrency(value)
		}
		year, _ := asInt(data["tax_year"])
		return fmt.Sprintf(
			"Capital gains estimate is ready. Estimated combined liability for %d is %s.", year, liability)

	case "check_compliance":
		violations, _ := asInt(data["total_violations"])
		warnings, _ := asInt(data["total_warnings"])
		return fmt.Sprintf(
			"Compliance screening is complete. Found %d violation(s) and %d warning(s).", violations, warnings)

	case "get_market_data":
		holdings, _ := asInt(data["total_holdings"])
		valueStr := ""
		if value, ok := asFloat(data["total_market_value"]); ok && value != 0 {
			valueStr = fmt.Sprintf(" with total value %s", formatCurrency(value))
		}
		return fmt.Sprintf("Market data retrieved. Showing data for %d holding(s)%s.", holdings, valueStr)

	case "explore_prediction_markets":
		action, _ := data["action"].(string)
		switch action {
		case "browse", "search":
			total, _ := asInt(data["total_markets"])
			return fmt.Sprintf("Found %d active prediction market(s) matching your request.", total)
		case "trending":
			total, _ := asInt(data["total"])
			return fmt.Sprintf("Here are the top %d prediction market(s) by 24h volume.", total)
		case "analyze":
			question, _ := data["question"].(string)
			return fmt.Sprintf("Market analysis is ready for: %s", question)
		case "positions":
			total, _ := asInt(data["total_positions"])
			exposure, _ := asFloat(data["exposure_pct"])
			return fmt.Sprintf(
				"You hold %d prediction market position(s), %.2f%% of your portfolio.", total, exposure)
		case "simulate":
			if amount, ok := asFloat(data["amount"]); ok {
				return fmt.Sprintf("Simulation complete for a %s bet.", formatCurrency(amount))
			}
		case "compare":
			return "Market comparison is ready."
		case "scenario":
			if allocation, ok := data["allocation"].(map[string]any); ok {
				if amount, ok := asFloat(allocation["resolved_amount"]); ok {
					return fmt.Sprintf(
						"Scenario modeled: reallocating %s into the prediction market.", formatCurrency(amount))
				}
			}
		}
		return "Prediction market data is ready."
	}

	warnings := 0
	if list, ok := data["concentration_warnings"].([]map[string]any); ok {
		warnings = len(list)
	} else if list, ok := data["concentration_warnings"].([]any); ok {
		warnings = len(list)
	}
	return fmt.Sprintf("Allocation analysis is complete. I found %d concentration warning(s).", warnings)
}

// buildCombinedSummary joins the summaries of every successful record of a
// multi-step turn.
func buildCombinedSummary(history []Record) string {
	var parts []string
	for _, record := range history {
		if record.Success {
			parts = append(parts, buildSummary(record.Tool, record.Data))
		}
	}
	if len(parts) == 0 {
		return "Analysis complete."
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "Combined analysis:\n" + strings.Join(parts, "\n")
}
