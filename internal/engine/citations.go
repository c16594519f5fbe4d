package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// buildCitations extracts up to three data points per successful tool record
// into ordinal-labelled citations. The extraction map per tool is fixed;
// records that failed or carried no data are skipped. Pure function of the
// history.
func buildCitations(history []Record) []Citation {
	var out []Citation
	for _, record := range history {
		if !record.Success || len(record.Data) == 0 {
			continue
		}
		for _, point := range extractCitationPoints(record.Tool, record.Data) {
			point.Label = fmt.Sprintf("[%d]", len(out)+1)
			out = append(out, point)
		}
	}
	if out == nil {
		out = []Citation{}
	}
	return out
}

func extractCitationPoints(tool string, data map[string]any) []Citation {
	switch tool {
	case "analyze_portfolio_performance":
		performance, ok := data["performance"].(map[string]any)
		if !ok {
			return nil
		}
		var points []Citation
		if pct, ok := asFloat(performance["netPerformancePercentage"]); ok {
			points = append(points, Citation{
				DisplayName: "Portfolio Analysis",
				Field:       "performance.netPerformancePercentage",
				Value:       fmt.Sprintf("%.2f%%", pct),
			})
		}
		if invested, ok := asFloat(performance["totalInvestment"]); ok {
			points = append(points, Citation{
				DisplayName: "Portfolio Analysis",
				Field:       "performance.totalInvestment",
				Value:       formatCurrency(invested),
			})
		}
		if current, ok := asFloat(performance["currentValue"]); ok {
			points = append(points, Citation{
				DisplayName: "Portfolio Analysis",
				Field:       "performance.currentValue",
				Value:       formatCurrency(current),
			})
		}
		return points

	case "categorize_transactions":
		var points []Citation
		if total, ok := asInt(data["total_transactions"]); ok {
			points = append(points, Citation{
				DisplayName: "Transaction Categorization",
				Field:       "total_transactions",
				Value:       strconv.Itoa(total),
			})
		}
		if category, count, ok := topCount(data); ok {
			points = append(points, Citation{
				DisplayName: "Transaction Categorization",
				Field:       "categories.top",
				Value:       fmt.Sprintf("%s (%d)", category, count),
			})
		}
		return points

	case "estimate_capital_gains_tax":
		var points []Citation
		if liability, ok := asFloat(data["combined_liability"]); ok {
			points = append(points, Citation{
				DisplayName: "Tax Estimate",
				Field:       "combined_liability",
				Value:       formatCurrency(liability),
			})
		}
		if year, ok := asInt(data["tax_year"]); ok {
			points = append(points, Citation{
				DisplayName: "Tax Estimate",
				Field:       "tax_year",
				Value:       strconv.Itoa(year),
			})
		}
		return points

	case "check_compliance":
		var points []Citation
		if violations, ok := asInt(data["total_violations"]); ok {
			points = append(points, Citation{
				DisplayName: "Compliance Check",
				Field:       "total_violations",
				Value:       strconv.Itoa(violations),
			})
		}
		if warnings, ok := asInt(data["total_warnings"]); ok {
			points = append(points, Citation{
				DisplayName: "Compliance Check",
				Field:       "total_warnings",
				Value:       strconv.Itoa(warnings),
			})
		}
		return points

	case "get_market_data":
		var points []Citation
		if total, ok := asInt(data["total_holdings"]); ok {
			points = append(points, Citation{
				DisplayName: "Market Data",
				Field:       "total_holdings",
				Value:       strconv.Itoa(total),
			})
		}
		if value, ok := asFloat(data["total_market_value"]); ok {
			points = append(points, Citation{
				DisplayName: "Market Data",
				Field:       "total_market_value",
				Value:       formatCurrency(value),
			})
		}
		return points

	case "explore_prediction_markets":
		var points []Citation
		action, _ := data["action"].(string)
		switch action {
		case "browse", "search":
			if total, ok := asInt(data["total_markets"]); ok {
				points = append(points, Citation{
					DisplayName: "Prediction Markets",
					Field:       "total_markets",
					Value:       strconv.Itoa(total),
				})
			}
		case "trending":
			if total, ok := asInt(data["total"]); ok {
				points = append(points, Citation{
					DisplayName: "Prediction Markets",
					Field:       "total",
					Value:       strconv.Itoa(total),
				})
			}
		case "analyze":
			if question, ok := data["question"].(string); ok && question != "" {
				points = append(points, Citation{
					DisplayName: "Prediction Markets",
					Field:       "question",
					Value:       question,
				})
			}
			if volume, ok := asFloat(data["volume_24h"]); ok {
				points = append(points, Citation{
					DisplayName: "Prediction Markets",
					Field:       "volume_24h",
					Value:       formatCurrency(volume),
				})
			}
		case "positions":
			if total, ok := asInt(data["total_positions"]); ok {
				points = append(points, Citation{
					DisplayName: "Prediction Markets",
					Field:       "total_positions",
					Value:       strconv.Itoa(total),
				})
			}
			if exposure, ok := asFloat(data["exposure_pct"]); ok {
				points = append(points, Citation{
					DisplayName: "Prediction Markets",
					Field:       "exposure_pct",
					Value:       fmt.Sprintf("%.2f%%", exposure),
				})
			}
		case "simulate":
			if amount, ok := asFloat(data["amount"]); ok {
				points = append(points, Citation{
					DisplayName: "Prediction Markets",
					Field:       "amount",
					Value:       formatCurrency(amount),
				})
			}
		case "scenario":
			if allocation, ok := data["allocation"].(map[string]any); ok {
				if amount, ok := asFloat(allocation["resolved_amount"]); ok {
					points = append(points, Citation{
						DisplayName: "Prediction Markets",
						Field:       "allocation.resolved_amount",
						Value:       formatCurrency(amount),
					})
				}
			}
		}
		return points

	case "advise_asset_allocation":
		var points []Citation
		if allocation, ok := data["current_allocation"].(map[string]any); ok && len(allocation) > 0 {
			top, pct := topAllocation(allocation)
			points = append(points, Citation{
				DisplayName: "Allocation Analysis",
				Field:       "current_allocation.top",
				Value:       fmt.Sprintf("%s (%.2f%%)", top, pct),
			})
		}
		if profile, ok := data["target_profile"].(string); ok && profile != "" {
			points = append(points, Citation{
				DisplayName: "Allocation Analysis",
				Field:       "target_profile",
				Value:       profile,
			})
		}
		return points
	}
	return nil
}

// topCount finds the largest category in either counts shape the payload
// may carry.
func topCount(data map[string]any) (string, int, bool) {
	for _, key := range []string{"by_type_counts", "categories"} {
		counts := countMap(data[key])
		if len(counts) == 0 {
			continue
		}
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		best, bestCount := "", -1
		for _, name := range names {
			if counts[name] > bestCount {
				best, bestCount = name, counts[name]
			}
		}
		return best, bestCount, true
	}
	return "", 0, false
}

func countMap(value any) map[string]int {
	switch v := value.(type) {
	case map[string]int:
		return v
	case map[string]any:
		out := make(map[string]int, len(v))
		for name, raw := range v {
			if n, ok := asInt(raw); ok {
				out[name] = n
			}
		}
		return out
	}
	return nil
}

func topAllocation(allocation map[string]any) (string, float64) {
	names := make([]string, 0, len(allocation))
	for name := range allocation {
		names = append(names, name)
	}
	sort.Strings(names)
	best, bestPct := "", math.Inf(-1)
	for _, name := range names {
		if pct, ok := asFloat(allocation[name]); ok && pct > bestPct {
			best, bestPct = name, pct
		}
	}
	return best, bestPct
}

// formatCurrency renders a dollar amount with thousands grouping.
func formatCurrency(value float64) string {
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}
	raw := strconv.FormatFloat(value, 'f', 2, 64)
	parts := strings.SplitN(raw, ".", 2)
	intPart := parts[0]

	var grouped strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(digit)
	}
	return fmt.Sprintf("%s$%s.%s", sign, grouped.String(), parts[1])
}
