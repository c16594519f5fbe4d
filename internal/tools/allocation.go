package tools

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/agentforge/internal/ghostfolio"
)

var assetClasses = []string{
	"EQUITY",
	"FIXED_INCOME",
	"LIQUIDITY",
	"COMMODITY",
	"REAL_ESTATE",
	"ALTERNATIVE_INVESTMENT",
}

// targetAllocations are deterministic model portfolios by risk profile, in
// percent per asset class.
var targetAllocations = map[string]map[string]float64{
	"conservative": {"EQUITY": 40, "FIXED_INCOME": 50, "LIQUIDITY": 10},
	"balanced":     {"EQUITY": 60, "FIXED_INCOME": 30, "LIQUIDITY": 10},
	"aggressive":   {"EQUITY": 80, "FIXED_INCOME": 15, "LIQUIDITY": 5},
}

const (
	concentrationThresholdPct = 25.0
	allocationDisclaimer      = "Analysis for informational purposes only. Not financial advice."
)

// AllocationTool compares current allocation against a target risk profile.
func AllocationTool() Definition {
	return Definition{
		Name:        "advise_asset_allocation",
		Route:       "allocation",
		Description: "Compare current asset allocation against a target risk profile.",
		Schema: Schema{Params: []Param{{
			Name:     "target_profile",
			Kind:     KindString,
			Enum:     []string{"conservative", "balanced", "aggressive"},
			Default:  "balanced",
			FailCode: CodeInvalidTargetProfile,
		}}},
		Func: adviseAssetAllocation,
	}
}

func adviseAssetAllocation(ctx context.Context, client ghostfolio.Client, args Args) Result {
	profile := args.String("target_profile")
	meta := map[string]any{"source": "allocation_advisor", "target_profile": profile}
	failMeta := map[string]any{"target_profile": profile}

	details, err := client.PortfolioDetails(ctx)
	if err != nil {
		return upstreamFail(err, failMeta)
	}
	positions := holdings(details)
	if len(positions) == 0 {
		return Fail(CodeEmptyPortfolio, failMeta)
	}

	current, warnings := aggregateAllocation(positions)

	target := make(map[string]any, len(assetClasses))
	drift := make(map[string]any, len(assetClasses))
	type driftEntry struct {
		class string
		value float64
	}
	var overweights, underweights []driftEntry
	for _, class := range assetClasses {
		targetPct := targetAllocations[profile][class]
		delta := roundPct(current[class].(float64) - targetPct)
		target[class] = targetPct
		drift[class] = delta
		if delta > 0 {
			overweights = append(overweights, driftEntry{class, delta})
		} else if delta < 0 {
			underweights = append(underweights, driftEntry{class, delta})
		}
	}
	sort.Slice(overweights, func(i, j int) bool {
		if overweights[i].value != overweights[j].value {
			return overweights[i].value > overweights[j].value
		}
		return overweights[i].class < overweights[j].class
	})
	sort.Slice(underweights, func(i, j int) bool {
		if underweights[i].value != underweights[j].value {
			return underweights[i].value < underweights[j].value
		}
		return underweights[i].class < underweights[j].class
	})

	var suggestions []string
	if len(overweights) > 0 {
		suggestions = append(suggestions, fmt.Sprintf(
			"Consider trimming %s by about %.2f%% to align with the %s profile.",
			formatAssetClass(overweights[0].class), overweights[0].value, profile))
	}
	if len(underweights) > 0 {
		suggestions = append(suggestions, fmt.Sprintf(
			"Consider increasing %s by about %.2f%% to align with the %s profile.",
			formatAssetClass(underweights[0].class), -underweights[0].value, profile))
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions, "Current allocation is already close to the selected target profile.")
	}

	return OK(map[string]any{
		"target_profile":           profile,
		"current_allocation":       current,
		"target_allocation":        target,
		"drift":                    drift,
		"concentration_warnings":   warnings,
		"rebalancing_suggestions":  suggestions,
		"holdings_count":           len(positions),
		"disclaimer":               allocationDisclaimer,
	}, meta)
}

// aggregateAllocation sums per-holding allocation percentages by asset class
// and flags single positions above the concentration threshold. Totals that
// drift more than a point from 100 are renormalized.
func aggregateAllocation(positions map[string]map[string]any) (map[string]any, []map[string]any) {
	sums := make(map[string]float64, len(assetClasses))
	var warnings []map[string]any

	for symbol, holding := range positions {
		class, _ := holding["assetClass"].(string)
		pct := allocationPct(holding["allocationInPercentage"])

		if _, known := targetClass(class); known {
			sums[class] += pct
		} else {
			// Some data sources omit asset class; keep totals intact.
			sums["EQUITY"] += pct
		}

		if pct > concentrationThresholdPct {
			warnings = append(warnings, map[string]any{
				"symbol":           symbol,
				"pct_of_portfolio": roundPct(pct),
				"threshold":        concentrationThresholdPct,
			})
		}
	}

	total := 0.0
	for _, v := range sums {
		total += v
	}
	if total > 0 && math.Abs(total-100) > 1 {
		for class, v := range sums {
			sums[class] = v / total * 100
		}
	}

	current := make(map[string]any, len(assetClasses))
	for _, class := range assetClasses {
		current[class] = roundPct(sums[class])
	}

	sort.Slice(warnings, func(i, j int) bool {
		pi := warnings[i]["pct_of_portfolio"].(float64)
		pj := warnings[j]["pct_of_portfolio"].(float64)
		if pi != pj {
			return pi > pj
		}
		return warnings[i]["symbol"].(string) < warnings[j]["symbol"].(string)
	})
	return current, warnings
}

// allocationPct accepts either a 0..1 ratio or a percent value.
func allocationPct(value any) float64 {
	v, ok := toFloat(value)
	if !ok {
		return 0
	}
	if v >= 0 && v <= 1 {
		return v * 100
	}
	return v
}

func targetClass(class string) (string, bool) {
	for _, known := range assetClasses {
		if class == known {
			return class, true
		}
	}
	return "", false
}

func formatAssetClass(class string) string {
	words := strings.Split(strings.ToLower(class), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func roundPct(value float64) float64 {
	return math.Round(value*100) / 100
}
