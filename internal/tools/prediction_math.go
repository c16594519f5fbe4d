package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

const (
	kellyMaxFraction = 0.25

	kellyNote          = "Informational hint only. Not a recommendation."
	scenarioDisclaimer = "Hypothetical scenario for informational purposes only. " +
		"Not financial, tax, or legal advice. " +
		"Consult a qualified professional before making investment decisions."
)

// liquidityGradeThresholds pairs a grade with the minimum 24h volume and the
// maximum spread percentage that still earn it.
var liquidityGradeThresholds = []struct {
	grade     string
	minVolume float64
	maxSpread float64
}{
	{"A", 500_000, 2.0},
	{"B", 100_000, 5.0},
	{"C", 50_000, 10.0},
	{"D", 10_000, 20.0},
}

// impliedProbability converts a 0..1 market price to a probability percent.
func impliedProbability(price float64) float64 {
	clamped := math.Max(0.001, math.Min(0.999, price))
	return roundPct(clamped * 100)
}

// kellyFraction computes the Kelly criterion bet fraction, capped at 25% of
// bankroll. Degenerate inputs yield a zero hint rather than an error.
func kellyFraction(prob, odds, bankroll float64) map[string]any {
	zero := map[string]any{
		"fraction": 0.0, "amount": 0.0, "capped": false, "note": kellyNote,
	}
	if odds <= 0 || prob <= 0 || prob >= 1 || bankroll <= 0 {
		return zero
	}
	f := (prob*(odds+1) - 1) / odds
	if f <= 0 {
		return zero
	}
	capped := f > kellyMaxFraction
	f = math.Min(f, kellyMaxFraction)
	return map[string]any{
		"fraction": round4(f),
		"amount":   roundMoney(f * bankroll),
		"capped":   capped,
		"note":     kellyNote,
	}
}

// expectedValue computes the expected value of a binary bet.
func expectedValue(prob, payout, cost float64) map[string]any {
	if cost <= 0 {
		return map[string]any{"ev": 0.0, "ev_pct": 0.0, "profitable": false}
	}
	ev := (prob * payout) - ((1 - prob) * cost)
	return map[string]any{
		"ev":         roundMoney(ev),
		"ev_pct":     roundPct(ev / cost * 100),
		"profitable": ev > 0,
	}
}

// marketEfficiencyScore grades a market by bid-ask spread and 24h volume.
func marketEfficiencyScore(bid, ask, volume float64) map[string]any {
	spread := round4(ask - bid)
	midpoint := (bid + ask) / 2
	spreadPct := 0.0
	if midpoint > 0 {
		spreadPct = roundPct(spread / midpoint * 100)
	}
	grade := liquidityGrade(volume, spreadPct)
	rating := "inefficient"
	switch grade {
	case "A", "B":
		rating = "efficient"
	case "C":
		rating = "moderate"
	}
	return map[string]any{
		"spread":            spread,
		"spread_pct":        spreadPct,
		"midpoint":          round4(midpoint),
		"liquidity_grade":   grade,
		"efficiency_rating": rating,
	}
}

func liquidityGrade(volume, spreadPct float64) string {
	for _, t := range liquidityGradeThresholds {
		if volume >= t.minVolume && spreadPct <= t.maxSpread {
			return t.grade
		}
	}
	return "F"
}

// portfolioExposurePct is the share of net worth a position represents.
func portfolioExposurePct(positionValue, netWorth float64) float64 {
	if netWorth <= 0 {
		return 0
	}
	return roundPct(positionValue / netWorth * 100)
}

// predictionRiskLevel classifies exposure by concentration percentage.
func predictionRiskLevel(concentrationPct float64) string {
	switch {
	case concentrationPct < 5:
		return "low"
	case concentrationPct <= 15:
		return "moderate"
	default:
		return "high"
	}
}

// marketStringList decodes a Gamma list field, which arrives either as a JSON
// array or as a JSON-encoded string such as `["Yes", "No"]`.
func marketStringList(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case string:
		var out []string
		if err := json.Unmarshal([]byte(v), &out); err == nil {
			return out
		}
	}
	return nil
}

// marketFloatList decodes a Gamma numeric list field, tolerating string
// elements like "0.62".
func marketFloatList(value any) []float64 {
	var raw []any
	switch v := value.(type) {
	case []any:
		raw = v
	case string:
		if err := json.Unmarshal([]byte(v), &raw); err != nil {
			return nil
		}
	default:
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, item := range raw {
		switch n := item.(type) {
		case float64:
			out = append(out, n)
		case string:
			var f float64
			if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
				out = append(out, f)
			} else {
				out = append(out, 0)
			}
		default:
			out = append(out, 0)
		}
	}
	return out
}

// formatMarketSummary standardizes a raw Gamma market into the display shape
// shared by browse, trending, and compare.
func formatMarketSummary(market map[string]any) map[string]any {
	labels := marketStringList(market["outcomes"])
	prices := marketFloatList(market["outcomePrices"])

	outcomes := make([]map[string]any, 0, len(labels))
	impliedProbs := make([]float64, 0, len(labels))
	for i, label := range labels {
		price := 0.0
		if i < len(prices) {
			price = prices[i]
		}
		outcomes = append(outcomes, map[string]any{"label": label, "price": price})
		impliedProbs = append(impliedProbs, impliedProbability(price))
	}

	bid, _ := toFloat(market["bestBid"])
	ask, _ := toFloat(market["bestAsk"])
	volume, _ := toFloat(market["volume24hr"])
	active, _ := market["active"].(bool)

	summary := map[string]any{
		"question":              stringOr(market, "question", "Unknown"),
		"slug":                  stringOr(market, "slug", ""),
		"outcomes":              outcomes,
		"volume_24h":            volume,
		"category":              stringOr(market, "category", ""),
		"end_date":              stringOr(market, "endDate", ""),
		"active":                active,
		"implied_probabilities": impliedProbs,
		"liquidity_grade":       "N/A",
	}
	if bid > 0 && ask > 0 {
		efficiency := marketEfficiencyScore(bid, ask, volume)
		summary["liquidity_grade"] = efficiency["liquidity_grade"]
		summary["spread_pct"] = efficiency["spread_pct"]
	}
	return summary
}

// outcomePrice returns the price of the Yes or No side from a summary.
func outcomePrice(summary map[string]any, side string) float64 {
	outcomes, _ := summary["outcomes"].([]map[string]any)
	idx := 0
	if side == "No" {
		idx = 1
	}
	if idx >= len(outcomes) {
		return 0
	}
	price, _ := toFloat(outcomes[idx]["price"])
	return price
}

// scenarioHolding is one portfolio position as the scenario model consumes it.
type scenarioHolding struct {
	symbol        string
	assetClass    string
	value         float64
	investment    float64
	firstActivity string
}

// scenarioHoldings flattens the details holdings map, sorted by value
// descending so downstream consumers see a stable order.
func scenarioHoldings(positions map[string]map[string]any) []scenarioHolding {
	out := make([]scenarioHolding, 0, len(positions))
	for symbol, holding := range positions {
		value, ok := toFloat(holding["valueInBaseCurrency"])
		if !ok {
			value, _ = holdingValue(holding)
		}
		investment, _ := toFloat(holding["investment"])
		out = append(out, scenarioHolding{
			symbol:        symbol,
			assetClass:    stringOr(holding, "assetClass", "EQUITY"),
			value:         value,
			investment:    investment,
			firstActivity: stringOr(holding, "dateOfFirstActivity", ""),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].value != out[j].value {
			return out[i].value > out[j].value
		}
		return out[i].symbol < out[j].symbol
	})
	return out
}

// proRataLiquidation spreads a liquidation amount across holdings in
// proportion to value, with proportional cost basis per slice.
func proRataLiquidation(positions []scenarioHolding, amount float64) []map[string]any {
	totalValue := 0.0
	for _, h := range positions {
		totalValue += h.value
	}
	if totalValue <= 0 {
		return nil
	}

	var liquidations []map[string]any
	for _, h := range positions {
		if h.value <= 0 {
			continue
		}
		liquidated := h.value * (amount / totalValue)
		costBasis := h.investment * (liquidated / h.value)
		liquidations = append(liquidations, map[string]any{
			"symbol":           h.symbol,
			"liquidated_value": roundMoney(liquidated),
			"cost_basis":       roundMoney(costBasis),
			"gain":             roundMoney(liquidated - costBasis),
		})
	}
	return liquidations
}

// computeScenario models reallocating part of the portfolio into a binary
// prediction market: resolved amount, win and lose cases, post-trade
// allocation and drift, concentration, and a simplified tax estimate.
func computeScenario(
	netWorth float64,
	positions []scenarioHolding,
	market map[string]any,
	allocationMode string,
	allocationValue float64,
	price float64,
	incomeBracket string,
) map[string]any {
	var resolved float64
	switch allocationMode {
	case "percent":
		resolved = netWorth * allocationValue / 100
	case "all_in":
		resolved = netWorth
	default:
		resolved = allocationValue
	}
	resolved = roundMoney(math.Min(resolved, netWorth))

	shares := 0.0
	if price > 0 {
		shares = resolved / price
	}
	// Binary contract pays $1 per share on resolution.
	winPayout := roundMoney(shares)
	winNetGain := roundMoney(winPayout - resolved)
	loseNetLoss := roundMoney(-resolved)

	exPrediction := roundMoney(netWorth - resolved)
	winPostNW := roundMoney(exPrediction + winPayout)
	losePostNW := exPrediction
	winReturnPct := 0.0
	loseReturnPct := 0.0
	if netWorth > 0 {
		winReturnPct = roundPct(winNetGain / netWorth * 100)
		loseReturnPct = roundPct(loseNetLoss / netWorth * 100)
	}

	// The price is the implied win probability.
	odds := 0.0
	if price > 0 && price < 1 {
		odds = 1/price - 1
	}
	evResult := expectedValue(price, 1.0, price)
	kellyResult := kellyFraction(price, odds, netWorth)

	baseline := make(map[string]float64, len(assetClasses))
	for _, class := range assetClasses {
		baseline[class] = 0
	}
	for _, h := range positions {
		if netWorth > 0 {
			baseline[h.assetClass] = baseline[h.assetClass] + roundPct(h.value/netWorth*100)
		}
	}

	topHoldings := make([]map[string]any, 0, 5)
	for i, h := range positions {
		if i == 5 {
			break
		}
		weight := 0.0
		if netWorth > 0 {
			weight = roundPct(h.value / netWorth * 100)
		}
		topHoldings = append(topHoldings, map[string]any{
			"symbol": h.symbol, "value": h.value, "weight_pct": weight,
		})
	}

	postTrade := make(map[string]float64, len(baseline))
	for class, pct := range baseline {
		postTrade[class] = pct
	}
	if netWorth > 0 {
		scale := 1 - resolved/netWorth
		for class := range postTrade {
			postTrade[class] = roundPct(postTrade[class] * scale)
		}
		postTrade["ALTERNATIVE_INVESTMENT"] = roundPct(
			postTrade["ALTERNATIVE_INVESTMENT"] + resolved/netWorth*100)
	}

	target := targetAllocations["balanced"]
	drift := make(map[string]any, len(assetClasses))
	for _, class := range assetClasses {
		drift[class] = roundPct(math.Abs(postTrade[class] - target[class]))
	}

	preTradeMaxSingle := 0.0
	if netWorth > 0 {
		for _, h := range positions {
			if pct := roundPct(h.value / netWorth * 100); pct > preTradeMaxSingle {
				preTradeMaxSingle = pct
			}
		}
	}
	predictionPct := 0.0
	if netWorth > 0 {
		predictionPct = roundPct(resolved / netWorth * 100)
	}
	postTradeMaxSingle := predictionPct
	if netWorth > 0 {
		if remaining := preTradeMaxSingle * (1 - resolved/netWorth); remaining > postTradeMaxSingle {
			postTradeMaxSingle = remaining
		}
	}
	postTradeMaxSingle = roundPct(postTradeMaxSingle)

	concentrationFlag := predictionPct > concentrationThresholdPct
	level := predictionRiskLevel(predictionPct)

	complianceFlags := []map[string]any{}
	if concentrationFlag {
		complianceFlags = append(complianceFlags, map[string]any{
			"type": "CONCENTRATION_RISK",
			"description": fmt.Sprintf(
				"Prediction market position would be %.2f%% of portfolio.", predictionPct),
		})
	}
	riskFlags := []string{}
	if level == "high" {
		riskFlags = append(riskFlags, "HIGH_CONCENTRATION")
	}

	liquidations := proRataLiquidation(positions, resolved)
	totalGains := 0.0
	for _, l := range liquidations {
		if gain, ok := toFloat(l["gain"]); ok && gain > 0 {
			totalGains += gain
		}
	}

	holdingPeriod := "short_term"
	if len(positions) > 0 && positions[0].firstActivity != "" {
		if first, ok := parseActivityDate(positions[0].firstActivity); ok {
			if time.Since(first) > shortTermCutoffDays*24*time.Hour {
				holdingPeriod = "long_term"
			}
		}
	}

	rates, ok := taxRates[incomeBracket]
	if !ok {
		rates = taxRates["middle"]
	}
	liquidationRate := rates.shortTerm
	if holdingPeriod == "long_term" {
		liquidationRate = rates.longTerm
	}
	liquidationTax := roundMoney(totalGains * liquidationRate)
	winCaseTax := roundMoney(math.Max(winNetGain, 0) * rates.shortTerm)
	loseOffset := roundMoney(loseNetLoss * rates.shortTerm)

	return map[string]any{
		"action": "scenario",
		"market": map[string]any{
			"question":            stringOr(market, "question", "Unknown"),
			"slug":                stringOr(market, "slug", ""),
			"outcome_side":        "Yes",
			"outcome_price":       price,
			"implied_probability": impliedProbability(price),
		},
		"allocation": map[string]any{
			"mode":            allocationMode,
			"input_value":     allocationValue,
			"resolved_amount": resolved,
			"source":          "pro-rata liquidation",
		},
		"baseline": map[string]any{
			"net_worth":           netWorth,
			"allocation_by_class": visibleClasses(baseline),
			"top_holdings":        topHoldings,
		},
		"scenario_metrics": map[string]any{
			"post_trade_net_worth":          netWorth,
			"portfolio_value_ex_prediction": exPrediction,
			"prediction_position_value":     resolved,
			"win_case": map[string]any{
				"payout":                 winPayout,
				"net_gain":               winNetGain,
				"post_outcome_net_worth": winPostNW,
				"return_pct":             winReturnPct,
			},
			"lose_case": map[string]any{
				"payout":                 0.0,
				"net_loss":               loseNetLoss,
				"post_outcome_net_worth": losePostNW,
				"return_pct":             loseReturnPct,
			},
			"expected_value":         evResult,
			"break_even_probability": roundPct(price * 100),
			"kelly_hint":             kellyResult,
		},
		"risk_assessment": map[string]any{
			"concentration_impact": map[string]any{
				"pre_trade_max_single_pct":  preTradeMaxSingle,
				"post_trade_prediction_pct": predictionPct,
				"post_trade_max_single_pct": postTradeMaxSingle,
				"concentration_flag":        concentrationFlag,
			},
			"allocation_drift": map[string]any{
				"pre_trade":           visibleClasses(baseline),
				"post_trade":          visibleClasses(postTrade),
				"drift_from_balanced": drift,
			},
			"risk_level": level,
			"flags":      riskFlags,
		},
		"tax_estimate": map[string]any{
			"income_bracket": incomeBracket,
			"liquidation_tax": map[string]any{
				"estimated_gains": roundMoney(totalGains),
				"estimated_tax":   liquidationTax,
				"holding_period":  holdingPeriod,
				"rate_applied":    liquidationRate,
			},
			"win_case_tax": map[string]any{
				"prediction_gain": winNetGain,
				"holding_period":  "short_term",
				"estimated_tax":   winCaseTax,
				"rate_applied":    rates.shortTerm,
			},
			"lose_case_tax": map[string]any{
				"prediction_loss": loseNetLoss,
				"tax_offset":      loseOffset,
				"note":            "Loss may offset other capital gains.",
			},
		},
		"compliance_flags": complianceFlags,
		"disclaimer":       scenarioDisclaimer,
	}
}

// visibleClasses drops zero-weight classes from an allocation map, always
// keeping equity and the alternatives bucket visible.
func visibleClasses(byClass map[string]float64) map[string]any {
	out := map[string]any{}
	for class, pct := range byClass {
		if pct > 0 || class == "EQUITY" || class == "ALTERNATIVE_INVESTMENT" {
			out[class] = pct
		}
	}
	return out
}

func round4(value float64) float64 {
	return math.Round(value*10000) / 10000
}
