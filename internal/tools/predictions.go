package tools

import (
	"context"
	"sort"

	"github.com/fyrsmithlabs/agentforge/internal/ghostfolio"
)

// Reason codes specific to prediction market exploration.
const (
	CodeNoMarketsFound         = "NO_MARKETS_FOUND"
	CodeMarketNotFound         = "MARKET_NOT_FOUND"
	CodeMarketInactive         = "MARKET_INACTIVE"
	CodeInvalidSimAmount       = "INVALID_SIMULATION_AMOUNT"
	CodeInvalidComparisonCount = "INVALID_COMPARISON_COUNT"
	CodeInvalidAllocationMode  = "INVALID_ALLOCATION_MODE"
	CodeInvalidAllocationValue = "INVALID_ALLOCATION_VALUE"
	CodeUnsupportedHorizon     = "UNSUPPORTED_HORIZON"
	CodePolymarketTimeout      = "POLYMARKET_TIMEOUT"
	CodePolymarketAPIError     = "POLYMARKET_API_ERROR"
)

const predictionDisclaimer = "Prediction market data sourced from Polymarket via Gamma API. Not financial advice."

var predictionActions = []string{
	"browse", "search", "analyze", "positions", "simulate", "trending", "compare", "scenario",
}

// PredictionMarketsTool browses, analyzes, and models Polymarket prediction
// markets against the portfolio.
func PredictionMarketsTool() Definition {
	return Definition{
		Name:        "explore_prediction_markets",
		Route:       "prediction",
		Description: "Browse, search, analyze, simulate, compare, or model prediction markets.",
		Schema: Schema{Params: []Param{
			{Name: "action", Kind: KindString, Enum: predictionActions, Default: "browse"},
			{Name: "query", Kind: KindString},
			{Name: "category", Kind: KindString},
			{Name: "market_slug", Kind: KindString},
			{Name: "amount", Kind: KindFloat, FailCode: CodeInvalidSimAmount},
			{Name: "outcome", Kind: KindString},
			{Name: "market_slugs", Kind: KindStringList, FailCode: CodeInvalidComparisonCount},
			{
				Name:     "allocation_mode",
				Kind:     KindString,
				Enum:     []string{"fixed", "percent", "all_in"},
				FailCode: CodeInvalidAllocationMode,
			},
			{Name: "allocation_value", Kind: KindFloat, FailCode: CodeInvalidAllocationValue},
			{
				Name:     "time_horizon",
				Kind:     KindString,
				Enum:     []string{"1m", "3m", "6m", "1y"},
				FailCode: CodeUnsupportedHorizon,
			},
			{Name: "income_bracket", Kind: KindString, Enum: []string{"low", "middle", "high"}},
		}},
		Func: explorePredictionMarkets,
	}
}

func explorePredictionMarkets(ctx context.Context, client ghostfolio.Client, args Args) Result {
	switch args.String("action") {
	case "positions":
		return predictionPositions(ctx, client)
	case "analyze":
		if slug := args.String("market_slug"); slug != "" {
			return predictionAnalyze(ctx, client, slug)
		}
		return predictionBrowse(ctx, client, args)
	case "simulate":
		return predictionSimulate(ctx, client, args)
	case "trending":
		return predictionTrending(ctx, client, args.String("category"))
	case "compare":
		return predictionCompare(ctx, client, args.StringList("market_slugs"))
	case "scenario":
		return predictionScenario(ctx, client, args)
	default:
		return predictionBrowse(ctx, client, args)
	}
}

// marketFail translates a Gamma transport failure into the tool's reason
// codes: timeouts keep their own code, everything else is an API error.
func marketFail(err error, meta map[string]any) Result {
	if meta == nil {
		meta = map[string]any{}
	}
	if ghostfolio.CodeOf(err) == ghostfolio.CodeAPITimeout {
		return Fail(CodePolymarketTimeout, meta)
	}
	meta["detail"] = err.Error()
	return Fail(CodePolymarketAPIError, meta)
}

func predictionBrowse(ctx context.Context, client ghostfolio.Client, args Args) Result {
	query := args.String("query")
	markets, err := client.PredictionMarkets(ctx, query, args.String("category"))
	if err != nil {
		return marketFail(err, nil)
	}
	if len(markets) == 0 {
		return Fail(CodeNoMarketsFound, nil)
	}

	formatted := make([]map[string]any, 0, len(markets))
	for _, m := range markets {
		formatted = append(formatted, formatMarketSummary(m))
	}
	action := "browse"
	if query != "" {
		action = "search"
	}
	return OK(map[string]any{
		"markets":       formatted,
		"total_markets": len(formatted),
		"action":        action,
		"disclaimer":    predictionDisclaimer,
	}, map[string]any{"source": "prediction_markets"})
}

func predictionAnalyze(ctx context.Context, client ghostfolio.Client, slug string) Result {
	market, err := client.PredictionMarket(ctx, slug)
	if err != nil {
		return marketFail(err, map[string]any{"slug": slug})
	}
	if market == nil {
		return Fail(CodeMarketNotFound, map[string]any{"slug": slug})
	}

	summary := formatMarketSummary(market)
	bid, _ := toFloat(market["bestBid"])
	ask, _ := toFloat(market["bestAsk"])
	volume, _ := toFloat(market["volume24hr"])

	yesPrice := outcomePrice(summary, "Yes")
	prob := clampProb(yesPrice)
	odds := 0.0
	if prob > 0 && prob < 1 {
		odds = 1/prob - 1
	}

	efficiency := map[string]any{
		"spread": 0.0, "spread_pct": 0.0, "midpoint": 0.0,
		"liquidity_grade": "N/A", "efficiency_rating": "unknown",
	}
	if bid > 0 && ask > 0 {
		efficiency = marketEfficiencyScore(bid, ask, volume)
	}

	return OK(map[string]any{
		"question":              summary["question"],
		"slug":                  summary["slug"],
		"description":           stringOr(market, "description", ""),
		"outcomes":              summary["outcomes"],
		"volume_24h":            summary["volume_24h"],
		"category":              summary["category"],
		"end_date":              summary["end_date"],
		"active":                summary["active"],
		"implied_probabilities": summary["implied_probabilities"],
		"best_bid":              bid,
		"best_ask":              ask,
		"ev_analysis":           expectedValue(prob, 1.0, prob),
		"kelly_hint":            kellyFraction(prob, odds, 10000), // normalized to a $10k bankroll
		"market_efficiency":     efficiency,
		"action":                "analyze",
		"disclaimer":            predictionDisclaimer,
	}, map[string]any{"source": "prediction_markets"})
}

func predictionPositions(ctx context.Context, client ghostfolio.Client) Result {
	positions, err := client.PredictionPositions(ctx)
	if err != nil {
		return marketFail(err, nil)
	}
	if len(positions) == 0 {
		return OK(map[string]any{
			"positions":       []map[string]any{},
			"total_positions": 0,
			"exposure_pct":    0.0,
			"action":          "positions",
			"disclaimer":      "No Polymarket positions found.",
		}, map[string]any{"source": "prediction_markets"})
	}

	netWorth := portfolioNetWorth(ctx, client)

	formatted := make([]map[string]any, 0, len(positions))
	totalValue := 0.0
	for _, p := range positions {
		currentPrice, _ := toFloat(p["outcomePrice"])
		entryPrice, ok := toFloat(p["entryPrice"])
		if !ok {
			entryPrice = currentPrice
		}
		quantity, _ := toFloat(p["quantity"])
		pnl := roundMoney((currentPrice - entryPrice) * quantity)
		pnlPct := 0.0
		if entryPrice > 0 {
			pnlPct = roundPct((currentPrice - entryPrice) / entryPrice * 100)
		}
		totalValue += currentPrice * quantity

		formatted = append(formatted, map[string]any{
			"id":                 stringOr(p, "id", ""),
			"slug":               stringOr(p, "slug", ""),
			"question":           stringOr(p, "question", ""),
			"outcome":            stringOr(p, "outcome", ""),
			"entry_price":        entryPrice,
			"current_price":      currentPrice,
			"quantity":           quantity,
			"unrealized_pnl":     pnl,
			"unrealized_pnl_pct": pnlPct,
			"date":               stringOr(p, "date", ""),
		})
	}

	return OK(map[string]any{
		"positions":       formatted,
		"total_positions": len(formatted),
		"exposure_pct":    portfolioExposurePct(totalValue, netWorth),
		"action":          "positions",
		"disclaimer":      "Polymarket position data from your portfolio.",
	}, map[string]any{"source": "prediction_markets"})
}

func predictionSimulate(ctx context.Context, client ghostfolio.Client, args Args) Result {
	amount := args.Float("amount")
	if amount <= 0 {
		return Fail(CodeInvalidSimAmount, nil)
	}

	slug, fail := resolveMarketSlug(ctx, client, args)
	if fail != nil {
		return *fail
	}
	market, err := client.PredictionMarket(ctx, slug)
	if err != nil {
		return marketFail(err, map[string]any{"slug": slug})
	}
	if market == nil {
		return Fail(CodeMarketNotFound, map[string]any{"slug": slug})
	}
	if active, _ := market["active"].(bool); !active {
		return Fail(CodeMarketInactive, map[string]any{"slug": slug})
	}

	summary := formatMarketSummary(market)
	side := outcomeSide(args.String("outcome"))
	price := outcomePrice(summary, side)
	if price <= 0 {
		return Fail(CodeMarketNotFound, map[string]any{"slug": slug})
	}

	prob := clampProb(price)
	odds := 0.0
	if prob > 0 && prob < 1 {
		odds = 1/prob - 1
	}
	shares := amount / price

	netWorth := portfolioNetWorth(ctx, client)
	concentrationPct := portfolioExposurePct(amount, netWorth)

	return OK(map[string]any{
		"market":                      map[string]any{"question": summary["question"], "slug": summary["slug"]},
		"outcome":                     side,
		"amount":                      amount,
		"potential_profit":            roundMoney(shares - amount),
		"potential_loss":              roundMoney(-amount),
		"ev_analysis":                 expectedValue(prob, 1.0, price),
		"kelly_hint":                  kellyFraction(prob, odds, amount*10), // 10x amount as a bankroll proxy
		"portfolio_concentration_pct": concentrationPct,
		"risk_level":                  predictionRiskLevel(concentrationPct),
		"action":                      "simulate",
		"disclaimer":                  "Hypothetical simulation for informational purposes only. Not financial advice.",
	}, map[string]any{"source": "prediction_markets"})
}

func predictionTrending(ctx context.Context, client ghostfolio.Client, category string) Result {
	markets, err := client.PredictionMarkets(ctx, "", category)
	if err != nil {
		return marketFail(err, nil)
	}
	if len(markets) == 0 {
		return Fail(CodeNoMarketsFound, nil)
	}

	sort.SliceStable(markets, func(i, j int) bool {
		vi, _ := toFloat(markets[i]["volume24hr"])
		vj, _ := toFloat(markets[j]["volume24hr"])
		return vi > vj
	})
	if len(markets) > 10 {
		markets = markets[:10]
	}
	formatted := make([]map[string]any, 0, len(markets))
	for _, m := range markets {
		formatted = append(formatted, formatMarketSummary(m))
	}

	return OK(map[string]any{
		"trending_markets": formatted,
		"total":            len(formatted),
		"sort_by":          "volume_24h",
		"action":           "trending",
		"disclaimer":       predictionDisclaimer,
	}, map[string]any{"source": "prediction_markets"})
}

var liquidityGradeRank = map[string]int{"A": 0, "B": 1, "C": 2, "D": 3, "F": 4, "N/A": 5}

func predictionCompare(ctx context.Context, client ghostfolio.Client, slugs []string) Result {
	if len(slugs) < 2 || len(slugs) > 3 {
		return Fail(CodeInvalidComparisonCount, map[string]any{"slugs": slugs})
	}

	summaries := make([]map[string]any, 0, len(slugs))
	for _, slug := range slugs {
		market, err := client.PredictionMarket(ctx, slug)
		if err != nil {
			return marketFail(err, map[string]any{"slug": slug})
		}
		if market == nil {
			return Fail(CodeMarketNotFound, map[string]any{"slug": slug})
		}
		summary := formatMarketSummary(market)
		bid, _ := toFloat(market["bestBid"])
		ask, _ := toFloat(market["bestAsk"])
		volume, _ := toFloat(market["volume24hr"])
		if bid > 0 && ask > 0 {
			summary["market_efficiency"] = marketEfficiencyScore(bid, ask, volume)
		}
		summaries = append(summaries, summary)
	}

	spreadWinner := summaries[0]
	volumeWinner := summaries[0]
	efficiencyWinner := summaries[0]
	for _, s := range summaries[1:] {
		if compareSpreadPct(s) < compareSpreadPct(spreadWinner) {
			spreadWinner = s
		}
		if compareVolume(s) > compareVolume(volumeWinner) {
			volumeWinner = s
		}
		if compareGradeRank(s) < compareGradeRank(efficiencyWinner) {
			efficiencyWinner = s
		}
	}

	return OK(map[string]any{
		"markets": summaries,
		"comparison_matrix": map[string]any{
			"spread_winner":     spreadWinner["slug"],
			"volume_winner":     volumeWinner["slug"],
			"efficiency_winner": efficiencyWinner["slug"],
		},
		"action":     "compare",
		"disclaimer": predictionDisclaimer,
	}, map[string]any{"source": "prediction_markets"})
}

func predictionScenario(ctx context.Context, client ghostfolio.Client, args Args) Result {
	mode := args.String("allocation_mode")
	if mode == "" {
		return Fail(CodeInvalidAllocationMode, nil)
	}
	value := args.Float("allocation_value")
	if mode != "all_in" && value <= 0 {
		return Fail(CodeInvalidAllocationValue, nil)
	}

	slug, fail := resolveMarketSlug(ctx, client, args)
	if fail != nil {
		return *fail
	}
	market, err := client.PredictionMarket(ctx, slug)
	if err != nil {
		return marketFail(err, map[string]any{"slug": slug})
	}
	if market == nil {
		return Fail(CodeMarketNotFound, map[string]any{"slug": slug})
	}
	if active, _ := market["active"].(bool); !active {
		return Fail(CodeMarketInactive, map[string]any{"slug": slug})
	}

	summary := formatMarketSummary(market)
	side := outcomeSide(args.String("outcome"))
	price := outcomePrice(summary, side)
	if price <= 0 {
		return Fail(CodeMarketNotFound, map[string]any{"slug": slug})
	}

	details, err := client.PortfolioDetails(ctx)
	if err != nil {
		return upstreamFail(err, nil)
	}
	netWorth := summaryNetWorth(details)
	if netWorth <= 0 {
		return Fail(CodeEmptyPortfolio, nil)
	}
	positions := scenarioHoldings(holdings(details))

	bracket := args.String("income_bracket")
	if bracket == "" {
		bracket = "middle"
	}
	switch mode {
	case "all_in":
		value = 100
	case "percent":
		if value > 100 {
			return Fail(CodeInvalidAllocationValue, map[string]any{"allocation_value": value})
		}
	case "fixed":
		if value > netWorth {
			return Fail(CodeInvalidAllocationValue, map[string]any{"allocation_value": value})
		}
	}

	result := computeScenario(netWorth, positions, market, mode, value, price, bracket)
	result["market"].(map[string]any)["outcome_side"] = side
	return OK(result, map[string]any{"source": "prediction_markets"})
}

// resolveMarketSlug prefers an explicit slug, falling back to the
// highest-volume search match for the query.
func resolveMarketSlug(ctx context.Context, client ghostfolio.Client, args Args) (string, *Result) {
	if slug := args.String("market_slug"); slug != "" {
		return slug, nil
	}
	query := args.String("query")
	if query == "" {
		fail := Fail(CodeMarketNotFound, nil)
		return "", &fail
	}
	markets, err := client.PredictionMarkets(ctx, query, "")
	if err != nil {
		fail := marketFail(err, nil)
		return "", &fail
	}
	if len(markets) == 0 {
		fail := Fail(CodeMarketNotFound, map[string]any{"query": query})
		return "", &fail
	}
	best := markets[0]
	bestVolume, _ := toFloat(best["volume24hr"])
	for _, m := range markets[1:] {
		if v, _ := toFloat(m["volume24hr"]); v > bestVolume {
			best, bestVolume = m, v
		}
	}
	return stringOr(best, "slug", ""), nil
}

// portfolioNetWorth reads the dashboard net worth, treating upstream failure
// as zero so exposure metrics degrade instead of failing the action.
func portfolioNetWorth(ctx context.Context, client ghostfolio.Client) float64 {
	details, err := client.PortfolioDetails(ctx)
	if err != nil {
		return 0
	}
	return summaryNetWorth(details)
}

func summaryNetWorth(details map[string]any) float64 {
	summary, _ := details["summary"].(map[string]any)
	if v, ok := toFloat(summary["currentValueInBaseCurrency"]); ok && v > 0 {
		return v
	}
	v, _ := toFloat(summary["currentNetWorth"])
	return v
}

func outcomeSide(outcome string) string {
	if outcome == "No" || outcome == "no" || outcome == "NO" {
		return "No"
	}
	return "Yes"
}

func clampProb(price float64) float64 {
	if price < 0.001 {
		return 0.001
	}
	if price > 0.999 {
		return 0.999
	}
	return price
}

func compareSpreadPct(summary map[string]any) float64 {
	eff, ok := summary["market_efficiency"].(map[string]any)
	if !ok {
		return 999
	}
	v, _ := toFloat(eff["spread_pct"])
	return v
}

func compareVolume(summary map[string]any) float64 {
	v, _ := toFloat(summary["volume_24h"])
	return v
}

func compareGradeRank(summary map[string]any) int {
	eff, ok := summary["market_efficiency"].(map[string]any)
	if !ok {
		return liquidityGradeRank["N/A"]
	}
	grade, _ := eff["liquidity_grade"].(string)
	if rank, ok := liquidityGradeRank[grade]; ok {
		return rank
	}
	return liquidityGradeRank["F"]
}
