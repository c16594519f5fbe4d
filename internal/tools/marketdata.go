package tools

import (
	"context"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/agentforge/internal/ghostfolio"
)

var validMetrics = map[string]bool{
	"price": true, "change": true, "change_percent": true,
	"currency": true, "market_value": true, "quantity": true, "all": true,
}

var defaultMetrics = []string{"price", "change", "change_percent", "currency", "market_value"}

const marketDataDisclaimer = "Market data sourced from Ghostfolio portfolio. Prices may be delayed."

// MarketDataTool reports current prices and metrics for portfolio holdings.
func MarketDataTool() Definition {
	return Definition{
		Name:        "get_market_data",
		Route:       "market",
		Description: "Fetch current prices and market metrics for portfolio holdings.",
		Schema: Schema{Params: []Param{
			{Name: "symbols", Kind: KindStringList},
			{Name: "metrics", Kind: KindStringList},
		}},
		Func: getMarketData,
	}
}

func getMarketData(ctx context.Context, client ghostfolio.Client, args Args) Result {
	metrics := args.StringList("metrics")
	if len(metrics) == 0 {
		metrics = defaultMetrics
	}
	for _, m := range metrics {
		if !validMetrics[m] {
			return Fail(CodeInvalidMetric, map[string]any{"requested_metric": m})
		}
	}

	details, err := client.PortfolioDetails(ctx)
	if err != nil {
		return upstreamFail(err, nil)
	}
	positions := holdings(details)
	if len(positions) == 0 {
		return Fail(CodeEmptyPortfolio, nil)
	}

	wanted := map[string]bool{}
	for _, s := range args.StringList("symbols") {
		if trimmed := strings.ToUpper(strings.TrimSpace(s)); trimmed != "" {
			wanted[trimmed] = true
		}
	}

	var results []map[string]any
	totalMarketValue := 0.0
	for symbol, holding := range positions {
		if len(wanted) > 0 && !wanted[strings.ToUpper(symbol)] {
			continue
		}
		results = append(results, extractHoldingMetrics(symbol, holding, metrics))
		if mv, ok := holdingValue(holding); ok {
			totalMarketValue += mv
		}
	}

	if len(results) == 0 {
		if len(wanted) > 0 {
			requested := make([]string, 0, len(wanted))
			for s := range wanted {
				requested = append(requested, s)
			}
			sort.Strings(requested)
			return Fail(CodeSymbolsNotFound, map[string]any{"requested_symbols": requested})
		}
		return Fail(CodeEmptyPortfolio, nil)
	}

	sort.Slice(results, func(i, j int) bool {
		return metricValue(results[i]) > metricValue(results[j])
	})

	return OK(map[string]any{
		"holdings":           results,
		"total_holdings":     len(results),
		"total_market_value": roundMoney(totalMarketValue),
		"metrics_requested":  metrics,
		"disclaimer":         marketDataDisclaimer,
	}, map[string]any{"source": "market_data"})
}

func extractHoldingMetrics(symbol string, holding map[string]any, metrics []string) map[string]any {
	use := map[string]bool{}
	for _, m := range metrics {
		use[m] = true
	}
	all := use["all"]

	entry := map[string]any{"symbol": symbol}
	if all || use["price"] {
		entry["price"] = firstFloat(holding, "marketPrice", "averagePrice", "unitPrice")
	}
	if all || use["change"] {
		entry["change"] = firstFloat(holding, "netPerformance")
	}
	if all || use["change_percent"] {
		var pct any
		if v, ok := toFloat(holding["netPerformancePercentage"]); ok {
			// Ghostfolio reports the ratio; present it as a percentage.
			if v >= -1 && v <= 100 {
				v = roundPct(v * 100)
			}
			pct = v
		}
		entry["change_percent"] = pct
	}
	if all || use["currency"] {
		currency, _ := holding["currency"].(string)
		if currency == "" {
			currency = "USD"
		}
		entry["currency"] = currency
	}
	if all || use["market_value"] {
		entry["market_value"] = firstFloat(holding, "value", "marketValue")
	}
	if all || use["quantity"] {
		entry["quantity"] = firstFloat(holding, "quantity")
	}

	name, _ := holding["name"].(string)
	if name == "" {
		name = symbol
	}
	entry["name"] = name
	entry["asset_class"] = stringOr(holding, "assetClass", "UNKNOWN")
	entry["asset_sub_class"] = stringOr(holding, "assetSubClass", "UNKNOWN")
	return entry
}

func holdingValue(holding map[string]any) (float64, bool) {
	if v, ok := toFloat(holding["value"]); ok {
		return v, true
	}
	return toFloat(holding["marketValue"])
}

// firstFloat returns the first numeric field found, or nil.
func firstFloat(holding map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := toFloat(holding[key]); ok {
			return v
		}
	}
	return nil
}

func stringOr(holding map[string]any, key, fallback string) string {
	if s, ok := holding[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func metricValue(entry map[string]any) float64 {
	v, _ := toFloat(entry["market_value"])
	return v
}
