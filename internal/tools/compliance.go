package tools

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fyrsmithlabs/agentforge/internal/ghostfolio"
)

const (
	washSaleWindowDays       = 30
	dayTradeThreshold        = 4
	dayTradeWindowDays       = 5
	complianceThresholdPct   = 25.0
	complianceDisclaimer     = "Informational screening only. Not legal or tax advice. " +
		"Consult a qualified professional for compliance decisions."
)

// ComplianceTool screens transactions and holdings for regulatory red flags.
func ComplianceTool() Definition {
	return Definition{
		Name:        "check_compliance",
		Route:       "compliance",
		Description: "Screen for wash sales, pattern day trading, and concentration risk.",
		Schema: Schema{Params: []Param{{
			Name:     "check_type",
			Kind:     KindString,
			Enum:     []string{"all", "wash_sale", "pattern_day_trading", "concentration"},
			Default:  "all",
			FailCode: CodeInvalidCheckType,
		}}},
		Func: checkCompliance,
	}
}

func checkCompliance(ctx context.Context, client ghostfolio.Client, args Args) Result {
	checkType := args.String("check_type")
	meta := map[string]any{"source": "compliance_checker", "check_type": checkType}
	failMeta := map[string]any{"check_type": checkType}

	violations := []map[string]any{}
	warnings := []map[string]any{}

	if checkType == "all" || checkType == "wash_sale" || checkType == "pattern_day_trading" {
		payload, err := client.Orders(ctx, "")
		if err != nil {
			return upstreamFail(err, failMeta)
		}
		acts, _ := activities(payload)

		if checkType == "all" || checkType == "wash_sale" {
			violations = append(violations, detectWashSales(acts)...)
		}
		if checkType == "all" || checkType == "pattern_day_trading" {
			warnings = append(warnings, detectPatternDayTrading(acts)...)
		}
	}

	if checkType == "all" || checkType == "concentration" {
		details, err := client.PortfolioDetails(ctx)
		if err != nil {
			return upstreamFail(err, failMeta)
		}
		warnings = append(warnings, detectConcentrationRisk(holdings(details))...)
	}

	return OK(map[string]any{
		"check_type":       checkType,
		"violations":       violations,
		"warnings":         warnings,
		"total_violations": len(violations),
		"total_warnings":   len(warnings),
		"disclaimer":       complianceDisclaimer,
	}, meta)
}

type tradeEvent struct {
	symbol string
	date   time.Time
}

// detectWashSales flags a sell followed by a repurchase of the same symbol
// within the 30-day window.
func detectWashSales(acts []map[string]any) []map[string]any {
	var sells, buys []tradeEvent
	for _, activity := range acts {
		actType, _ := activity["type"].(string)
		date, ok := parseActivityDate(activity["date"])
		if !ok {
			continue
		}
		event := tradeEvent{symbol: activitySymbol(activity), date: date}
		switch actType {
		case "SELL":
			sells = append(sells, event)
		case "BUY":
			buys = append(buys, event)
		}
	}

	var out []map[string]any
	for _, sell := range sells {
		for _, buy := range buys {
			if buy.symbol != sell.symbol {
				continue
			}
			daysBetween := int(buy.date.Sub(sell.date).Hours() / 24)
			if daysBetween > 0 && daysBetween <= washSaleWindowDays {
				out = append(out, map[string]any{
					"type":         "WASH_SALE",
					"symbol":       sell.symbol,
					"sell_date":    sell.date.Format("2006-01-02"),
					"rebuy_date":   buy.date.Format("2006-01-02"),
					"days_between": daysBetween,
					"description": fmt.Sprintf(
						"Sold %s on %s and repurchased on %s (%d days later, within %d-day window).",
						sell.symbol, sell.date.Format("2006-01-02"),
						buy.date.Format("2006-01-02"), daysBetween, washSaleWindowDays),
				})
			}
		}
	}
	return out
}

// detectPatternDayTrading flags 4 or more same-day round trips inside a
// rolling 5-day window. One warning is enough.
func detectPatternDayTrading(acts []map[string]any) []map[string]any {
	buys := map[string]int{}
	sells := map[string]int{}
	for _, activity := range acts {
		actType, _ := activity["type"].(string)
		if actType != "BUY" && actType != "SELL" {
			continue
		}
		date, ok := parseActivityDate(activity["date"])
		if !ok {
			continue
		}
		key := activitySymbol(activity) + "|" + date.Format("2006-01-02")
		if actType == "BUY" {
			buys[key]++
		} else {
			sells[key]++
		}
	}

	dayTradesByDate := map[string][]string{}
	for key, buyCount := range buys {
		if buyCount > 0 && sells[key] > 0 {
			symbol, dateStr := splitTradeKey(key)
			dayTradesByDate[dateStr] = append(dayTradesByDate[dateStr], symbol)
		}
	}

	dates := make([]string, 0, len(dayTradesByDate))
	for dateStr := range dayTradesByDate {
		dates = append(dates, dateStr)
	}
	sort.Strings(dates)

	for _, dateStr := range dates {
		windowEnd, _ := time.Parse("2006-01-02", dateStr)
		windowStart := windowEnd.AddDate(0, 0, -dayTradeWindowDays).Format("2006-01-02")

		count := 0
		symbolSet := map[string]bool{}
		for _, check := range dates {
			if check >= windowStart && check <= dateStr {
				count += len(dayTradesByDate[check])
				for _, s := range dayTradesByDate[check] {
					symbolSet[s] = true
				}
			}
		}
		if count >= dayTradeThreshold {
			symbols := make([]string, 0, len(symbolSet))
			for s := range symbolSet {
				symbols = append(symbols, s)
			}
			sort.Strings(symbols)
			return []map[string]any{{
				"type":                 "PATTERN_DAY_TRADING",
				"window_end":           dateStr,
				"day_trades_in_window": count,
				"symbols":              symbols,
				"description": fmt.Sprintf(
					"%d day trade(s) detected in the %d-day window ending %s. "+
						"FINRA flags accounts with %d+ day trades in 5 business days as pattern day traders.",
					count, dayTradeWindowDays, dateStr, dayTradeThreshold),
			}}
		}
	}
	return nil
}

func splitTradeKey(key string) (symbol, date string) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

// detectConcentrationRisk flags positions above the concentration threshold
// by share of total portfolio value.
func detectConcentrationRisk(positions map[string]map[string]any) []map[string]any {
	total := 0.0
	values := make(map[string]float64, len(positions))
	for symbol, holding := range positions {
		value, ok := toFloat(holding["value"])
		if !ok {
			value, _ = toFloat(holding["marketValue"])
		}
		values[symbol] = value
		total += value
	}
	if total <= 0 {
		return nil
	}

	var out []map[string]any
	for symbol, value := range values {
		pct := value / total * 100
		if pct > complianceThresholdPct {
			out = append(out, map[string]any{
				"type":             "CONCENTRATION",
				"symbol":           symbol,
				"pct_of_portfolio": roundPct(pct),
				"threshold":        complianceThresholdPct,
				"description": fmt.Sprintf(
					"%s represents %.1f%% of portfolio value, exceeding the %.0f%% concentration threshold.",
					symbol, pct, complianceThresholdPct),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["pct_of_portfolio"].(float64) > out[j]["pct_of_portfolio"].(float64)
	})
	return out
}
