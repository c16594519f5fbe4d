package tools

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fyrsmithlabs/agentforge/internal/ghostfolio"
)

var activityTypes = []string{"BUY", "SELL", "DIVIDEND", "FEE", "INTEREST", "LIABILITY"}

// TransactionsTool groups account activity by type with per-type totals.
func TransactionsTool() Definition {
	return Definition{
		Name:        "categorize_transactions",
		Route:       "transactions",
		Description: "Categorize transaction history by activity type with value totals.",
		Schema: Schema{Params: []Param{{
			Name:     "date_range",
			Kind:     KindString,
			Enum:     dateRangeEnum(),
			Default:  "max",
			FailCode: ghostfolio.CodeInvalidTimePeriod,
		}}},
		Func: categorizeTransactions,
	}
}

func categorizeTransactions(ctx context.Context, client ghostfolio.Client, args Args) Result {
	dateRange := args.String("date_range")
	meta := map[string]any{"source": "transaction_categorizer", "date_range": dateRange}

	payload, err := client.Orders(ctx, dateRange)
	if err != nil {
		return upstreamFail(err, map[string]any{"date_range": dateRange})
	}

	acts, ok := activities(payload)
	if !ok {
		return Fail(ghostfolio.CodeAPIError, map[string]any{"date_range": dateRange})
	}

	grouped := make(map[string][]map[string]any, len(activityTypes))
	for _, t := range activityTypes {
		grouped[t] = []map[string]any{}
	}
	for _, activity := range acts {
		t, _ := activity["type"].(string)
		if _, known := grouped[t]; known {
			grouped[t] = append(grouped[t], activity)
		}
	}

	counts := make(map[string]int, len(activityTypes))
	for _, t := range activityTypes {
		counts[t] = len(grouped[t])
	}

	data := map[string]any{
		"total_transactions": len(acts),
		"by_type":            grouped,
		"by_type_counts":     counts,
		"summary": map[string]any{
			"buy_total":       sumActivityValues(grouped["BUY"]),
			"sell_total":      sumActivityValues(grouped["SELL"]),
			"dividend_total":  sumActivityValues(grouped["DIVIDEND"]),
			"interest_total":  sumActivityValues(grouped["INTEREST"]),
			"fee_total":       sumActivityValues(grouped["FEE"]),
			"liability_total": sumActivityValues(grouped["LIABILITY"]),
		},
	}
	if count, ok := toFloat(payload["count"]); ok {
		data["reported_count"] = int(count)
	}

	return OK(data, meta)
}

// sumActivityValues totals a category with decimal arithmetic, rounded to
// cents once at the end.
func sumActivityValues(group []map[string]any) float64 {
	total := decimal.Zero
	for _, activity := range group {
		total = total.Add(decimal.NewFromFloat(activityValue(activity)))
	}
	value, _ := total.Round(2).Float64()
	return value
}
