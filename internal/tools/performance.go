package tools

import (
	"context"

	"github.com/fyrsmithlabs/agentforge/internal/ghostfolio"
)

// performanceSummaryFields are the summary fields carried into the
// performance block, in the shape the dashboard shows.
var performanceSummaryFields = []string{
	"currentNetWorth",
	"currentValueInBaseCurrency",
	"netPerformance",
	"netPerformancePercentage",
	"netPerformancePercentageWithCurrencyEffect",
	"netPerformanceWithCurrencyEffect",
	"totalInvestment",
	"totalInvestmentValueWithCurrencyEffect",
}

// PerformanceTool reports portfolio performance from the details endpoint,
// the same source the dashboard renders, so the two always agree.
func PerformanceTool() Definition {
	return Definition{
		Name:        "analyze_portfolio_performance",
		Route:       "portfolio",
		Description: "Analyze overall portfolio performance: returns, gains, total value.",
		Schema: Schema{Params: []Param{{
			Name:     "time_period",
			Kind:     KindString,
			Enum:     dateRangeEnum(),
			Default:  "max",
			FailCode: ghostfolio.CodeInvalidTimePeriod,
		}}},
		Func: analyzePerformance,
	}
}

func analyzePerformance(ctx context.Context, client ghostfolio.Client, args Args) Result {
	timePeriod := args.String("time_period")
	meta := map[string]any{"source": "portfolio_performance", "time_period": timePeriod}

	details, err := client.PortfolioDetails(ctx)
	if err != nil {
		return upstreamFail(err, map[string]any{"time_period": timePeriod})
	}

	summary, _ := details["summary"].(map[string]any)
	performance := make(map[string]any, len(performanceSummaryFields))
	for _, field := range performanceSummaryFields {
		if value, ok := summary[field]; ok && value != nil {
			performance[field] = value
		} else {
			performance[field] = 0.0
		}
	}

	return OK(map[string]any{
		"performance": performance,
		"hasErrors":   false,
	}, meta)
}

func dateRangeEnum() []string {
	return []string{"1d", "wtd", "mtd", "ytd", "1y", "5y", "max"}
}
