package tools

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fyrsmithlabs/agentforge/internal/ghostfolio"
)

const (
	// TaxYearFloor is the earliest tax year estimates are produced for.
	TaxYearFloor = 2020

	shortTermCutoffDays = 365
	taxDisclaimer       = "Simplified estimate using FIFO. Not financial advice."
)

// taxRates maps income bracket to short-term and long-term rates.
var taxRates = map[string]struct{ shortTerm, longTerm float64 }{
	"low":    {0.22, 0.00},
	"middle": {0.24, 0.15},
	"high":   {0.24, 0.20},
}

type taxActivity struct {
	symbol    string
	isSell    bool
	date      time.Time
	quantity  decimal.Decimal
	unitPrice decimal.Decimal
}

type buyLot struct {
	acquiredAt time.Time
	remaining  decimal.Decimal
	unitPrice  decimal.Decimal
}

type disposal struct {
	Symbol        string  `json:"symbol"`
	GainLoss      float64 `json:"gain_loss"`
	HoldingPeriod string  `json:"holding_period"`
	CostBasis     float64 `json:"cost_basis"`
	Proceeds      float64 `json:"proceeds"`
}

// TaxTool estimates capital gains tax for one year with FIFO lot matching.
func TaxTool() Definition {
	return Definition{
		Name:        "estimate_capital_gains_tax",
		Route:       "tax",
		Description: "Estimate annual capital gains tax using FIFO lot matching.",
		Schema: Schema{Params: []Param{
			{
				Name:     "tax_year",
				Kind:     KindInt,
				Default:  time.Now().Year(),
				FailCode: CodeInvalidTaxYear,
			},
			{
				Name:     "income_bracket",
				Kind:     KindString,
				Enum:     []string{"low", "middle", "high"},
				Default:  "middle",
				FailCode: CodeInvalidBracket,
			},
		}},
		Func: estimateCapitalGainsTax,
	}
}

func estimateCapitalGainsTax(ctx context.Context, client ghostfolio.Client, args Args) Result {
	taxYear := args.Int("tax_year")
	bracket := args.String("income_bracket")
	meta := map[string]any{
		"source":         "capital_gains_tax_estimator",
		"tax_year":       taxYear,
		"income_bracket": bracket,
	}
	failMeta := map[string]any{"tax_year": taxYear, "income_bracket": bracket}

	if taxYear < TaxYearFloor || taxYear > time.Now().Year() {
		return Fail(CodeInvalidTaxYear, failMeta)
	}
	rates, ok := taxRates[bracket]
	if !ok {
		return Fail(CodeInvalidBracket, failMeta)
	}

	// The full history is fetched regardless of tax year: lots bought in
	// earlier years must be consumable by sales inside the target year.
	payload, err := client.Orders(ctx, "")
	if err != nil {
		return upstreamFail(err, failMeta)
	}
	acts, ok := activities(payload)
	if !ok {
		return Fail(ghostfolio.CodeAPIError, failMeta)
	}

	disposals := matchLotsFIFO(normalizeTaxActivities(acts), taxYear)

	var shortTerm, longTerm []disposal
	for _, d := range disposals {
		if d.HoldingPeriod == "long_term" {
			longTerm = append(longTerm, d)
		} else {
			shortTerm = append(shortTerm, d)
		}
	}

	shortSummary := termSummary(rates.shortTerm, shortTerm)
	longSummary := termSummary(rates.longTerm, longTerm)
	combined := roundMoney(shortSummary["estimated_tax"].(float64) + longSummary["estimated_tax"].(float64))

	perAsset := make([]map[string]any, 0, len(disposals))
	for _, d := range disposals {
		perAsset = append(perAsset, map[string]any{
			"symbol":         d.Symbol,
			"gain_loss":      d.GainLoss,
			"holding_period": d.HoldingPeriod,
			"cost_basis":     d.CostBasis,
			"proceeds":       d.Proceeds,
		})
	}

	return OK(map[string]any{
		"tax_year":           taxYear,
		"income_bracket":     bracket,
		"short_term":         shortSummary,
		"long_term":          longSummary,
		"combined_liability": combined,
		"per_asset":          perAsset,
		"disclaimer":         taxDisclaimer,
	}, meta)
}

// normalizeTaxActivities keeps BUY and SELL records with a symbol, parseable
// date, positive quantity, and non-negative unit price. Anything else is
// silently dropped.
func normalizeTaxActivities(acts []map[string]any) []taxActivity {
	out := make([]taxActivity, 0, len(acts))
	for _, activity := range acts {
		actType, _ := activity["type"].(string)
		if actType != "BUY" && actType != "SELL" {
			continue
		}
		symbol := activitySymbol(activity)
		if symbol == "" {
			continue
		}
		date, ok := parseActivityDate(activity["date"])
		if !ok {
			continue
		}
		quantity, ok := toFloat(activity["quantity"])
		if !ok || quantity <= 0 {
			continue
		}
		unitPrice, ok := toFloat(activity["unitPrice"])
		if !ok || unitPrice < 0 {
			continue
		}
		out = append(out, taxActivity{
			symbol:    symbol,
			isSell:    actType == "SELL",
			date:      date,
			quantity:  decimal.NewFromFloat(quantity),
			unitPrice: decimal.NewFromFloat(unitPrice),
		})
	}
	return out
}

// matchLotsFIFO consumes sell quantity against the oldest open buy lots per
// symbol. Every disposal across the history advances lot state; only
// disposals dated inside taxYear are reported.
func matchLotsFIFO(acts []taxActivity, taxYear int) []disposal {
	bySymbol := make(map[string][]taxActivity)
	for _, act := range acts {
		bySymbol[act.symbol] = append(bySymbol[act.symbol], act)
	}
	symbols := make([]string, 0, len(bySymbol))
	for symbol := range bySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var reported []disposal
	for _, symbol := range symbols {
		ordered := bySymbol[symbol]
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].date.Before(ordered[j].date)
		})

		var lots []buyLot
		for _, act := range ordered {
			if !act.isSell {
				lots = append(lots, buyLot{
					acquiredAt: act.date,
					remaining:  act.quantity,
					unitPrice:  act.unitPrice,
				})
				continue
			}

			toMatch := act.quantity
			for toMatch.IsPositive() && len(lots) > 0 {
				oldest := &lots[0]
				matched := decimal.Min(toMatch, oldest.remaining)
				costBasis := matched.Mul(oldest.unitPrice)
				proceeds := matched.Mul(act.unitPrice)

				oldest.remaining = oldest.remaining.Sub(matched)
				toMatch = toMatch.Sub(matched)
				acquiredAt := oldest.acquiredAt
				if !oldest.remaining.IsPositive() {
					lots = lots[1:]
				}

				if act.date.Year() != taxYear {
					continue
				}

				holdingDays := int(act.date.Sub(acquiredAt).Hours() / 24)
				period := "short_term"
				if holdingDays > shortTermCutoffDays {
					period = "long_term"
				}
				gainLoss, _ := proceeds.Sub(costBasis).Round(2).Float64()
				basis, _ := costBasis.Round(2).Float64()
				gross, _ := proceeds.Round(2).Float64()
				reported = append(reported, disposal{
					Symbol:        symbol,
					GainLoss:      gainLoss,
					HoldingPeriod: period,
					CostBasis:     basis,
					Proceeds:      gross,
				})
			}
		}
	}
	return reported
}

// termSummary totals one holding-period bucket. Losses reduce the bucket net
// but a negative net is never taxed and never offsets the other bucket.
func termSummary(rate float64, entries []disposal) map[string]any {
	gains := decimal.Zero
	losses := decimal.Zero
	for _, entry := range entries {
		value := decimal.NewFromFloat(entry.GainLoss)
		if value.IsPositive() {
			gains = gains.Add(value)
		} else if value.IsNegative() {
			losses = losses.Add(value)
		}
	}
	net := gains.Add(losses)
	taxable := decimal.Max(net, decimal.Zero)
	estimated := taxable.Mul(decimal.NewFromFloat(rate))

	gainsF, _ := gains.Round(2).Float64()
	lossesF, _ := losses.Round(2).Float64()
	netF, _ := net.Round(2).Float64()
	estimatedF, _ := estimated.Round(2).Float64()
	return map[string]any{
		"total_gains":   gainsF,
		"total_losses":  lossesF,
		"net":           netF,
		"estimated_tax": estimatedF,
		"rate_applied":  rate,
	}
}

func roundMoney(value float64) float64 {
	out, _ := decimal.NewFromFloat(value).Round(2).Float64()
	return out
}
