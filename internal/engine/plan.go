package engine

import "strings"

// planTrigger binds a query phrase to an ordered tool sequence.
type planTrigger struct {
	phrases []string
	tools   []string
}

// Trigger order matters: the first phrase match wins.
var planTriggers = []planTrigger{
	{
		phrases: []string{"health check", "full analysis"},
		tools:   []string{"analyze_portfolio_performance", "advise_asset_allocation", "check_compliance"},
	},
	{
		phrases: []string{"complete review"},
		tools:   []string{"analyze_portfolio_performance", "categorize_transactions", "estimate_capital_gains_tax"},
	},
	{
		phrases: []string{"portfolio overview"},
		tools:   []string{"analyze_portfolio_performance", "advise_asset_allocation"},
	},
	{
		phrases: []string{"tax and compliance"},
		tools:   []string{"estimate_capital_gains_tax", "check_compliance"},
	},
}

// detectPlan returns the multi-step plan a composite query triggers, or nil
// for single-tool queries. Matching is case-insensitive phrase containment
// and takes priority over clarify.
func detectPlan(query string) []PlanStep {
	lowered := strings.ToLower(query)
	for _, trigger := range planTriggers {
		for _, phrase := range trigger.phrases {
			if !strings.Contains(lowered, phrase) {
				continue
			}
			plan := make([]PlanStep, 0, len(trigger.tools))
			for _, tool := range trigger.tools {
				route, _ := toolRoute(tool)
				plan = append(plan, PlanStep{
					Route: route,
					Tool:  tool,
					Args:  defaultArgsForTool(tool, query),
				})
			}
			return plan
		}
	}
	return nil
}
