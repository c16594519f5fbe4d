package engine

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/agentforge/internal/checkpoint"
)

// Decision is a routing outcome: either a tool route with arguments, or
// clarify.
type Decision struct {
	Route     string
	Tool      string
	Args      map[string]any
	Reasoning string
}

// Router classifies the latest user query into a route. Implementations may
// call an LLM; any failure falls back to the keyword router.
type Router interface {
	Route(ctx context.Context, query string, messages []checkpoint.Message) (Decision, error)
}

// RouteClarify is the non-tool route for ambiguous or out-of-scope queries.
const RouteClarify = "clarify"

var routeToTool = map[string]string{
	"portfolio":    "analyze_portfolio_performance",
	"transactions": "categorize_transactions",
	"tax":          "estimate_capital_gains_tax",
	"allocation":   "advise_asset_allocation",
	"compliance":   "check_compliance",
	"market":       "get_market_data",
	"prediction":   "explore_prediction_markets",
}

var routerIntents = map[string][]string{
	"portfolio": {
		"portfolio", "performance", "return", "gain", "loss", "how am i doing",
	},
	"transactions": {
		"transaction", "activity", "activities", "bought", "sold",
		"dividend", "fee", "interest", "order",
	},
	"tax": {
		"tax", "capital gains", "liability", "short term", "long term",
	},
	"allocation": {
		"allocation", "diversification", "diversified", "rebalancing",
		"re-balance", "overweight", "underweight",
	},
	"compliance": {
		"compliance", "wash sale", "pattern day trad", "regulation",
		"violation", "day trade", "day trading",
	},
	"market": {
		"market data", "current price", "stock price", "market value",
		"price of", "prices", "quote", "trading at",
	},
	"prediction": {
		"prediction market", "polymarket", "betting market", "bet on",
		"odds of", "odds on", "what are the odds",
	},
}

var promptInjectionMarkers = []string{
	"ignore previous instructions",
	"ignore your instructions",
	"system prompt",
	"developer message",
	"reveal prompt",
	"show hidden instructions",
}

var followUpMarkers = []string{
	"based on that",
	"based on this",
	"from that",
	"following up",
	"given that",
	"what should i do next",
}

// KeywordRouter is the deterministic fallback router. It routes only when
// exactly one intent matches; prompt-injection markers and ambiguity both
// land on clarify.
type KeywordRouter struct{}

func (KeywordRouter) Route(ctx context.Context, query string, messages []checkpoint.Message) (Decision, error) {
	route := routeFromKeywords(query)
	if route == RouteClarify {
		return Decision{Route: RouteClarify, Reasoning: "ambiguous_or_out_of_scope"}, nil
	}
	tool := routeToTool[route]
	return Decision{
		Route:     route,
		Tool:      tool,
		Args:      defaultArgsForTool(tool, query),
		Reasoning: "keyword_match",
	}, nil
}

var _ Router = KeywordRouter{}

func routeFromKeywords(query string) string {
	lowered := strings.ToLower(strings.TrimSpace(query))
	if lowered == "" {
		return RouteClarify
	}
	for _, marker := range promptInjectionMarkers {
		if strings.Contains(lowered, marker) {
			return RouteClarify
		}
	}

	var matched []string
	for route, keywords := range routerIntents {
		for _, keyword := range keywords {
			if strings.Contains(lowered, keyword) {
				matched = append(matched, route)
				break
			}
		}
	}
	if len(matched) == 1 {
		return matched[0]
	}
	return RouteClarify
}

// normalizeDecision forces a router decision into the closed route and tool
// vocabulary and sanitizes its arguments against the user query.
func normalizeDecision(query string, decision Decision) Decision {
	route := RouteClarify
	if _, ok := routeToTool[decision.Route]; ok {
		route = decision.Route
	}
	if route == RouteClarify {
		return Decision{Route: RouteClarify, Reasoning: decision.Reasoning}
	}

	tool := routeToTool[route]
	if _, ok := toolRoute(decision.Tool); ok && decision.Tool != "" {
		tool = decision.Tool
	}
	return Decision{
		Route:     route,
		Tool:      tool,
		Args:      sanitizeToolArgs(tool, query, decision.Args),
		Reasoning: decision.Reasoning,
	}
}

func toolRoute(tool string) (string, bool) {
	for route, name := range routeToTool {
		if name == tool {
			return route, true
		}
	}
	return "", false
}

func isFollowUpQuery(query string) bool {
	lowered := strings.ToLower(query)
	for _, marker := range followUpMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// recoverFromHistory reuses the most recent successful route decision when a
// follow-up query alone is too vague to route.
func recoverFromHistory(query string, history []checkpoint.ToolCall) (Decision, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		record := history[i]
		route, ok := toolRoute(record.Tool)
		if !ok {
			continue
		}
		return Decision{
			Route: route,
			Tool:  record.Tool,
			Args:  sanitizeToolArgs(record.Tool, query, record.Args),
		}, true
	}
	return Decision{}, false
}

// recoverFromMessages re-routes from the most recent earlier user message
// that produced a non-clarify route.
func recoverFromMessages(query string, messages []checkpoint.Message) (Decision, bool) {
	if len(messages) < 2 {
		return Decision{}, false
	}
	for i := len(messages) - 2; i >= 0; i-- {
		if messages[i].Role != checkpoint.RoleUser {
			continue
		}
		route := routeFromKeywords(messages[i].Content)
		if route != RouteClarify {
			tool := routeToTool[route]
			return Decision{
				Route: route,
				Tool:  tool,
				Args:  sanitizeToolArgs(tool, query, nil),
			}, true
		}
	}
	return Decision{}, false
}

// Argument extraction from the raw query text.

var (
	dateRangeRe = regexp.MustCompile(`\b(1d|wtd|mtd|ytd|1y|5y|max)\b`)
	taxYearRe   = regexp.MustCompile(`\b(20\d{2})\b`)
	tickerRe    = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
)

var tickerStopWords = map[string]bool{
	"I": true, "A": true, "AM": true, "AN": true, "AS": true, "AT": true,
	"BE": true, "BY": true, "DO": true, "GO": true, "HE": true, "IF": true,
	"IN": true, "IS": true, "IT": true, "ME": true, "MY": true, "NO": true,
	"OF": true, "OK": true, "ON": true, "OR": true, "SO": true, "TO": true,
	"UP": true, "US": true, "WE": true, "THE": true, "AND": true, "FOR": true,
	"ARE": true, "BUT": true, "NOT": true, "YOU": true, "ALL": true,
	"ANY": true, "CAN": true, "HAS": true, "HER": true, "WAS": true,
	"ONE": true, "OUR": true, "OUT": true, "HOW": true, "WHAT": true,
	"WITH": true, "SHOW": true, "GET": true, "MUCH": true,
}

func extractDateRange(query, fallback string) string {
	lowered := strings.ToLower(query)
	if m := dateRangeRe.FindStringSubmatch(lowered); m != nil {
		return m[1]
	}
	switch {
	case strings.Contains(lowered, "year to date"):
		return "ytd"
	case strings.Contains(lowered, "today"), strings.Contains(lowered, "daily"):
		return "1d"
	case strings.Contains(lowered, "week"):
		return "wtd"
	case strings.Contains(lowered, "month"):
		return "mtd"
	case strings.Contains(lowered, "1 year"), strings.Contains(lowered, "last year"):
		return "1y"
	case strings.Contains(lowered, "5 year"), strings.Contains(lowered, "five year"):
		return "5y"
	case strings.Contains(lowered, "all time"), strings.Contains(lowered, "inception"):
		return "max"
	}
	return fallback
}

func extractTaxYear(query string, fallback int) int {
	if m := taxYearRe.FindStringSubmatch(query); m != nil {
		if year, err := strconv.Atoi(m[1]); err == nil {
			return year
		}
	}
	return fallback
}

func extractIncomeBracket(query, fallback string) string {
	lowered := strings.ToLower(query)
	switch {
	case strings.Contains(lowered, "low"):
		return "low"
	case strings.Contains(lowered, "high"):
		return "high"
	case strings.Contains(lowered, "middle"), strings.Contains(lowered, "mid"):
		return "middle"
	}
	return fallback
}

func extractTargetProfile(query, fallback string) string {
	lowered := strings.ToLower(query)
	switch {
	case strings.Contains(lowered, "conservative"):
		return "conservative"
	case strings.Contains(lowered, "aggressive"):
		return "aggressive"
	case strings.Contains(lowered, "balanced"):
		return "balanced"
	}
	return fallback
}

func extractCheckType(query, fallback string) string {
	lowered := strings.ToLower(query)
	switch {
	case strings.Contains(lowered, "wash sale"):
		return "wash_sale"
	case strings.Contains(lowered, "pattern day trad"),
		strings.Contains(lowered, "day trade"),
		strings.Contains(lowered, "day trading"):
		return "pattern_day_trading"
	case strings.Contains(lowered, "concentration"), strings.Contains(lowered, "concentrated"):
		return "concentration"
	}
	return fallback
}

var predictionActionSet = map[string]bool{
	"browse": true, "search": true, "analyze": true, "positions": true,
	"simulate": true, "trending": true, "compare": true, "scenario": true,
}

func extractPredictionAction(query, fallback string) string {
	lowered := strings.ToLower(query)
	switch {
	case strings.Contains(lowered, "trending"), strings.Contains(lowered, "popular"),
		strings.Contains(lowered, "hottest"):
		return "trending"
	case strings.Contains(lowered, "position"), strings.Contains(lowered, "my bets"):
		return "positions"
	case strings.Contains(lowered, "compare"):
		return "compare"
	case strings.Contains(lowered, "simulate"), strings.Contains(lowered, "what if i bet"):
		return "simulate"
	case strings.Contains(lowered, "scenario"), strings.Contains(lowered, "reallocat"):
		return "scenario"
	case strings.Contains(lowered, "analyze"), strings.Contains(lowered, "analyse"):
		return "analyze"
	}
	return fallback
}

func extractMarketCategory(query string) string {
	lowered := strings.ToLower(query)
	switch {
	case strings.Contains(lowered, "crypto"), strings.Contains(lowered, "bitcoin"),
		strings.Contains(lowered, "ethereum"):
		return "Crypto"
	case strings.Contains(lowered, "politic"), strings.Contains(lowered, "election"),
		strings.Contains(lowered, "fed"):
		return "Politics"
	case strings.Contains(lowered, "sport"):
		return "Sports"
	}
	return ""
}

func extractSymbols(query string) []string {
	var out []string
	for _, candidate := range tickerRe.FindAllString(query, -1) {
		if !tickerStopWords[candidate] {
			out = append(out, candidate)
		}
	}
	return out
}

var defaultMarketMetrics = []string{"price", "change", "change_percent", "currency", "market_value"}

func defaultArgsForTool(tool, query string) map[string]any {
	switch tool {
	case "analyze_portfolio_performance":
		return map[string]any{"time_period": extractDateRange(query, "ytd")}
	case "categorize_transactions":
		return map[string]any{"date_range": extractDateRange(query, "max")}
	case "estimate_capital_gains_tax":
		return map[string]any{
			"tax_year":       extractTaxYear(query, time.Now().Year()),
			"income_bracket": extractIncomeBracket(query, "middle"),
		}
	case "check_compliance":
		return map[string]any{"check_type": extractCheckType(query, "all")}
	case "get_market_data":
		args := map[string]any{"metrics": defaultMarketMetrics}
		if symbols := extractSymbols(query); len(symbols) > 0 {
			args["symbols"] = symbols
		}
		return args
	case "explore_prediction_markets":
		args := map[string]any{"action": extractPredictionAction(query, "browse")}
		if category := extractMarketCategory(query); category != "" {
			args["category"] = category
		}
		return args
	}
	return map[string]any{"target_profile": extractTargetProfile(query, "balanced")}
}

var validDateRanges = map[string]bool{
	"1d": true, "wtd": true, "mtd": true, "ytd": true,
	"1y": true, "5y": true, "max": true,
}

// sanitizeToolArgs merges proposed args over query-derived defaults, then
// clamps every value back into the tool's accepted domain. A router is a
// collaborator, not an authority: malformed args degrade to defaults.
func sanitizeToolArgs(tool, query string, proposed map[string]any) map[string]any {
	merged := defaultArgsForTool(tool, query)
	for key, value := range proposed {
		merged[key] = value
	}

	switch tool {
	case "analyze_portfolio_performance":
		if v, _ := merged["time_period"].(string); !validDateRanges[v] {
			merged["time_period"] = "ytd"
		}
	case "categorize_transactions":
		if v, _ := merged["date_range"].(string); !validDateRanges[v] {
			merged["date_range"] = "max"
		}
	case "estimate_capital_gains_tax":
		switch merged["tax_year"].(type) {
		case int:
		case float64:
			merged["tax_year"] = int(merged["tax_year"].(float64))
		default:
			merged["tax_year"] = time.Now().Year()
		}
		if v, _ := merged["income_bracket"].(string); v != "low" && v != "middle" && v != "high" {
			merged["income_bracket"] = "middle"
		}
	case "check_compliance":
		switch merged["check_type"] {
		case "all", "wash_sale", "pattern_day_trading", "concentration":
		default:
			merged["check_type"] = "all"
		}
	case "get_market_data":
		if _, ok := merged["symbols"].([]string); !ok {
			if raw, isList := merged["symbols"].([]any); isList {
				var symbols []string
				for _, item := range raw {
					if s, ok := item.(string); ok {
						symbols = append(symbols, s)
					}
				}
				merged["symbols"] = symbols
			} else {
				delete(merged, "symbols")
			}
		}
		if _, ok := merged["metrics"].([]string); !ok {
			merged["metrics"] = defaultMarketMetrics
		}
	case "explore_prediction_markets":
		if v, _ := merged["action"].(string); !predictionActionSet[v] {
			merged["action"] = extractPredictionAction(query, "browse")
		}
		if _, present := merged["outcome"]; present {
			v, _ := merged["outcome"].(string)
			switch strings.ToLower(v) {
			case "yes":
				merged["outcome"] = "Yes"
			case "no":
				merged["outcome"] = "No"
			default:
				delete(merged, "outcome")
			}
		}
		if v, _ := merged["allocation_mode"].(string); v != "" && v != "fixed" && v != "percent" && v != "all_in" {
			delete(merged, "allocation_mode")
		}
		if v, _ := merged["time_horizon"].(string); v != "" && v != "1m" && v != "3m" && v != "6m" && v != "1y" {
			delete(merged, "time_horizon")
		}
		if raw, isList := merged["market_slugs"].([]any); isList {
			var slugs []string
			for _, item := range raw {
				if s, ok := item.(string); ok {
					slugs = append(slugs, s)
				}
			}
			merged["market_slugs"] = slugs
		}
	default:
		if v, _ := merged["target_profile"].(string); v != "conservative" && v != "balanced" && v != "aggressive" {
			merged["target_profile"] = "balanced"
		}
	}
	return merged
}
