package engine

// CodeCancelled marks a turn stopped by request cancellation.
const CodeCancelled = "CANCELLED"

// safeMessages maps internal reason codes to user-safe text. Raw upstream
// errors, stack traces, and internal identifiers never reach the user.
var safeMessages = map[string]string{
	"INVALID_TIME_PERIOD":         "Please use a valid period such as ytd, 1y, or max.",
	"INVALID_TAX_YEAR":            "Tax year must be between 2020 and the current year.",
	"INVALID_INCOME_BRACKET":      "Income bracket must be low, middle, or high.",
	"INVALID_TARGET_PROFILE":      "Target profile must be conservative, balanced, or aggressive.",
	"EMPTY_PORTFOLIO":             "No holdings found. Add investments to your portfolio and try again.",
	"API_TIMEOUT":                 "I could not reach the portfolio service in time. Please check that it is running.",
	"API_ERROR":                   "Received an error from the portfolio service. Please try again.",
	"AUTH_REQUIRED":               "Please sign in or create an account to get portfolio insights.",
	"AUTH_FAILED":                 "Your session has expired. Please sign in again.",
	"UNSUPPORTED_TOOL":            "I could not map your request to a supported tool.",
	"UNKNOWN_TOOL":                "I could not map your request to a supported tool.",
	"INVALID_ARGUMENT":            "One of the request parameters was not valid.",
	"EMPTY_TOOL_PAYLOAD":          "I received an empty response and could not continue safely.",
	"NON_FINITE_VALUE":            "I received invalid numeric values and stopped safely.",
	"INVALID_PERFORMANCE_PAYLOAD": "Performance data came back in an unexpected format.",
	"UNSANE_RETURN_VALUE":         "Performance numbers were outside a sane range, so I stopped safely.",
	"INVALID_TRANSACTION_COUNT":   "Transaction data looked incomplete or malformed.",
	"INVALID_TAX_PAYLOAD":         "Tax estimate data came back in an unexpected format.",
	"INVALID_ALLOCATION_PAYLOAD":  "Allocation data came back in an unexpected format.",
	"INVALID_HOLDINGS_COUNT":      "Holdings count was invalid, so I stopped safely.",
	"INVALID_ALLOCATION_SUM":      "Allocation percentages do not form a sane total (~100%).",
	"INVALID_CHECK_TYPE":          "Check type must be all, wash_sale, pattern_day_trading, or concentration.",
	"INVALID_COMPLIANCE_PAYLOAD":  "Compliance check data came back in an unexpected format.",
	"INVALID_METRIC":              "One or more requested metrics are not supported.",
	"INVALID_MARKET_DATA_PAYLOAD": "Market data came back in an unexpected format.",
	"SYMBOLS_NOT_FOUND":           "None of the requested symbols were found in your portfolio.",
	"COMPUTE_ERROR":               "Something went wrong while computing the analysis. Please try again.",
	"INVALID_PREDICTION_PAYLOAD":  "Prediction market data came back in an unexpected format.",
	"NO_MARKETS_FOUND":            "No prediction markets matched your request. Try a broader search.",
	"MARKET_NOT_FOUND":            "I could not find that prediction market. Check the market name and try again.",
	"MARKET_INACTIVE":             "That prediction market is no longer active.",
	"INVALID_SIMULATION_AMOUNT":   "Simulation amount must be a positive dollar value.",
	"INVALID_COMPARISON_COUNT":    "Comparisons need two or three markets.",
	"INVALID_ALLOCATION_MODE":     "Allocation mode must be fixed, percent, or all_in.",
	"INVALID_ALLOCATION_VALUE":    "Allocation value must be positive and within your portfolio's reach.",
	"UNSUPPORTED_HORIZON":         "Time horizon must be 1m, 3m, 6m, or 1y.",
	"POLYMARKET_TIMEOUT":          "I could not reach the prediction market service in time. Please try again.",
	"POLYMARKET_API_ERROR":        "Received an error from the prediction market service. Please try again.",
	CodeCancelled:                 "The request was cancelled before the analysis finished.",
}

const fallbackSafeMessage = "I ran into an issue while analyzing your request. Please try a narrower query."

// SafeMessage returns user-facing text for a reason code.
func SafeMessage(code string) string {
	if message, ok := safeMessages[code]; ok {
		return message
	}
	return fallbackSafeMessage
}

var errorSuggestions = []string{
	"Show my portfolio performance for ytd.",
	"Categorize my transactions for max range.",
	"Estimate my capital gains tax for this year.",
}

// errorResponse is the terminal response when no step produced usable data.
func errorResponse(code, tool string) *Response {
	if code == "" {
		code = "API_ERROR"
	}
	message := SafeMessage(code) + "\n\n" +
		"You can try again with one focused request, for example: " +
		"'Show my portfolio performance for ytd.'"
	return &Response{
		Category:    CategoryError,
		Message:     message,
		Tool:        tool,
		Suggestions: errorSuggestions,
		Citations:   []Citation{},
	}
}
