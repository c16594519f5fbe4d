package engine

import "strings"

// SupportedCapabilities is the capability list shown on clarification.
var SupportedCapabilities = []string{
	"Portfolio performance analysis across supported date ranges",
	"Transaction categorization and activity summaries",
	"Capital gains tax estimation (FIFO-based, informational only)",
	"Asset allocation and concentration analysis by target profile",
	"Compliance screening for wash sales, day trading, and concentration",
	"Current market data for portfolio holdings",
	"Prediction market browsing, analysis, and what-if scenarios via Polymarket",
}

var clarifySuggestions = []string{
	"How is my portfolio doing ytd?",
	"Categorize my transactions for max range.",
	"Estimate my capital gains tax in the middle bracket.",
	"Analyze my allocation with a balanced profile.",
}

// clarifyResponse is the terminal response for ambiguous or out-of-scope
// queries.
func clarifyResponse() *Response {
	var capabilities strings.Builder
	for _, capability := range SupportedCapabilities {
		capabilities.WriteString("- ")
		capabilities.WriteString(capability)
		capabilities.WriteString("\n")
	}
	message := "I can help with financial analysis inside your portfolio, but I could not map " +
		"that request to one supported tool.\n\n" +
		"Supported capabilities:\n" + capabilities.String() + "\n" +
		"Try asking: 'How is my portfolio doing ytd?' or " +
		"'Am I diversified enough for a balanced profile?'"

	return &Response{
		Category:    CategoryClarification,
		Message:     message,
		Suggestions: clarifySuggestions,
		Citations:   []Citation{},
	}
}
