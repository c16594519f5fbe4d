// Package tools implements the portfolio analysis tools the engine can
// invoke, together with the argument schemas and the registry that binds
// tool names to implementations.
package tools

// Result is the uniform envelope every tool returns. Exactly one of Data or
// ErrorCode is meaningful: success carries Data, failure carries ErrorCode.
type Result struct {
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	ErrorCode string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// OK builds a successful result.
func OK(data map[string]any, metadata map[string]any) Result {
	return Result{Success: true, Data: data, Metadata: metadata}
}

// Fail builds a failed result carrying a stable reason code.
func Fail(code string, metadata map[string]any) Result {
	return Result{Success: false, ErrorCode: code, Metadata: metadata}
}

// Reason codes shared by all tools.
const (
	CodeInvalidArgument      = "INVALID_ARGUMENT"
	CodeInvalidTaxYear       = "INVALID_TAX_YEAR"
	CodeInvalidBracket       = "INVALID_INCOME_BRACKET"
	CodeInvalidTargetProfile = "INVALID_TARGET_PROFILE"
	CodeInvalidCheckType     = "INVALID_CHECK_TYPE"
	CodeInvalidMetric        = "INVALID_METRIC"
	CodeSymbolsNotFound      = "SYMBOLS_NOT_FOUND"
	CodeEmptyPortfolio       = "EMPTY_PORTFOLIO"
	CodeComputeError         = "COMPUTE_ERROR"
	CodeUnknownTool          = "UNKNOWN_TOOL"
)
