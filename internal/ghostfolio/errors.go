package ghostfolio

import (
	"errors"
	"fmt"
)

// Reason codes surfaced to tools. Tools map these 1:1 into tool results and
// never interpret raw transport errors themselves.
const (
	CodeAuthFailed        = "AUTH_FAILED"
	CodeAPITimeout        = "API_TIMEOUT"
	CodeAPIError          = "API_ERROR"
	CodeInvalidTimePeriod = "INVALID_TIME_PERIOD"
)

// Error is the structured client error consumed by tools as a reason code.
//
// Status carries the upstream HTTP status when one was observed (0 otherwise).
// Detail is diagnostic only and must never reach a user-facing payload.
type Error struct {
	Code   string
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s | status=%d", e.Code, e.Status)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s | %s", e.Code, e.Detail)
	}
	return e.Code
}

// CodeOf extracts the reason code from an error returned by a Client.
// Unknown error types collapse to API_ERROR.
func CodeOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeAPIError
}

// StatusOf extracts the upstream HTTP status, or 0 when none was observed.
func StatusOf(err error) int {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Status
	}
	return 0
}
