package tools

import (
	"strings"
	"time"

	"github.com/fyrsmithlabs/agentforge/internal/ghostfolio"
)

// upstreamFail maps a ghostfolio client error to a failed result, carrying
// the HTTP status in metadata when one exists.
func upstreamFail(err error, meta map[string]any) Result {
	if meta == nil {
		meta = map[string]any{}
	}
	if status := ghostfolio.StatusOf(err); status != 0 {
		meta["status"] = status
	}
	return Fail(ghostfolio.CodeOf(err), meta)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// activityValue prefers the explicit value field, falling back to
// quantity x unitPrice, matching what the portfolio UI totals show.
func activityValue(activity map[string]any) float64 {
	if v, ok := toFloat(activity["value"]); ok {
		return v
	}
	qty, okQty := toFloat(activity["quantity"])
	price, okPrice := toFloat(activity["unitPrice"])
	if okQty && okPrice {
		return qty * price
	}
	return 0
}

// activitySymbol reads the symbol from the nested SymbolProfile block, with
// a top-level fallback some payload variants use.
func activitySymbol(activity map[string]any) string {
	if profile, ok := activity["SymbolProfile"].(map[string]any); ok {
		if symbol, ok := profile["symbol"].(string); ok {
			if trimmed := strings.TrimSpace(symbol); trimmed != "" {
				return trimmed
			}
		}
	}
	if symbol, ok := activity["symbol"].(string); ok {
		return strings.TrimSpace(symbol)
	}
	return ""
}

var activityDateLayouts = []string{
	"2006-01-02T15:04:05.000Z",
	time.RFC3339,
	"2006-01-02",
}

func parseActivityDate(value any) (time.Time, bool) {
	s, ok := value.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range activityDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// activities pulls the activity list out of an orders payload. The second
// return is false when the payload shape is unusable.
func activities(payload map[string]any) ([]map[string]any, bool) {
	raw, ok := payload["activities"].([]any)
	if !ok {
		return nil, false
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if activity, ok := item.(map[string]any); ok {
			out = append(out, activity)
		}
	}
	return out, true
}

// holdings pulls the symbol-keyed holdings map out of a details payload.
func holdings(payload map[string]any) map[string]map[string]any {
	raw, ok := payload["holdings"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]map[string]any, len(raw))
	for symbol, item := range raw {
		if holding, ok := item.(map[string]any); ok {
			out[symbol] = holding
		}
	}
	return out
}
