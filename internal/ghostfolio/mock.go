package ghostfolio

import (
	"context"
	"strings"
	"sync"
)

// MockClient is an in-memory Client for tests and offline demos. Fixtures are
// returned as-is; per-method errors can be injected to exercise failure paths.
type MockClient struct {
	mu sync.Mutex

	Details         map[string]any
	OrdersByRange   map[string]map[string]any
	PerfByRange     map[string]map[string]any
	Markets         []map[string]any
	Positions       []map[string]any
	DetailsErr      error
	OrdersErr       error
	PerformanceErr  error
	MarketsErr      error
	PositionsErr    error
	callsByEndpoint map[string]int
}

// NewMockClient creates a mock seeded with a small but realistic portfolio.
func NewMockClient() *MockClient {
	return &MockClient{
		Details: map[string]any{
			"holdings": map[string]any{
				"AAPL": map[string]any{
					"name":                     "Apple Inc.",
					"assetClass":               "EQUITY",
					"assetSubClass":            "STOCK",
					"quantity":                 10.0,
					"marketPrice":              195.0,
					"value":                    1950.0,
					"currency":                 "USD",
					"netPerformance":           450.0,
					"netPerformancePercentage": 0.3,
					"allocationInPercentage":   0.65,
					"investment":               1500.0,
					"dateOfFirstActivity":      "2023-01-15T00:00:00.000Z",
				},
				"VTI": map[string]any{
					"name":                     "Vanguard Total Stock Market ETF",
					"assetClass":               "EQUITY",
					"assetSubClass":            "ETF",
					"quantity":                 5.0,
					"marketPrice":              210.0,
					"value":                    1050.0,
					"currency":                 "USD",
					"netPerformance":           50.0,
					"netPerformancePercentage": 0.05,
					"allocationInPercentage":   0.35,
					"investment":               1000.0,
					"dateOfFirstActivity":      "2024-02-01T00:00:00.000Z",
				},
			},
			"summary": map[string]any{
				"currentValueInBaseCurrency": 3000.0,
				"netPerformance":             500.0,
				"netPerformancePercentage":   0.2,
				"totalInvestment":            2500.0,
			},
		},
		OrdersByRange: map[string]map[string]any{
			"max": {
				"activities": []any{
					map[string]any{
						"type":      "BUY",
						"date":      "2023-01-15T00:00:00.000Z",
						"quantity":  10.0,
						"unitPrice": 150.0,
						"fee":       1.0,
						"SymbolProfile": map[string]any{
							"symbol": "AAPL", "name": "Apple Inc.",
						},
					},
					map[string]any{
						"type":      "SELL",
						"date":      "2024-06-20T00:00:00.000Z",
						"quantity":  4.0,
						"unitPrice": 195.0,
						"fee":       1.0,
						"SymbolProfile": map[string]any{
							"symbol": "AAPL", "name": "Apple Inc.",
						},
					},
				},
			},
		},
		PerfByRange: map[string]map[string]any{
			"ytd": {
				"performance": map[string]any{
					"netPerformancePercentage": 0.0523,
					"netPerformance":           152.3,
					"totalInvestment":          2500.0,
					"currentValue":             3000.1,
				},
			},
		},
		Markets: []map[string]any{
			{
				"slug":          "will-bitcoin-reach-100k-2026",
				"question":      "Will Bitcoin reach $100k by end of 2026?",
				"category":      "Crypto",
				"description":   "Resolves Yes if BTC trades at or above $100,000 before 2027.",
				"outcomes":      `["Yes", "No"]`,
				"outcomePrices": `["0.62", "0.38"]`,
				"bestBid":       0.61,
				"bestAsk":       0.63,
				"volume":        750000.0,
				"volume24hr":    52000.0,
				"liquidity":     120000.0,
				"endDate":       "2026-12-31T00:00:00Z",
				"active":        true,
				"closed":        false,
			},
			{
				"slug":          "ethereum-etf-approved-2026",
				"question":      "Will a new Ethereum ETF be approved in 2026?",
				"category":      "Crypto",
				"description":   "Resolves Yes on SEC approval of a new spot Ethereum ETF.",
				"outcomes":      `["Yes", "No"]`,
				"outcomePrices": `["0.45", "0.55"]`,
				"bestBid":       0.44,
				"bestAsk":       0.47,
				"volume":        90000.0,
				"volume24hr":    8000.0,
				"liquidity":     30000.0,
				"endDate":       "2026-12-31T00:00:00Z",
				"active":        true,
				"closed":        false,
			},
			{
				"slug":          "fed-rate-cut-september-2026",
				"question":      "Will the Fed cut rates in September 2026?",
				"category":      "Politics",
				"description":   "Resolves Yes if the FOMC lowers the target rate at its September meeting.",
				"outcomes":      `["Yes", "No"]`,
				"outcomePrices": `["0.30", "0.70"]`,
				"bestBid":       0.29,
				"bestAsk":       0.31,
				"volume":        520000.0,
				"volume24hr":    95000.0,
				"liquidity":     200000.0,
				"endDate":       "2026-09-30T00:00:00Z",
				"active":        true,
				"closed":        false,
			},
		},
		Positions: []map[string]any{
			{
				"id":           "pos-1",
				"slug":         "will-bitcoin-reach-100k-2026",
				"question":     "Will Bitcoin reach $100k by end of 2026?",
				"outcome":      "Yes",
				"entryPrice":   0.55,
				"outcomePrice": 0.62,
				"quantity":     100.0,
				"date":         "2026-03-10T00:00:00.000Z",
			},
		},
		callsByEndpoint: map[string]int{},
	}
}

func (m *MockClient) PortfolioDetails(ctx context.Context) (map[string]any, error) {
	m.record("details")
	if m.DetailsErr != nil {
		return nil, m.DetailsErr
	}
	return m.Details, nil
}

func (m *MockClient) Orders(ctx context.Context, dateRange string) (map[string]any, error) {
	m.record("orders")
	if m.OrdersErr != nil {
		return nil, m.OrdersErr
	}
	if dateRange == "" {
		dateRange = "max"
	} else if err := ValidateDateRange(dateRange); err != nil {
		return nil, err
	}
	if out, ok := m.OrdersByRange[dateRange]; ok {
		return out, nil
	}
	return map[string]any{"activities": []any{}}, nil
}

func (m *MockClient) Performance(ctx context.Context, dateRange string) (map[string]any, error) {
	m.record("performance")
	if m.PerformanceErr != nil {
		return nil, m.PerformanceErr
	}
	if err := ValidateDateRange(dateRange); err != nil {
		return nil, err
	}
	if out, ok := m.PerfByRange[dateRange]; ok {
		return out, nil
	}
	return map[string]any{"performance": map[string]any{}}, nil
}

func (m *MockClient) PredictionMarkets(ctx context.Context, query, category string) ([]map[string]any, error) {
	m.record("markets")
	if m.MarketsErr != nil {
		return nil, m.MarketsErr
	}
	query = strings.ToLower(strings.TrimSpace(query))
	category = strings.ToLower(strings.TrimSpace(category))

	filtered := make([]map[string]any, 0, len(m.Markets))
	for _, market := range m.Markets {
		if category != "" {
			got, _ := market["category"].(string)
			if !strings.EqualFold(category, got) {
				continue
			}
		}
		if query != "" {
			question, _ := market["question"].(string)
			description, _ := market["description"].(string)
			haystack := strings.ToLower(question + " " + description)
			if !strings.Contains(haystack, query) {
				continue
			}
		}
		filtered = append(filtered, market)
	}
	return filtered, nil
}

func (m *MockClient) PredictionMarket(ctx context.Context, slug string) (map[string]any, error) {
	m.record("market")
	if m.MarketsErr != nil {
		return nil, m.MarketsErr
	}
	for _, market := range m.Markets {
		if got, _ := market["slug"].(string); got == slug {
			return market, nil
		}
	}
	return nil, nil
}

func (m *MockClient) PredictionPositions(ctx context.Context) ([]map[string]any, error) {
	m.record("positions")
	if m.PositionsErr != nil {
		return nil, m.PositionsErr
	}
	return m.Positions, nil
}

// Calls reports how many times an endpoint was hit.
func (m *MockClient) Calls(endpoint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callsByEndpoint[endpoint]
}

func (m *MockClient) record(endpoint string) {
	m.mu.Lock()
	m.callsByEndpoint[endpoint]++
	m.mu.Unlock()
}

var _ Client = (*MockClient)(nil)
