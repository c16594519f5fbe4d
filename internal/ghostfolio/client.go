// Package ghostfolio provides the client boundary to the Ghostfolio portfolio
// API. Tools depend on the Client interface only; the HTTP implementation maps
// every transport failure into the closed reason-code set defined in errors.go.
package ghostfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ValidDateRanges are the range filters Ghostfolio accepts.
var ValidDateRanges = map[string]bool{
	"1d": true, "wtd": true, "mtd": true, "ytd": true,
	"1y": true, "5y": true, "max": true,
}

// ValidateDateRange rejects unsupported range values before any request.
func ValidateDateRange(value string) error {
	if !ValidDateRanges[value] {
		return &Error{Code: CodeInvalidTimePeriod, Detail: "unsupported range: " + value}
	}
	return nil
}

// Client is the read surface tools call. Payloads are the raw JSON objects
// Ghostfolio returns so that tools own their own shape handling.
type Client interface {
	// PortfolioDetails returns holdings and the dashboard summary block.
	PortfolioDetails(ctx context.Context) (map[string]any, error)

	// Orders returns activity records, optionally filtered by date range.
	// An empty dateRange returns the full history.
	Orders(ctx context.Context, dateRange string) (map[string]any, error)

	// Performance returns portfolio performance for a date range.
	Performance(ctx context.Context, dateRange string) (map[string]any, error)

	// PredictionMarkets returns active prediction markets, optionally
	// filtered by a free-text query and a category.
	PredictionMarkets(ctx context.Context, query, category string) ([]map[string]any, error)

	// PredictionMarket returns one market by slug, or nil when unknown.
	PredictionMarket(ctx context.Context, slug string) (map[string]any, error)

	// PredictionPositions returns the user's prediction market positions.
	PredictionPositions(ctx context.Context) ([]map[string]any, error)
}

const (
	authEndpoint        = "/api/v1/auth/anonymous"
	detailsEndpoint     = "/api/v1/portfolio/details"
	ordersEndpoint      = "/api/v1/order"
	performanceEndpoint = "/api/v2/portfolio/performance"

	marketsEndpoint = "/markets"

	defaultTimeout       = 15 * time.Second
	defaultTokenTTL      = 60 * time.Second
	defaultPolymarketURL = "https://gamma-api.polymarket.com"
)

// Config holds HTTP client configuration.
type Config struct {
	// BaseURL is the Ghostfolio base URL, e.g. http://localhost:3333.
	BaseURL string

	// AccessToken is the Ghostfolio security token exchanged for a bearer
	// token at the anonymous auth endpoint. Ignored when BearerToken is set.
	AccessToken string

	// BearerToken, when set, is used directly on every request and the
	// anonymous exchange is skipped. This carries a caller's own identity.
	BearerToken string

	// Timeout bounds each request. Defaults to 15s.
	Timeout time.Duration

	// TokenTTL bounds how long an exchanged bearer token is reused.
	// Defaults to 60s.
	TokenTTL time.Duration

	// PolymarketURL is the Gamma API base URL for prediction market data.
	// Defaults to the public Gamma endpoint. No auth is required.
	PolymarketURL string
}

// HTTPClient talks to a Ghostfolio instance over HTTP with bearer auth.
//
// The exchanged bearer token is cached for TokenTTL and refreshed once on a
// 401 response; a second 401 after refresh surfaces AUTH_FAILED.
type HTTPClient struct {
	rest   *resty.Client
	gamma  *resty.Client
	cfg    Config
	logger *zap.Logger

	mu          sync.Mutex
	bearerToken string
	tokenExpiry time.Time
}

// NewHTTPClient creates an HTTP client for the configured Ghostfolio instance.
func NewHTTPClient(cfg Config, logger *zap.Logger) (*HTTPClient, error) {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("ghostfolio: base URL is required")
	}
	if cfg.AccessToken == "" && cfg.BearerToken == "" {
		return nil, errors.New("ghostfolio: an access token or bearer token is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.PolymarketURL == "" {
		cfg.PolymarketURL = defaultPolymarketURL
	}
	cfg.PolymarketURL = strings.TrimRight(cfg.PolymarketURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}

	rest := resty.New()
	rest.SetBaseURL(cfg.BaseURL)
	rest.SetTimeout(cfg.Timeout)

	gamma := resty.New()
	gamma.SetBaseURL(cfg.PolymarketURL)
	gamma.SetTimeout(cfg.Timeout)

	return &HTTPClient{rest: rest, gamma: gamma, cfg: cfg, logger: logger}, nil
}

// WithBearerToken returns a shallow copy of the client bound to a caller's
// bearer token. The copy shares the underlying transport.
func (c *HTTPClient) WithBearerToken(token string) *HTTPClient {
	clone := &HTTPClient{rest: c.rest, gamma: c.gamma, cfg: c.cfg, logger: c.logger}
	clone.cfg.BearerToken = token
	return clone
}

func (c *HTTPClient) PortfolioDetails(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, detailsEndpoint, nil)
}

func (c *HTTPClient) Orders(ctx context.Context, dateRange string) (map[string]any, error) {
	var params map[string]string
	if dateRange != "" {
		if err := ValidateDateRange(dateRange); err != nil {
			return nil, err
		}
		params = map[string]string{"range": dateRange}
	}
	return c.getJSON(ctx, ordersEndpoint, params)
}

func (c *HTTPClient) Performance(ctx context.Context, dateRange string) (map[string]any, error) {
	if err := ValidateDateRange(dateRange); err != nil {
		return nil, err
	}
	return c.getJSON(ctx, performanceEndpoint, map[string]string{"range": dateRange})
}

// PredictionMarkets lists active, open markets from the Gamma API. The Gamma
// /markets endpoint has no text search, so query and category are matched
// client-side against the question, description, and category fields.
func (c *HTTPClient) PredictionMarkets(ctx context.Context, query, category string) ([]map[string]any, error) {
	markets, err := c.gammaList(ctx, map[string]string{
		"active": "true",
		"closed": "false",
		"limit":  "100",
	})
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	category = strings.ToLower(strings.TrimSpace(category))

	filtered := make([]map[string]any, 0, len(markets))
	for _, m := range markets {
		if category != "" && !strings.EqualFold(category, stringField(m, "category")) {
			continue
		}
		if query != "" {
			haystack := strings.ToLower(stringField(m, "question") + " " + stringField(m, "description"))
			if !strings.Contains(haystack, query) {
				continue
			}
		}
		filtered = append(filtered, m)
	}
	return filtered, nil
}

// PredictionMarket looks up one market by slug. Returns nil when the slug is
// unknown to the Gamma API.
func (c *HTTPClient) PredictionMarket(ctx context.Context, slug string) (map[string]any, error) {
	markets, err := c.gammaList(ctx, map[string]string{"slug": slug})
	if err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, nil
	}
	return markets[0], nil
}

// PredictionPositions returns the caller's prediction market positions.
// Ghostfolio does not track these, so the live client reports none; position
// data arrives through account imports handled elsewhere.
func (c *HTTPClient) PredictionPositions(ctx context.Context) ([]map[string]any, error) {
	return []map[string]any{}, nil
}

// gammaList performs an unauthenticated GET against the Gamma markets endpoint
// and decodes the JSON array body.
func (c *HTTPClient) gammaList(ctx context.Context, params map[string]string) ([]map[string]any, error) {
	resp, err := c.gamma.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(marketsEndpoint)
	if err != nil {
		return nil, mapTransportError(err)
	}
	if resp.IsError() {
		return nil, &Error{Code: CodeAPIError, Status: resp.StatusCode()}
	}

	var markets []map[string]any
	if err := json.Unmarshal(resp.Body(), &markets); err != nil {
		return nil, &Error{Code: CodeAPIError, Detail: "markets response is not a JSON array"}
	}
	return markets, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// getJSON performs an authenticated GET and decodes the JSON object body.
// A 401 triggers one token refresh before giving up with AUTH_FAILED.
func (c *HTTPClient) getJSON(ctx context.Context, path string, params map[string]string) (map[string]any, error) {
	token, err := c.token(ctx, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, path, params, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		if c.cfg.BearerToken != "" {
			return nil, &Error{Code: CodeAuthFailed, Status: http.StatusUnauthorized}
		}
		c.logger.Debug("bearer token rejected, refreshing", zap.String("path", path))
		token, err = c.token(ctx, true)
		if err != nil {
			return nil, err
		}
		resp, err = c.send(ctx, path, params, token)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			return nil, &Error{Code: CodeAuthFailed, Status: http.StatusUnauthorized}
		}
	}

	if resp.IsError() {
		return nil, &Error{Code: CodeAPIError, Status: resp.StatusCode()}
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, &Error{Code: CodeAPIError, Detail: "response is not a JSON object"}
	}
	return payload, nil
}

func (c *HTTPClient) send(ctx context.Context, path string, params map[string]string, token string) (*resty.Response, error) {
	req := c.rest.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token)
	if params != nil {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(path)
	if err != nil {
		return nil, mapTransportError(err)
	}
	return resp, nil
}

// token returns a usable bearer token, exchanging the access token when the
// cached one is missing, expired, or force-refreshed.
func (c *HTTPClient) token(ctx context.Context, forceRefresh bool) (string, error) {
	if c.cfg.BearerToken != "" {
		return c.cfg.BearerToken, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceRefresh && c.bearerToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.bearerToken, nil
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]string{"accessToken": c.cfg.AccessToken}).
		Post(authEndpoint)
	if err != nil {
		return "", mapTransportError(err)
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return "", &Error{Code: CodeAuthFailed, Status: resp.StatusCode()}
	}
	if resp.IsError() {
		return "", &Error{Code: CodeAPIError, Status: resp.StatusCode()}
	}

	var payload struct {
		AuthToken string `json:"authToken"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil || payload.AuthToken == "" {
		return "", &Error{Code: CodeAuthFailed, Detail: "auth response did not include authToken"}
	}

	c.bearerToken = payload.AuthToken
	c.tokenExpiry = time.Now().Add(c.cfg.TokenTTL)
	c.logger.Debug("bearer token refreshed", zap.Time("expires", c.tokenExpiry))
	return c.bearerToken, nil
}

func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return &Error{Code: CodeAPITimeout}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Code: CodeAPITimeout, Detail: "request cancelled"}
	}
	return &Error{Code: CodeAPIError, Detail: err.Error()}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return false
}

var _ Client = (*HTTPClient)(nil)

// Describe returns a short identifier for log fields.
func (c *HTTPClient) Describe() string {
	return fmt.Sprintf("ghostfolio(%s)", c.cfg.BaseURL)
}
