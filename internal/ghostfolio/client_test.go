package ghostfolio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(Config{
		BaseURL:     baseURL,
		AccessToken: "security-token",
		Timeout:     2 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestNewHTTPClient_Validation(t *testing.T) {
	_, err := NewHTTPClient(Config{AccessToken: "x"}, nil)
	assert.Error(t, err)

	_, err = NewHTTPClient(Config{BaseURL: "http://localhost:3333"}, nil)
	assert.Error(t, err)

	client, err := NewHTTPClient(Config{BaseURL: "http://localhost:3333/", BearerToken: "jwt"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ghostfolio(http://localhost:3333)", client.Describe())
}

func TestHTTPClient_ExchangesAndCachesToken(t *testing.T) {
	var authCalls int64
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/anonymous":
			atomic.AddInt64(&authCalls, 1)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "security-token", body["accessToken"])
			writeJSON(w, http.StatusCreated, map[string]string{"authToken": "jwt-1"})
		case "/api/v1/portfolio/details":
			assert.Equal(t, "Bearer jwt-1", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]any{"holdings": []any{}})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	client := newTestClient(t, srv.URL)

	ctx := context.Background()
	_, err := client.PortfolioDetails(ctx)
	require.NoError(t, err)
	_, err = client.PortfolioDetails(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), atomic.LoadInt64(&authCalls), "token should be cached between requests")
}

func TestHTTPClient_RefreshesOnceOn401(t *testing.T) {
	var authCalls int64
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/anonymous":
			n := atomic.AddInt64(&authCalls, 1)
			writeJSON(w, http.StatusCreated, map[string]string{"authToken": "jwt-" + string(rune('0'+n))})
		case "/api/v1/portfolio/details":
			if r.Header.Get("Authorization") == "Bearer jwt-1" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "expired"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"holdings": []any{}})
		}
	})

	client := newTestClient(t, srv.URL)

	out, err := client.PortfolioDetails(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "holdings")
	assert.Equal(t, int64(2), atomic.LoadInt64(&authCalls))
}

func TestHTTPClient_AuthFailedAfterRefresh(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/anonymous":
			writeJSON(w, http.StatusCreated, map[string]string{"authToken": "jwt"})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "nope"})
		}
	})

	client := newTestClient(t, srv.URL)

	_, err := client.PortfolioDetails(context.Background())
	require.Error(t, err)
	assert.Equal(t, CodeAuthFailed, CodeOf(err))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}

func TestHTTPClient_RejectedAccessToken(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "bad token"})
	})

	client := newTestClient(t, srv.URL)

	_, err := client.PortfolioDetails(context.Background())
	require.Error(t, err)
	assert.Equal(t, CodeAuthFailed, CodeOf(err))
}

func TestHTTPClient_CallerBearerSkipsExchange(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NotEqual(t, "/api/v1/auth/anonymous", r.URL.Path)
		assert.Equal(t, "Bearer caller-jwt", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"activities": []any{}})
	})

	base := newTestClient(t, srv.URL)
	client := base.WithBearerToken("caller-jwt")

	_, err := client.Orders(context.Background(), "max")
	require.NoError(t, err)
}

func TestHTTPClient_CallerBearer401IsTerminal(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "expired"})
	})

	base := newTestClient(t, srv.URL)
	client := base.WithBearerToken("stale-jwt")

	_, err := client.Orders(context.Background(), "max")
	require.Error(t, err)
	assert.Equal(t, CodeAuthFailed, CodeOf(err))
}

func TestHTTPClient_ServerErrorMapsToAPIError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/anonymous" {
			writeJSON(w, http.StatusCreated, map[string]string{"authToken": "jwt"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "boom"})
	})

	client := newTestClient(t, srv.URL)

	_, err := client.Performance(context.Background(), "ytd")
	require.Error(t, err)
	assert.Equal(t, CodeAPIError, CodeOf(err))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
}

func TestHTTPClient_TimeoutMapsToAPITimeout(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/anonymous" {
			writeJSON(w, http.StatusCreated, map[string]string{"authToken": "jwt"})
			return
		}
		time.Sleep(300 * time.Millisecond)
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	client, err := NewHTTPClient(Config{
		BaseURL:     srv.URL,
		AccessToken: "security-token",
		Timeout:     50 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.PortfolioDetails(context.Background())
	require.Error(t, err)
	assert.Equal(t, CodeAPITimeout, CodeOf(err))
}

func TestHTTPClient_InvalidRangeShortCircuits(t *testing.T) {
	called := false
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	client := newTestClient(t, srv.URL)

	_, err := client.Performance(context.Background(), "quarterly")
	require.Error(t, err)
	assert.Equal(t, CodeInvalidTimePeriod, CodeOf(err))

	_, err = client.Orders(context.Background(), "quarterly")
	require.Error(t, err)
	assert.Equal(t, CodeInvalidTimePeriod, CodeOf(err))

	assert.False(t, called, "invalid range must not reach the server")
}

func TestMockClient_Fixtures(t *testing.T) {
	mock := NewMockClient()
	ctx := context.Background()

	details, err := mock.PortfolioDetails(ctx)
	require.NoError(t, err)
	assert.Contains(t, details, "holdings")

	orders, err := mock.Orders(ctx, "")
	require.NoError(t, err)
	assert.NotEmpty(t, orders["activities"])

	perf, err := mock.Performance(ctx, "ytd")
	require.NoError(t, err)
	assert.Contains(t, perf, "performance")

	_, err = mock.Performance(ctx, "bogus")
	assert.Equal(t, CodeInvalidTimePeriod, CodeOf(err))

	mock.DetailsErr = &Error{Code: CodeAPITimeout}
	_, err = mock.PortfolioDetails(ctx)
	assert.Equal(t, CodeAPITimeout, CodeOf(err))

	assert.Equal(t, 2, mock.Calls("details"))
}
