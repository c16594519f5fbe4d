package http

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentforge/internal/engine"
)

const instrumentationName = "github.com/fyrsmithlabs/agentforge/internal/http"

// Metrics holds the HTTP and turn instruments.
type Metrics struct {
	meter  metric.Meter
	logger *zap.Logger

	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	activeRequests metric.Int64UpDownCounter

	turnsTotal      metric.Int64Counter
	turnDur         metric.Float64Histogram
	toolInvocations metric.Int64Counter
	turnConfidence  metric.Float64Histogram
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.requestsTotal, err = m.meter.Int64Counter(
		"agentforge.http.requests_total",
		metric.WithDescription("Total HTTP requests labeled by method, endpoint, and status code."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create requests counter", zap.Error(err))
	}

	m.requestDur, err = m.meter.Float64Histogram(
		"agentforge.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds, labeled by method, endpoint, and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.activeRequests, err = m.meter.Int64UpDownCounter(
		"agentforge.http.active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create active requests gauge", zap.Error(err))
	}

	m.turnsTotal, err = m.meter.Int64Counter(
		"agentforge.turns_total",
		metric.WithDescription("Completed conversational turns labeled by response category and error code."),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		m.logger.Warn("failed to create turns counter", zap.Error(err))
	}

	m.turnDur, err = m.meter.Float64Histogram(
		"agentforge.turn_duration_seconds",
		metric.WithDescription("End-to-end turn duration in seconds, labeled by category."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0),
	)
	if err != nil {
		m.logger.Warn("failed to create turn duration histogram", zap.Error(err))
	}

	m.toolInvocations, err = m.meter.Int64Counter(
		"agentforge.tool_invocations_total",
		metric.WithDescription("Tool executions labeled by tool name and success."),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		m.logger.Warn("failed to create tool invocations counter", zap.Error(err))
	}

	m.turnConfidence, err = m.meter.Float64Histogram(
		"agentforge.turn_confidence",
		metric.WithDescription("Confidence score of completed turns."),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0.0, 0.2, 0.4, 0.6, 0.7, 0.8, 0.9, 1.0),
	)
	if err != nil {
		m.logger.Warn("failed to create confidence histogram", zap.Error(err))
	}
}

// Middleware returns an Echo middleware that records HTTP metrics.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := req.Context()

			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
			}

			err := next(c)

			attrs := []attribute.KeyValue{
				attribute.String("method", req.Method),
				attribute.String("endpoint", c.Path()),
				attribute.Int("status", c.Response().Status),
			}
			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
			}
			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, -1)
			}

			return err
		}
	}
}

// RecordTurn records the outcome of one completed turn.
func (m *Metrics) RecordTurn(ctx context.Context, result *engine.TurnResult, duration time.Duration) {
	if result == nil || result.Response == nil {
		if m.turnsTotal != nil {
			m.turnsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("category", "aborted"),
				attribute.String("error_code", "INTERNAL"),
			))
		}
		return
	}

	category := result.Response.Category
	if m.turnsTotal != nil {
		m.turnsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("category", category),
			attribute.String("error_code", result.ErrorCode),
		))
	}
	if m.turnDur != nil {
		m.turnDur.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("category", category),
		))
	}
	if m.turnConfidence != nil {
		m.turnConfidence.Record(ctx, result.Response.Confidence)
	}
	if m.toolInvocations != nil {
		for _, record := range result.History {
			m.toolInvocations.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool", record.Tool),
				attribute.Bool("success", record.Success),
			))
		}
	}
}
