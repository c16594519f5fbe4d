// Package http provides the HTTP/SSE API for agentforge.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentforge/internal/engine"
	"github.com/fyrsmithlabs/agentforge/internal/events"
	"github.com/fyrsmithlabs/agentforge/internal/ghostfolio"
)

// TurnRunner executes one conversational turn. Satisfied by *engine.Engine.
type TurnRunner interface {
	Turn(ctx context.Context, req engine.TurnRequest) (*engine.TurnResult, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host              string
	Port              int
	HeartbeatInterval time.Duration

	// DrainTimeout bounds how long the stream waits for the terminal
	// frame over NATS after the turn has already finished. Past it the
	// terminal frame is synthesized from the turn result.
	DrainTimeout time.Duration
}

// Options carries the server's collaborators.
type Options struct {
	Engine TurnRunner
	NATS   *nats.Conn

	// BearerClient builds a per-request upstream client from a caller's
	// bearer token. Nil ignores caller tokens and uses the engine's
	// service client.
	BearerClient func(token string) ghostfolio.Client

	// RequireAuth rejects chat requests without a bearer token.
	RequireAuth bool

	// MetricsHandler, when set, is mounted at /metrics.
	MetricsHandler http.Handler

	Metrics *Metrics
	Logger  *zap.Logger
	Config  *Config
}

// Server provides the chat SSE endpoint and health/metrics surfaces.
type Server struct {
	echo         *echo.Echo
	engine       TurnRunner
	nc           *nats.Conn
	bearerClient func(token string) ghostfolio.Client
	requireAuth  bool
	metrics      *Metrics
	logger       *zap.Logger
	config       *Config
}

// NewServer creates a new HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if opts.NATS == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 8090
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 2 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			opts.Logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	if opts.Metrics != nil {
		e.Use(opts.Metrics.Middleware())
	}

	s := &Server{
		echo:         e,
		engine:       opts.Engine,
		nc:           opts.NATS,
		bearerClient: opts.BearerClient,
		requireAuth:  opts.RequireAuth,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		config:       cfg,
	}

	e.GET("/health", s.handleHealth)
	e.POST("/api/agent/chat", s.handleChat)
	if opts.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(opts.MetricsHandler))
	}

	return s, nil
}

// ChatRequest is the request body for POST /api/agent/chat.
type ChatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleChat runs one turn and streams its events as SSE frames. The frame
// order mirrors the engine's event order; the stream closes after the
// terminal frame. Client disconnects stop the stream but the turn still
// finishes and checkpoints.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}

	header := c.Response().Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	bearer := bearerToken(c.Request())
	if s.requireAuth && bearer == "" {
		return s.writeErrorFrame(c, "AUTH_REQUIRED")
	}
	var clientOverride ghostfolio.Client
	if bearer != "" && s.bearerClient != nil {
		clientOverride = s.bearerClient(bearer)
	}

	conversationID := req.ThreadID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	turnID := uuid.NewString()

	// Subscribe before launching so no event is missed.
	msgChan := make(chan *nats.Msg, 64)
	sub, err := s.nc.ChanSubscribe(events.TurnSubject(conversationID, turnID), msgChan)
	if err != nil {
		s.logger.Error("turn subscription failed", zap.Error(err))
		return s.writeErrorFrame(c, "API_ERROR")
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	start := time.Now()
	turnDone := make(chan *engine.TurnResult, 1)
	go func() {
		// Detached from the request context: a dropped client must not
		// abort the turn mid-flight.
		result, err := s.engine.Turn(context.WithoutCancel(c.Request().Context()), engine.TurnRequest{
			ConversationID: conversationID,
			TurnID:         turnID,
			Message:        req.Message,
			Client:         clientOverride,
		})
		if err != nil {
			s.logger.Error("turn failed", zap.Error(err),
				zap.String("conversation_id", conversationID))
		}
		if s.metrics != nil {
			s.metrics.RecordTurn(context.Background(), result, time.Since(start))
		}
		turnDone <- result
	}()

	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	var finished *engine.TurnResult
	var drainDeadline <-chan time.Time
	for {
		select {
		case msg := <-msgChan:
			kind, ok := subjectKind(msg.Subject)
			if !ok {
				continue
			}
			if err := events.WriteSSE(c.Response(), kind, msg.Data); err != nil {
				return nil
			}
			c.Response().Flush()
			if kind.Terminal() {
				return nil
			}

		case <-ticker.C:
			if err := events.WriteSSEComment(c.Response(), "heartbeat"); err != nil {
				return nil
			}
			c.Response().Flush()

		case <-c.Request().Context().Done():
			return nil

		case result := <-turnDone:
			// Normally the terminal frame arrives through NATS first.
			// A nil result means the turn aborted before emitting one.
			if result == nil {
				return s.writeErrorFrame(c, "API_ERROR")
			}
			// Drain frames already published, but only for so long: the
			// terminal frame may have been lost in transit, and the
			// stream must still close.
			finished = result
			turnDone = nil
			drainDeadline = time.After(s.config.DrainTimeout)

		case <-drainDeadline:
			s.logger.Warn("terminal frame not received, synthesizing from turn result",
				zap.String("conversation_id", conversationID),
				zap.String("turn_id", turnID))
			return s.writeTerminalFrame(c, finished)
		}
	}
}

// writeTerminalFrame closes the stream with a frame built from the turn
// result instead of the event stream.
func (s *Server) writeTerminalFrame(c echo.Context, result *engine.TurnResult) error {
	if result.ErrorCode != "" || result.Response == nil {
		code := result.ErrorCode
		if code == "" {
			code = "API_ERROR"
		}
		return s.writeErrorFrame(c, code)
	}

	event := events.Event{
		Kind: events.KindDone,
		Payload: events.DonePayload{
			ThreadID:        result.ConversationID,
			Response:        result.Response,
			ToolCallHistory: result.History,
		},
	}
	data, err := event.Marshal()
	if err != nil {
		return err
	}
	if err := events.WriteSSE(c.Response(), events.KindDone, data); err != nil {
		return nil
	}
	c.Response().Flush()
	return nil
}

// writeErrorFrame emits a single SSE error frame and ends the stream.
func (s *Server) writeErrorFrame(c echo.Context, code string) error {
	event := events.Event{
		Kind:    events.KindError,
		Payload: events.ErrorPayload{Code: code, Message: engine.SafeMessage(code)},
	}
	data, err := event.Marshal()
	if err != nil {
		return err
	}
	if err := events.WriteSSE(c.Response(), events.KindError, data); err != nil {
		return nil
	}
	c.Response().Flush()
	return nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}

// subjectKind extracts the event kind from a turn subject.
func subjectKind(subject string) (events.Kind, bool) {
	idx := strings.LastIndex(subject, ".")
	if idx < 0 || idx == len(subject)-1 {
		return "", false
	}
	return events.Kind(subject[idx+1:]), true
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
