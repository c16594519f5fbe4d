// Agentforge is a conversational portfolio analysis daemon over Ghostfolio.
//
// This binary starts the HTTP/SSE server with full service initialization:
// NATS event transport, the Ghostfolio API client, the turn engine, and the
// optional LLM router/synthesizer.
//
// Configuration is loaded from a YAML file plus environment variables. See
// internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	agentforge
//
//	# Configure via environment
//	SERVER_PORT=8090 GHOSTFOLIO_BASE_URL=http://localhost:3333 agentforge
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentforge/internal/checkpoint"
	"github.com/fyrsmithlabs/agentforge/internal/config"
	"github.com/fyrsmithlabs/agentforge/internal/engine"
	"github.com/fyrsmithlabs/agentforge/internal/events"
	"github.com/fyrsmithlabs/agentforge/internal/ghostfolio"
	httpapi "github.com/fyrsmithlabs/agentforge/internal/http"
	"github.com/fyrsmithlabs/agentforge/internal/llm"
	"github.com/fyrsmithlabs/agentforge/internal/logging"
	"github.com/fyrsmithlabs/agentforge/internal/telemetry"
	"github.com/fyrsmithlabs/agentforge/internal/tools"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  agentforge           Start the agentforge daemon\n")
			fmt.Fprintf(os.Stderr, "  agentforge version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("agentforge by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the agentforge server and blocks until context cancellation.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Build logger and telemetry
//  3. Connect to NATS
//  4. Build the Ghostfolio client, tool registry, and checkpoint store
//  5. Build the optional LLM router and synthesizer
//  6. Wire the engine and the HTTP server
//  7. Serve until cancelled, then shut down gracefully
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting agentforge",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("service", cfg.Observability.ServiceName),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	var tel *telemetry.Telemetry
	if cfg.Observability.MetricsEnabled {
		tel, err = telemetry.New(cfg.Observability.ServiceName, version)
		if err != nil {
			logger.Warn("metrics disabled", zap.Error(err))
		}
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
		nats.Timeout(cfg.NATS.ConnectTimeout.Duration()),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer nc.Close()
	logger.Info("connected to NATS", zap.String("url", cfg.NATS.URL))

	client, err := ghostfolio.NewHTTPClient(ghostfolio.Config{
		BaseURL:       cfg.Ghostfolio.BaseURL,
		AccessToken:   cfg.Ghostfolio.AccessToken.Value(),
		Timeout:       cfg.Ghostfolio.Timeout.Duration(),
		TokenTTL:      cfg.Ghostfolio.TokenTTL.Duration(),
		PolymarketURL: cfg.Ghostfolio.PolymarketURL,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating ghostfolio client: %w", err)
	}
	logger.Info("ghostfolio client ready", zap.String("upstream", client.Describe()))

	registry, err := tools.NewDefaultRegistry(logger)
	if err != nil {
		return fmt.Errorf("building tool registry: %w", err)
	}

	var router engine.Router
	var synth engine.Synthesizer
	llmConfig := llm.Config{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey.Value(),
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}
	if llmConfig.Enabled() {
		llmRouter, err := llm.NewRouter(llmConfig, logger)
		if err != nil {
			return fmt.Errorf("creating llm router: %w", err)
		}
		llmSynth, err := llm.NewSynthesizer(llmConfig, logger)
		if err != nil {
			return fmt.Errorf("creating llm synthesizer: %w", err)
		}
		router, synth = llmRouter, llmSynth
		logger.Info("llm layer enabled", zap.String("model", cfg.LLM.Model))
	} else {
		logger.Info("llm layer disabled, running deterministic routing and summaries")
	}

	eng, err := engine.New(engine.Options{
		Registry:    registry,
		Client:      client,
		Store:       checkpoint.NewMemoryStore(logger),
		Emitter:     events.NewNATSEmitter(nc, logger),
		Router:      router,
		Synthesizer: synth,
		Config: engine.Config{
			MaxSteps:       cfg.Engine.MaxSteps,
			MaxRetries:     cfg.Engine.MaxRetries,
			StepTimeout:    cfg.Engine.StepTimeout.Duration(),
			TokenChunkSize: cfg.Engine.TokenChunkSize,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}

	serverOpts := httpapi.Options{
		Engine: eng,
		NATS:   nc,
		BearerClient: func(token string) ghostfolio.Client {
			return client.WithBearerToken(token)
		},
		// Without a service access token, every request must carry its
		// own bearer identity.
		RequireAuth: !cfg.Ghostfolio.AccessToken.IsSet(),
		Metrics:     httpapi.NewMetrics(logger),
		Logger:      logger,
		Config: &httpapi.Config{
			Port:              cfg.Server.Port,
			HeartbeatInterval: cfg.Server.HeartbeatInterval.Duration(),
			DrainTimeout:      cfg.Server.DrainTimeout.Duration(),
		},
	}
	if tel != nil {
		serverOpts.MetricsHandler = tel.Handler()
	}
	srv, err := httpapi.NewServer(serverOpts)
	if err != nil {
		return fmt.Errorf("building http server: %w", err)
	}

	logger.Info("server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("chat_endpoint", "/api/agent/chat"),
		zap.Bool("metrics", tel != nil))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return <-errCh
}
