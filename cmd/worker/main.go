// Package main is the entry point for the agent worker. Workers consume
// message-sent events from JetStream and run the processing pipeline.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/polaris-ai/agent-platform/internal/config"
	"github.com/polaris-ai/agent-platform/internal/fetch"
	"github.com/polaris-ai/agent-platform/internal/llm"
	"github.com/polaris-ai/agent-platform/internal/model"
	natsclient "github.com/polaris-ai/agent-platform/internal/nats"
	"github.com/polaris-ai/agent-platform/internal/orchestrator"
	"github.com/polaris-ai/agent-platform/internal/store"
	"github.com/polaris-ai/agent-platform/pkg/logger"
	"github.com/polaris-ai/agent-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting agent worker")

	if cfg.InternalKey == "" {
		log.Fatal("INTERNAL_KEY must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "agent-platform-worker", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Open the data store
	db, err := store.Open(cfg.DBPath, cfg.InternalKey)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer db.Close()

	// Initialize the agent LLM client
	agentClient, err := llm.NewClient(ctx, llm.Provider(cfg.Provider), apiKeyFor(cfg))
	if err != nil {
		log.Fatal("failed to create LLM client", zap.Error(err))
	}

	// Title generation is text-only, so any provider will do. Prefer a
	// dedicated Anthropic client when a key is configured.
	titleClient := agentClient
	if cfg.AnthropicAPIKey != "" && llm.Provider(cfg.Provider) != llm.ProviderAnthropic {
		if c, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey); err == nil {
			titleClient = c
		} else {
			log.Warn("failed to create title client, reusing agent client", zap.Error(err))
		}
	}

	// Connect to NATS
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to NATS", zap.Error(err))
	}
	defer natsClient.Close()

	streamManager := natsclient.NewStreamManager(natsClient, log)
	if err := streamManager.EnsureStream(ctx); err != nil {
		log.Fatal("failed to ensure stream", zap.Error(err))
	}

	// Build the orchestrator
	orch := orchestrator.New(db, agentClient, titleClient, fetch.NewHTTPFetcher(), orchestrator.Options{
		InternalKey:   cfg.InternalKey,
		AgentModel:    cfg.AgentModel,
		TitleModel:    cfg.TitleModel,
		HistoryLimit:  cfg.HistoryLimit,
		MaxIterations: cfg.MaxIterations,
		SettleDelay:   cfg.SettleDelay,
		TurnTimeout:   cfg.TurnTimeout,
		ToolTimeout:   cfg.ToolTimeout,
		StepRetries:   cfg.StepRetries,
	}, log)

	// Route cancellation broadcasts to in-flight runs
	cancelSub, err := streamManager.SubscribeCancels(func(messageID string) {
		orch.Cancels().Cancel(messageID)
	})
	if err != nil {
		log.Fatal("failed to subscribe to cancels", zap.Error(err))
	}
	defer cancelSub.Unsubscribe()

	// Metrics endpoint
	metricsServer := &http.Server{Addr: ":" + cfg.ServerPort, Handler: promhttp.Handler()}
	go func() {
		log.Info("metrics listening", zap.String("port", cfg.ServerPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", zap.Error(err))
		}
	}()

	// Consume until shutdown
	log.Info("worker consuming events")
	err = streamManager.ConsumeMessages(ctx, func(ctx context.Context, event *model.MessageSentEvent) error {
		return orch.ProcessMessage(ctx, event)
	})
	if err != nil && ctx.Err() == nil {
		log.Error("consumer stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	log.Info("worker stopped")
}

func apiKeyFor(cfg *config.Config) string {
	switch llm.Provider(cfg.Provider) {
	case llm.ProviderOpenAI:
		return cfg.OpenAIAPIKey
	case llm.ProviderAnthropic:
		return cfg.AnthropicAPIKey
	default:
		return cfg.GeminiAPIKey
	}
}
