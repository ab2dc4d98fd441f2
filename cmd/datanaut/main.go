// The datanaut orchestrator answers natural-language questions over the
// configured databases and worker services. It runs one request from
// the command line or serves the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/datanaut-ai/datanaut/pkg/adapter"
	"github.com/datanaut-ai/datanaut/pkg/agent"
	"github.com/datanaut-ai/datanaut/pkg/api"
	"github.com/datanaut-ai/datanaut/pkg/cleanup"
	"github.com/datanaut-ai/datanaut/pkg/config"
	"github.com/datanaut-ai/datanaut/pkg/database"
	"github.com/datanaut-ai/datanaut/pkg/history"
	"github.com/datanaut-ai/datanaut/pkg/llm"
	"github.com/datanaut-ai/datanaut/pkg/registry"
	"github.com/datanaut-ai/datanaut/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	request := flag.String("request", "", "Run one request and print the answer")
	databaseName := flag.String("database", "", "Restrict the run to one configured database")
	registryURL := flag.String("registry-url", "", "Service registry endpoint (overrides MCP_REGISTRY_URL)")
	serve := flag.Bool("serve", false, "Serve the HTTP API")
	envFile := flag.String("env-file", getEnv("ENV_FILE", ".env"), "Path to an optional .env file")
	flag.Parse()

	if *request == "" && !*serve {
		fmt.Fprintln(os.Stderr, "nothing to do: pass --request <text> or --serve")
		flag.Usage()
		os.Exit(2)
	}

	// Load the optional .env file before reading configuration
	if err := godotenv.Load(*envFile); err != nil {
		slog.Debug("No .env file loaded, continuing with existing environment",
			"path", *envFile, "error", err)
	} else {
		slog.Info("Loaded environment", "path", *envFile)
	}

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *registryURL != "" {
		cfg.RegistryURL = *registryURL
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	slog.Info("Starting datanaut",
		"version", version.GitCommit,
		"databases", len(cfg.Databases),
		"registry_url", cfg.RegistryURL)

	// 2. Database manager (pools open lazily on first query)
	databases := database.NewManager(cfg.Databases, logger)
	defer func() {
		if err := databases.Close(); err != nil {
			slog.Error("Error closing database pools", "error", err)
		}
	}()

	// 3. LLM router
	llmClient, err := llm.NewRouter(cfg.LLM, logger)
	if err != nil {
		slog.Error("Failed to initialize LLM router", "error", err)
		os.Exit(1)
	}

	// 4. Registry client and service adapter
	var registryClient *registry.Client
	if cfg.RegistryURL != "" {
		registryClient = registry.NewClient(cfg.RegistryURL, logger)
	}
	var resolver adapter.Resolver
	if registryClient != nil {
		resolver = registryClient
	}
	services := adapter.New(resolver, cfg.Catalog.ServiceInfos(), logger)
	defer func() {
		if err := services.Close(); err != nil {
			slog.Error("Error closing adapter sessions", "error", err)
		}
	}()

	// 5. Optional run-history store
	var store *history.Store
	if cfg.HistoryDatabaseURL != "" {
		store, err = history.Open(ctx, cfg.HistoryDatabaseURL, logger)
		if err != nil {
			slog.Error("Failed to open run history store", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := store.Close(); err != nil {
				slog.Error("Error closing run history store", "error", err)
			}
		}()
	}

	// 6. Agent
	deps := agent.Dependencies{
		Config:    cfg,
		LLM:       llmClient,
		Databases: databases,
		Adapter:   services,
		Logger:    logger,
	}
	if registryClient != nil {
		deps.Registry = registryClient
	}
	if store != nil {
		deps.History = store
	}
	orchestrator, err := agent.New(deps)
	if err != nil {
		slog.Error("Failed to build agent", "error", err)
		os.Exit(1)
	}

	if *request != "" {
		runOnce(ctx, orchestrator, *request, *databaseName)
		return
	}

	serveAPI(ctx, cfg, orchestrator, databases, registryClient, store, logger)
}

// runOnce walks a single request through the graph and prints the answer.
// A completed run exits 0 even when the answer is an apology; only rejected
// envelopes and aborted walks exit non-zero.
func runOnce(ctx context.Context, orchestrator *agent.Agent, request, databaseName string) {
	final, err := orchestrator.Run(ctx, agent.Request{
		UserRequest:  request,
		DatabaseName: databaseName,
	})
	if err != nil {
		slog.Error("Run failed", "error", err)
		if final.FinalResponse != "" {
			fmt.Println(final.FinalResponse)
		}
		os.Exit(1)
	}

	fmt.Println(final.FinalResponse)
	if _, msg, ok := final.ActiveError(); ok {
		slog.Warn("Run completed with an unresolved failure", "error", msg)
	}
}

// serveAPI runs the HTTP server until SIGTERM/SIGINT, then drains it.
func serveAPI(ctx context.Context, cfg *config.Config, orchestrator *agent.Agent, databases *database.Manager, registryClient *registry.Client, store *history.Store, logger *slog.Logger) {
	var discoverer api.ServiceDiscoverer
	if registryClient != nil {
		discoverer = registryClient
	}
	var runs api.HistoryReader
	if store != nil {
		runs = store

		retention := cleanup.NewService(cfg.Retention, store)
		retention.Start(ctx)
		defer retention.Stop()
	}
	server := api.NewServer(cfg, orchestrator, databases, discoverer, runs, logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("Shutdown complete")
}
