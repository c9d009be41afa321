// Command deskd is the grounded-answer daemon: it loads configuration,
// wires the pipeline, and serves queries over a local Unix-domain socket
// until SIGTERM/SIGINT (spec.md §6.5).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"sysdesk/internal/config"
	"sysdesk/internal/ipc"
	"sysdesk/internal/llmtransport"
	"sysdesk/internal/observability"
	"sysdesk/internal/orchestrator"
	"sysdesk/internal/probe"
	"sysdesk/internal/servicedesk"
	"sysdesk/internal/snapshot"
)

const (
	exitOK            = 0
	exitConfigError   = 64
	exitSocketFailure = 65
	exitFatal         = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitConfigError
	}

	observability.InitLogger(cfg.LogPath, cfg.LogLevel)
	log.Info().Str("socket", cfg.SocketPath).Msg("deskd starting")

	if cfg.CatalogOverridePath != "" {
		if err := probe.LoadOverrides(cfg.CatalogOverridePath); err != nil {
			log.Error().Err(err).Msg("failed to load catalog overrides")
			return exitConfigError
		}
	}

	store := snapshot.New()
	if cfg.SnapshotPath != "" {
		if err := store.LoadFrom(cfg.SnapshotPath); err != nil {
			log.Warn().Err(err).Msg("failed to load persisted snapshot, starting cold")
		}
	}

	httpClient := observability.NewHTTPClient(nil)
	transport := llmtransport.New(cfg.LLMBaseURL, httpClient)
	executor := probe.NewExecutor(cfg.ProbeBudget)

	orch := orchestrator.NewEngine(executor, transport, store, cfg.LLMModel)
	orch.TurnCap = cfg.TurnCap
	orch.JuniorTimeout = cfg.JuniorBudget
	orch.SeniorTimeout = cfg.SeniorBudget
	orch.SnapshotMaxAge = cfg.SnapshotMaxAge

	engine := servicedesk.NewEngine(orch, store)
	engine.DefaultTurnCap = cfg.TurnCap
	engine.DefaultMaxAge = cfg.SnapshotMaxAge
	engine.TranslatorEnabled = cfg.TranslatorEnabled
	engine.TranslatorBudget = cfg.TranslatorBudget

	server := ipc.NewServer(engine, cfg.SocketPath)
	if err := server.Listen(); err != nil {
		log.Error().Err(err).Msg("failed to bind socket")
		return exitSocketFailure
	}
	log.Info().Str("socket", cfg.SocketPath).Msg("deskd listening")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ctx) }()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, draining in-flight requests")

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("serve loop exited with error")
		}
	case <-drainCtx.Done():
		log.Warn().Msg("drain timeout exceeded, forcing shutdown")
		server.Close()
	}

	if cfg.SnapshotPath != "" {
		if err := store.SaveTo(cfg.SnapshotPath); err != nil {
			log.Error().Err(err).Msg("failed to persist snapshot on shutdown")
			return exitFatal
		}
	}

	log.Info().Msg("deskd stopped cleanly")
	return exitOK
}
