package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/voicegate/voicegate/internal/agi"
	"github.com/voicegate/voicegate/internal/api"
	"github.com/voicegate/voicegate/internal/api/middleware"
	"github.com/voicegate/voicegate/internal/config"
	"github.com/voicegate/voicegate/internal/database"
	"github.com/voicegate/voicegate/internal/database/models"
	"github.com/voicegate/voicegate/internal/dialogue"
	"github.com/voicegate/voicegate/internal/fastagi"
	"github.com/voicegate/voicegate/internal/llm"
	"github.com/voicegate/voicegate/internal/media"
	"github.com/voicegate/voicegate/internal/metrics"
	"github.com/voicegate/voicegate/internal/speech"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting voicegate",
		"agi_port", cfg.AGIPort,
		"http_port", cfg.HTTPPort,
		"data_dir", cfg.DataDir,
	)

	// Open database and run migrations.
	db, err := database.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	calls := database.NewCallRepository(db)

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// Collaborator clients are stateless and shared by all calls.
	asr := speech.NewTranscriber(cfg.ASRURL, logger)
	tts := speech.NewSynthesizer(cfg.TTSURL, logger)
	converter := media.NewConverter(cfg.SoundsDir, logger)
	gen := llm.NewClient(cfg.LLMURL, cfg.LLMModel, logger)

	settings := dialogueSettings(cfg)

	// Reclaim converted prompts and any capture files orphaned by
	// crashed calls.
	media.StartCleanupTicker(appCtx, []string{cfg.SoundsDir, cfg.SpoolDir},
		time.Hour, 10*time.Minute, logger)

	handler := func(ctx context.Context, session *agi.Session) {
		ctrl := dialogue.NewController(session, asr, tts, converter, gen, settings, logger)
		summary := ctrl.Run(ctx)
		recordCall(calls, summary)
	}

	agiSrv := fastagi.NewServer(fmt.Sprintf(":%d", cfg.AGIPort), handler, logger)
	if err := agiSrv.Start(appCtx); err != nil {
		slog.Error("failed to start agi listener", "error", err)
		os.Exit(1)
	}

	// Metrics are gathered at scrape time from the listener and call log.
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(agiSrv, calls, time.Now()))

	limiter := middleware.NewIPRateLimiter(middleware.DefaultRateLimitConfig())
	defer limiter.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      api.NewServer(calls, agiSrv, registry, limiter),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout. In-flight calls get time to say
	// goodbye before the listener is torn down.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down servers")
	if err := agiSrv.Stop(ctx); err != nil {
		slog.Error("agi listener shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("voicegate stopped")
}

// dialogueSettings maps daemon configuration onto the conversation
// engine's tunables, keeping the shipped reply texts.
func dialogueSettings(cfg *config.Config) dialogue.Settings {
	s := dialogue.DefaultSettings()
	s.MaxTurns = cfg.MaxTurns
	s.MaxCallDuration = cfg.MaxCallDuration()
	s.InputTimeout = cfg.InputTimeout()
	s.RetryTimeout = cfg.RetryTimeout()
	s.BargeWindow = cfg.BargeWindow()
	s.MaxFailedInteractions = cfg.MaxFailedInteractions
	s.MaxNoResponse = cfg.MaxNoResponse
	s.BargeMinBytes = int64(cfg.BargeMinBytes)
	s.TurnMinBytes = int64(cfg.TurnMinBytes)
	s.SpoolDir = cfg.SpoolDir
	s.FallbackPrompt = cfg.FallbackPrompt
	s.ExitPhrases = cfg.ExitPhraseList()
	s.UrgentPhrases = cfg.UrgentPhraseList()
	return s
}

// recordCall writes a finished call to the log. Persistence failures
// are logged and never affect call handling.
func recordCall(calls database.CallRepository, summary dialogue.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reason := string(summary.ExitReason)
	if summary.Error != "" {
		reason = "error"
	}

	record := &models.Call{
		UniqueID:   summary.UniqueID,
		CallerID:   summary.CallerID,
		Channel:    summary.Channel,
		StartTime:  summary.StartedAt,
		EndTime:    summary.EndedAt,
		Duration:   int(summary.EndedAt.Sub(summary.StartedAt).Seconds()),
		Turns:      summary.Turns,
		Interrupts: summary.Interrupts,
		ExitReason: reason,
		Error:      summary.Error,
	}
	if err := calls.Create(ctx, record); err != nil {
		slog.Error("failed to record call", "error", err, "caller", summary.CallerID)
	}
}
