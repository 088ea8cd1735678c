package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/careloop/voicechat/internal/chat"
	"github.com/careloop/voicechat/internal/config"
	"github.com/careloop/voicechat/internal/moderation"
	"github.com/careloop/voicechat/internal/observability"
	"github.com/careloop/voicechat/internal/recorder"
	"github.com/careloop/voicechat/internal/resilience"
	"github.com/careloop/voicechat/internal/session"
	"github.com/careloop/voicechat/internal/transcription"
)

// pipelineTranscriber binds the transcription pipeline to the per-turn
// options configured at startup
type pipelineTranscriber struct {
	pipeline *transcription.Pipeline
	opts     transcription.Options
}

func (p *pipelineTranscriber) Transcribe(ctx context.Context, artifact recorder.Artifact) (string, error) {
	return p.pipeline.Transcribe(ctx, artifact, p.opts)
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("api_base_url", cfg.APIBaseURL).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voicechat session core starting")

	// Local observability server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Observability server failed to start")
		}
	}()

	// Session catalog with its local cache
	var catalogStore session.Store
	if store, err := session.NewFileStore(cfg.CachePath); err != nil {
		logger.Warn().Err(err).Msg("Session cache unavailable, continuing without persistence")
	} else {
		catalogStore = store
	}
	sessionClient := session.NewClient(cfg.APIBaseURL, cfg.APIToken, time.Duration(cfg.SessionTimeout)*time.Second)
	registry := session.NewRegistry(sessionClient, catalogStore, cfg.SessionCap)

	// Conversation pipeline
	notify := func(msg string) { fmt.Fprintf(os.Stderr, "! %s\n", msg) }
	pipeline := transcription.NewPipeline(transcription.Config{
		BaseURL:            cfg.APIBaseURL,
		Token:              cfg.APIToken,
		Timeout:            time.Duration(cfg.TranscribeTimeout) * time.Second,
		StreamDialAttempts: cfg.StreamDialAttempts,
		StreamDialBackoff:  time.Duration(cfg.StreamDialBackoffMs) * time.Millisecond,
	})
	chatClient := chat.NewClient(cfg.APIBaseURL, cfg.APIToken,
		time.Duration(cfg.ChatTimeout)*time.Second,
		time.Duration(cfg.HistoryTimeout)*time.Second)
	breaker := resilience.NewCircuitBreaker("chat",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second)
	orchestrator := chat.NewOrchestrator(chatClient, registry,
		moderation.NewFilter(cfg.ExtraModerationTerms()...), breaker, chat.Config{
			ChatTimeout:  time.Duration(cfg.ChatTimeout) * time.Second,
			HistoryLimit: cfg.HistoryLimit,
			Transcriber: &pipelineTranscriber{
				pipeline: pipeline,
				opts: transcription.Options{
					Language:    cfg.TranscribeLanguage,
					Model:       cfg.TranscribeModel,
					DurationSec: cfg.RecordMaxSeconds,
				},
			},
			Notify: notify,
		})

	prober := observability.NewProber(cfg.ProbeTimeout())

	// Best-effort catalog sync at startup
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.SessionTimeout)*time.Second)
	if err := registry.RefreshFromServer(ctx); err != nil {
		logger.Warn().Err(err).Msg("Starting with cached session catalog")
	}
	cancel()

	replDone := make(chan struct{})
	go func() {
		defer close(replDone)
		runREPL(cfg, orchestrator, registry, prober, notify)
	}()

	// Wait for interrupt or end of input
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-replDone:
	}

	logger.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Observability server forced to shutdown")
	}

	logger.Info().Msg("Exited gracefully")
}

// runREPL drives the conversation from stdin. Plain lines are text turns;
// lines starting with / are commands.
func runREPL(cfg *config.Config, orchestrator *chat.Orchestrator, registry *session.Registry, prober *observability.Prober, notify chat.Notifier) {
	printed := 0
	printed = render(orchestrator, printed)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	fmt.Print("> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		ctx := context.Background()

		switch {
		case line == "":

		case line == "/quit":
			return

		case line == "/new":
			id, acked := orchestrator.StartSession(ctx)
			if !acked {
				notify("Cuộc trò chuyện mới chưa được đồng bộ với máy chủ.")
			}
			fmt.Printf("Started %s\n", id)
			printed = 0

		case line == "/sessions":
			for _, s := range registry.ListLocal() {
				marker := " "
				if s.ID == orchestrator.ActiveSession() {
					marker = "*"
				}
				fmt.Printf("%s %s  %s\n", marker, s.ID, s.Title)
			}

		case line == "/refresh":
			if err := registry.RefreshFromServer(ctx); err != nil {
				notify("Không thể tải danh sách trò chuyện từ máy chủ.")
			}

		case strings.HasPrefix(line, "/switch "):
			if err := orchestrator.SwitchTo(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/switch "))); err != nil {
				notify("Không thể mở cuộc trò chuyện.")
			}
			printed = 0

		case strings.HasPrefix(line, "/delete "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/delete "))
			if err := orchestrator.DeleteSession(ctx, id); err == nil {
				fmt.Printf("Deleted %s\n", id)
				printed = 0
			}

		case strings.HasPrefix(line, "/voice "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/voice "))
			voiceTurn(ctx, cfg, orchestrator, prober, notify, path)

		default:
			if err := orchestrator.Send(ctx, line); err != nil {
				notify("Đang gửi tin nhắn trước đó, vui lòng đợi.")
			}
		}

		printed = render(orchestrator, printed)
		fmt.Print("> ")
	}
}

// voiceTurn runs a full recorded turn from an audio file: probe the
// backend, run the capture through the recording state machine, then
// transcribe and send.
func voiceTurn(ctx context.Context, cfg *config.Config, orchestrator *chat.Orchestrator, prober *observability.Prober, notify chat.Notifier, path string) {
	healthy, err := prober.Probe(ctx, cfg.ProbeURL)
	if err != nil || !healthy {
		notify("Máy chủ hiện không khả dụng, chưa thể ghi âm.")
		return
	}

	controller := recorder.NewController(recorder.NewFileDevice(path), nil, cfg.RecordDeadline(), recorder.Notifier(notify))
	defer controller.Close()

	if err := controller.Start(ctx); err != nil {
		notify("Không thể bắt đầu ghi âm.")
		return
	}
	artifact, err := controller.Stop(ctx)
	if err != nil {
		notify("Ghi âm thất bại.")
		return
	}

	_ = orchestrator.SendVoice(ctx, artifact)
}

// render prints log entries appended since the last call and the current
// follow-up suggestions. Returns the new printed watermark.
func render(orchestrator *chat.Orchestrator, printed int) int {
	messages := orchestrator.Messages()
	for _, m := range messages[min(printed, len(messages)):] {
		prefix := "bot"
		if m.Role == chat.RoleUser {
			prefix = "you"
		}
		fmt.Printf("[%s] %s\n", prefix, m.Content)
	}
	for _, s := range orchestrator.Suggestions() {
		fmt.Printf("  ? %s\n", s)
	}
	return len(messages)
}
