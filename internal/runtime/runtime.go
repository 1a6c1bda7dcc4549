package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aurelabs/aura-core/internal/avatar"
	"github.com/aurelabs/aura-core/internal/bus"
	"github.com/aurelabs/aura-core/internal/chat"
	"github.com/aurelabs/aura-core/internal/chatlog"
	"github.com/aurelabs/aura-core/internal/config"
	"github.com/aurelabs/aura-core/internal/form"
	"github.com/aurelabs/aura-core/internal/gateway"
	"github.com/aurelabs/aura-core/internal/natsserver"
	"github.com/aurelabs/aura-core/internal/speech/recognition"
	"github.com/aurelabs/aura-core/internal/speech/synthesis"
	"github.com/aurelabs/aura-core/internal/voice"
)

// Runtime wires the whole interaction loop: engines, coordinator, sessions,
// gateway, avatar bridge, and the health/metrics endpoint.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded NATS: %w", err)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()

	store, err := chatlog.Open(ctx, r.cfg.ChatLog, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open chat log: %w", err)
	}
	defer store.Close()

	recogEngine, err := recognition.NewEngine(r.cfg.Voice.Recognition)
	if err != nil {
		return fmt.Errorf("failed to build recognition engine: %w", err)
	}
	synthEngine, err := synthesis.NewEngine(r.cfg.Voice.Synthesis)
	if err != nil {
		return fmt.Errorf("failed to build synthesis engine: %w", err)
	}

	coordinator := voice.New(ctx, r.cfg.Voice, recogEngine, synthEngine, busClient, r.logger)
	defer coordinator.Close()

	gw := gateway.NewService(ctx, busClient, coordinator, r.logger)

	var formSession *form.Session
	if r.cfg.Form.Enabled {
		formSession = form.NewSession(coordinator, r.cfg.Form, gw.PublishFormState, r.logger)
		defer formSession.Close()
	}
	var chatSession *chat.Session
	if r.cfg.Chat.Enabled {
		chatSession = chat.NewSession(coordinator, r.cfg.Chat, store, gw.PublishChatMessage, r.logger)
		defer chatSession.Shutdown()
	}

	gw.Bind(formSession, chatSession)
	if err := gw.Start(); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}
	defer gw.Close()

	avatarBridge := avatar.NewService(ctx, r.cfg.Avatar, busClient, r.logger)
	if err := avatarBridge.Start(); err != nil {
		return fmt.Errorf("failed to start avatar bridge: %w", err)
	}
	defer avatarBridge.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
