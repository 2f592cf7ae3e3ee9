package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/yungbote/syllabus-studio/internal/http"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/config"
	"github.com/yungbote/syllabus-studio/internal/observability"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
	"github.com/yungbote/syllabus-studio/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Syllabus config.Config
	Server   *http.Server
	Clients  Clients
	Services Services
	SSEHub   *realtime.SSEHub
	Metrics  *observability.Metrics

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)
	sc, err := config.Load(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load syllabus config: %w", err)
	}

	ctx := context.Background()
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	var metrics *observability.Metrics
	if observability.MetricsEnabled() {
		metrics = observability.NewMetrics()
	}

	clients, err := wireClients(ctx, log)
	if err != nil {
		_ = otelShutdown(ctx)
		log.Sync()
		return nil, err
	}

	hub := realtime.NewSSEHub(log)
	var publisher realtime.Publisher
	if clients.SSEBus != nil {
		publisher = clients.SSEBus
	}
	emitter := realtime.NewEmitter(log, hub, publisher)

	services := wireServices(log, cfg, sc, clients, emitter, metrics)
	handlers := wireHandlers(log, cfg, sc, services, hub, metrics)
	server := wireServer(log, cfg, handlers, metrics)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Syllabus:     sc,
		Server:       server,
		Clients:      clients,
		Services:     services,
		SSEHub:       hub,
		Metrics:      metrics,
		otelShutdown: otelShutdown,
	}, nil
}

// Start brings up the background pieces: the bus forwarder and the Live
// Progress Channel.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Clients.SSEBus != nil {
		if err := a.Clients.SSEBus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
			return fmt.Errorf("start SSE bus forwarder: %w", err)
		}
	}
	if a.Services.Progress != nil {
		if err := a.Services.Progress.Start(ctx); err != nil {
			return fmt.Errorf("start live progress channel: %w", err)
		}
	}
	return nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Server listening", "addr", addr)
	return a.Server.Run(addr)
}

// Close drains HTTP, disposes every workspace session and tears down the
// background connections.
func (a *App) Close() {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	if a.SSEHub != nil {
		a.SSEHub.Shutdown()
	}
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Log.Warn("HTTP shutdown incomplete", "error", err)
		}
	}
	if a.Services.Sessions != nil {
		a.Services.Sessions.CloseAll()
	}
	if a.Services.Progress != nil {
		a.Services.Progress.Stop()
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

func (a *App) shutdownTimeout() time.Duration {
	if a.Cfg.ShutdownTimeout > 0 {
		return a.Cfg.ShutdownTimeout
	}
	return 15 * time.Second
}
