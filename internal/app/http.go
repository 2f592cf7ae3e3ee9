package app

import (
	"github.com/yungbote/syllabus-studio/internal/http"
	httpH "github.com/yungbote/syllabus-studio/internal/http/handlers"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/config"
	"github.com/yungbote/syllabus-studio/internal/observability"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
	"github.com/yungbote/syllabus-studio/internal/realtime"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Document *httpH.DocumentHandler
	Syllabus *httpH.SyllabusHandler
	Progress *httpH.ProgressHandler
	Realtime *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, cfg Config, sc config.Config, services Services, hub *realtime.SSEHub, metrics *observability.Metrics) Handlers {
	log.Info("Wiring handlers...")
	var source httpH.ProgressSource
	if services.Progress != nil {
		source = services.Progress
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(cfg.Version, services.Sessions),
		Document: httpH.NewDocumentHandler(log, services.Extractor, sc.Upload, metrics),
		Syllabus: httpH.NewSyllabusHandler(log, services.Sessions, sc, services.Images, services.FAQs, metrics),
		Progress: httpH.NewProgressHandler(source),
		Realtime: httpH.NewRealtimeHandler(log, hub, services.Sessions, metrics),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:             log,
		ServiceName:     cfg.ServiceName,
		AllowedOrigins:  cfg.AllowedOrigins,
		Metrics:         metrics,
		HealthHandler:   handlers.Health,
		DocumentHandler: handlers.Document,
		SyllabusHandler: handlers.Syllabus,
		ProgressHandler: handlers.Progress,
		RealtimeHandler: handlers.Realtime,
	})
}
