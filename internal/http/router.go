package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/syllabus-studio/internal/http/handlers"
	httpMW "github.com/yungbote/syllabus-studio/internal/http/middleware"
	"github.com/yungbote/syllabus-studio/internal/observability"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string
	Metrics        *observability.Metrics

	HealthHandler   *httpH.HealthHandler
	DocumentHandler *httpH.DocumentHandler
	SyllabusHandler *httpH.SyllabusHandler
	ProgressHandler *httpH.ProgressHandler
	RealtimeHandler *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := r.Group("/api")
	{
		// Documents
		if cfg.DocumentHandler != nil {
			api.POST("/documents/extract", cfg.DocumentHandler.Extract)
		}

		// Syllabus workspaces
		if cfg.SyllabusHandler != nil {
			h := cfg.SyllabusHandler
			api.POST("/syllabus/sessions", h.CreateSession)
			api.GET("/syllabus/sessions/:id", h.GetSession)
			api.DELETE("/syllabus/sessions/:id", h.DeleteSession)
			api.POST("/syllabus/sessions/:id/generate", h.Generate)
			api.GET("/syllabus/sessions/:id/modules", h.ListModules)
			api.GET("/syllabus/sessions/:id/lessons", h.ListLessons)
			api.PATCH("/syllabus/sessions/:id/modules/:moduleId", h.PatchModule)
			api.PATCH("/syllabus/sessions/:id/classes/:classId", h.PatchClass)
			api.POST("/syllabus/sessions/:id/classes/:classId/faqs", h.FetchFAQs)
			api.POST("/syllabus/sessions/:id/images", h.FillImages)
		}

		// Live progress
		if cfg.ProgressHandler != nil {
			api.GET("/progress", cfg.ProgressHandler.GetSnapshot)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}
	}

	return r
}
