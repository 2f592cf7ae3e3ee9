package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/syllabus-studio/internal/http/response"
	"github.com/yungbote/syllabus-studio/internal/modules/syllabus/session"
	"github.com/yungbote/syllabus-studio/internal/observability"
	"github.com/yungbote/syllabus-studio/internal/platform/logger"
	"github.com/yungbote/syllabus-studio/internal/realtime"
)

type RealtimeHandler struct {
	log      *logger.Logger
	hub      *realtime.SSEHub
	sessions *session.Registry
	metrics  *observability.Metrics
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, sessions *session.Registry, metrics *observability.Metrics) *RealtimeHandler {
	return &RealtimeHandler{
		log:      log.With("handler", "RealtimeHandler"),
		hub:      hub,
		sessions: sessions,
		metrics:  metrics,
	}
}

// GET /api/sse/stream?session=<id>
//
// Every client receives toasts; passing a session id also subscribes to
// that workspace's snapshot updates.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("session"))
	if sessionID != "" {
		if _, ok := h.sessions.Get(sessionID); !ok {
			response.RespondAPIError(c, apiError(fmt.Errorf("%w: %q", errSessionNotFound, sessionID)))
			return
		}
	}

	client := h.hub.NewSSEClient()
	h.hub.AddChannel(client, realtime.ToastChannel)
	if sessionID != "" {
		h.hub.AddChannel(client, realtime.SessionChannel(sessionID))
	}
	h.metrics.SSEClients(1)
	defer h.metrics.SSEClients(-1)

	h.log.Debug("SSE stream open", "client_id", client.ID.String(), "session_id", sessionID)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.hub.CloseClient(client)
	h.log.Debug("SSE stream closed", "client_id", client.ID.String())
}
