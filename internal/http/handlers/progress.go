package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/syllabus-studio/internal/http/response"
	"github.com/yungbote/syllabus-studio/internal/realtime/progress"
)

type ProgressSource interface {
	Snapshot() progress.Snapshot
}

type ProgressHandler struct {
	channel ProgressSource
}

// NewProgressHandler accepts a nil channel when PROGRESS_SOCKET_URL is unset.
func NewProgressHandler(channel ProgressSource) *ProgressHandler {
	return &ProgressHandler{channel: channel}
}

type progressResponse struct {
	Configured bool `json:"configured"`
	progress.Snapshot
}

// GET /api/progress
func (h *ProgressHandler) GetSnapshot(c *gin.Context) {
	if h.channel == nil {
		response.RespondOK(c, progressResponse{})
		return
	}
	response.RespondOK(c, progressResponse{Configured: true, Snapshot: h.channel.Snapshot()})
}
