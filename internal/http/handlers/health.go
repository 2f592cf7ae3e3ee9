package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/syllabus-studio/internal/http/response"
)

// SessionCounter is satisfied by *session.Registry.
type SessionCounter interface {
	Len() int
}

type HealthHandler struct {
	version  string
	sessions SessionCounter
}

// NewHealthHandler accepts a nil counter; sessions is then reported as 0.
func NewHealthHandler(version string, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{version: version, sessions: sessions}
}

type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Sessions int    `json:"sessions"`
}

// GET /healthcheck
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	n := 0
	if h.sessions != nil {
		n = h.sessions.Len()
	}
	response.RespondOK(c, healthResponse{Status: "ok", Version: h.version, Sessions: n})
}
