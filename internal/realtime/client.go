package realtime

import (
	"github.com/google/uuid"

	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

type SSEEvent string

const (
	// SSEEventProgressToast carries a Live Progress Channel event.
	SSEEventProgressToast SSEEvent = "ProgressToast"
	// SSEEventProgressChannelStatus reports channel connect/disconnect.
	SSEEventProgressChannelStatus SSEEvent = "ProgressChannelStatus"
	// SSEEventSyllabusSessionUpdated carries a session snapshot.
	SSEEventSyllabusSessionUpdated SSEEvent = "SyllabusSessionUpdated"
	// SSEEventSyllabusNotice carries a user-visible notice for a session.
	SSEEventSyllabusNotice SSEEvent = "SyllabusNotice"
)

// ToastChannel is the channel every SSE client joins for global toasts.
const ToastChannel = "toasts"

// SessionChannel is the per-workspace channel for session updates.
func SessionChannel(sessionID string) string { return "session:" + sessionID }

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

type SSEClient struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
	done     chan struct{}
	Logger   *logger.Logger
}
