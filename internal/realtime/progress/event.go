package progress

import (
	"regexp"
	"strconv"
	"time"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Event is one "progress" push from the backend.
type Event struct {
	Progress string `json:"progress"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
}

var percentRE = regexp.MustCompile(`^\s*(\d+)\s*%`)

// Percent reads the leading "<digits>%" of a progress string, 0 otherwise.
func Percent(progress string) int {
	m := percentRE.FindStringSubmatch(progress)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// Snapshot is the channel's current state. Event is the latest push only;
// earlier pushes are not retained.
type Snapshot struct {
	Connected  bool      `json:"connected"`
	SocketID   string    `json:"socketId,omitempty"`
	Event      *Event    `json:"event,omitempty"`
	Percent    int       `json:"percent"`
	ReceivedAt time.Time `json:"receivedAt,omitempty"`
	// GaveUp is set once reconnect attempts are exhausted.
	GaveUp bool `json:"gaveUp"`
}
