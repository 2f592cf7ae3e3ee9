package progress

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Engine.IO v4 packet types (first byte of every websocket frame).
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioNoop    = '6'
)

// Socket.IO v5 packet types (second byte of an Engine.IO message).
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

type frameKind int

const (
	frameIgnored frameKind = iota
	frameOpen
	frameClose
	framePing
	frameConnect
	frameDisconnect
	frameEvent
	frameConnectError
)

type frame struct {
	kind  frameKind
	open  openPayload
	sid   string
	event string
	args  []json.RawMessage
	err   string
}

type openPayload struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// liveness is how long the client waits for any frame before treating the
// connection as dead.
func (o openPayload) liveness() time.Duration {
	d := time.Duration(o.PingInterval+o.PingTimeout) * time.Millisecond
	if d <= 0 {
		return 45 * time.Second
	}
	return d
}

func parseFrame(s string) (frame, error) {
	if s == "" {
		return frame{}, fmt.Errorf("empty frame")
	}
	switch s[0] {
	case eioOpen:
		var op openPayload
		if err := json.Unmarshal([]byte(s[1:]), &op); err != nil {
			return frame{}, fmt.Errorf("open payload: %w", err)
		}
		return frame{kind: frameOpen, open: op}, nil
	case eioClose:
		return frame{kind: frameClose}, nil
	case eioPing:
		return frame{kind: framePing}, nil
	case eioPong, eioNoop:
		return frame{kind: frameIgnored}, nil
	case eioMessage:
		return parseSocketPacket(s[1:])
	default:
		return frame{kind: frameIgnored}, nil
	}
}

func parseSocketPacket(s string) (frame, error) {
	if s == "" {
		return frame{}, fmt.Errorf("empty socket packet")
	}
	kind := s[0]
	body := stripNamespaceAndAck(s[1:])
	switch kind {
	case sioConnect:
		var p struct {
			SID string `json:"sid"`
		}
		if body != "" {
			if err := json.Unmarshal([]byte(body), &p); err != nil {
				return frame{}, fmt.Errorf("connect payload: %w", err)
			}
		}
		return frame{kind: frameConnect, sid: p.SID}, nil
	case sioDisconnect:
		return frame{kind: frameDisconnect}, nil
	case sioConnectError:
		var p struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal([]byte(body), &p)
		if p.Message == "" {
			p.Message = body
		}
		return frame{kind: frameConnectError, err: p.Message}, nil
	case sioEvent:
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(body), &arr); err != nil {
			return frame{}, fmt.Errorf("event payload: %w", err)
		}
		if len(arr) == 0 {
			return frame{}, fmt.Errorf("event without name")
		}
		var name string
		if err := json.Unmarshal(arr[0], &name); err != nil {
			return frame{}, fmt.Errorf("event name: %w", err)
		}
		return frame{kind: frameEvent, event: name, args: arr[1:]}, nil
	default:
		return frame{kind: frameIgnored}, nil
	}
}

// stripNamespaceAndAck drops an optional "/nsp," prefix and ack id digits.
func stripNamespaceAndAck(s string) string {
	if strings.HasPrefix(s, "/") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[i+1:]
		} else {
			return ""
		}
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[i:]
}

// socketURL turns a configured base URL (http, https, ws or wss) into the
// Engine.IO websocket endpoint. A bare host gets the default /socket.io/
// path.
func socketURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
