package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yungbote/syllabus-studio/internal/platform/logger"
)

var ErrAlreadyStarted = errors.New("progress channel already started")

// ProgressEvent is the socket event name the channel listens for.
const ProgressEvent = "progress"

type Config struct {
	URL               string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	HandshakeTimeout  time.Duration
	Header            http.Header
}

// Channel is the process-wide push connection. Only the channel mutates
// its snapshot; everything else reads it through Snapshot or listeners.
type Channel struct {
	log    *logger.Logger
	cfg    Config
	dialer *websocket.Dialer

	mu         sync.RWMutex
	snap       Snapshot
	listeners  map[int]func(Event, Snapshot)
	statusSubs map[int]func(Snapshot)
	nextSub    int

	lifeMu  sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func New(log *logger.Logger, cfg Config) *Channel {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ReconnectAttempts < 0 {
		cfg.ReconnectAttempts = 0
	}
	return &Channel{
		log:        log.With("component", "LiveProgressChannel"),
		cfg:        cfg,
		dialer:     &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		listeners:  make(map[int]func(Event, Snapshot)),
		statusSubs: make(map[int]func(Snapshot)),
	}
}

// Start connects in the background. The connection lives until Stop or
// until reconnect attempts run out.
func (c *Channel) Start(ctx context.Context) error {
	endpoint, err := socketURL(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("progress channel url: %w", err)
	}
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.started = true

	c.mu.Lock()
	c.snap.GaveUp = false
	c.mu.Unlock()

	go c.run(runCtx, endpoint, c.done)
	c.log.Info("Live progress channel starting", "url", endpoint)
	return nil
}

// Stop closes the connection and waits for the background loop to exit.
// It is safe to call more than once.
func (c *Channel) Stop() {
	c.lifeMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.started = false
	c.lifeMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.setConnected(false, "")
	c.log.Info("Live progress channel stopped")
}

// Done is closed when the current run loop exits. It returns nil before
// Start.
func (c *Channel) Done() <-chan struct{} {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	return c.done
}

func (c *Channel) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.snap
	if s.Event != nil {
		ev := *s.Event
		s.Event = &ev
	}
	return s
}

// OnEvent registers fn for every progress event and returns a function
// that removes it.
func (c *Channel) OnEvent(fn func(Event, Snapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// OnStatus registers fn for connectivity changes.
func (c *Channel) OnStatus(fn func(Snapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.statusSubs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.statusSubs, id)
		c.mu.Unlock()
	}
}

func (c *Channel) run(ctx context.Context, endpoint string, done chan struct{}) {
	defer close(done)
	failures := 0
	for {
		connected, err := c.session(ctx, endpoint)
		c.setConnected(false, "")
		if ctx.Err() != nil {
			return
		}
		if connected {
			failures = 0
		}
		failures++
		if failures > c.cfg.ReconnectAttempts {
			c.log.Error("Live progress channel giving up", "attempts", c.cfg.ReconnectAttempts, "error", err)
			c.giveUp()
			return
		}
		c.log.Warn("Live progress channel disconnected, reconnecting",
			"attempt", failures,
			"max_attempts", c.cfg.ReconnectAttempts,
			"delay", c.cfg.ReconnectDelay.String(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// session dials, completes the Engine.IO and Socket.IO handshakes and
// reads until the connection ends. connected reports whether the
// namespace connect was acknowledged.
func (c *Channel) session(ctx context.Context, endpoint string) (connected bool, err error) {
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, c.cfg.Header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial: %w (http %d)", err, resp.StatusCode)
		}
		return false, fmt.Errorf("dial: %w", err)
	}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = conn.Close()
	}()

	liveness := c.cfg.HandshakeTimeout
	for {
		_ = conn.SetReadDeadline(time.Now().Add(liveness))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return connected, fmt.Errorf("read: %w", err)
		}
		f, err := parseFrame(string(raw))
		if err != nil {
			c.log.Warn("Ignoring malformed frame", "error", err)
			continue
		}
		switch f.kind {
		case frameOpen:
			liveness = f.open.liveness()
			if err := conn.WriteMessage(websocket.TextMessage, []byte{eioMessage, sioConnect}); err != nil {
				return connected, fmt.Errorf("namespace connect: %w", err)
			}
		case framePing:
			if err := conn.WriteMessage(websocket.TextMessage, []byte{eioPong}); err != nil {
				return connected, fmt.Errorf("pong: %w", err)
			}
		case frameConnect:
			connected = true
			c.setConnected(true, f.sid)
			c.log.Info("Live progress channel connected", "socket_id", f.sid)
		case frameConnectError:
			return connected, fmt.Errorf("connect error: %s", f.err)
		case frameDisconnect, frameClose:
			return connected, errors.New("server closed the connection")
		case frameEvent:
			if f.event == ProgressEvent {
				c.handleProgress(f.args)
			}
		}
	}
}

func (c *Channel) handleProgress(args []json.RawMessage) {
	if len(args) == 0 {
		c.log.Warn("Progress event without payload")
		return
	}
	var ev Event
	if err := json.Unmarshal(args[0], &ev); err != nil {
		c.log.Warn("Progress event payload not an object", "error", err)
		return
	}

	c.mu.Lock()
	c.snap.Event = &ev
	c.snap.Percent = Percent(ev.Progress)
	c.snap.ReceivedAt = time.Now()
	snap := c.snap
	listeners := make([]func(Event, Snapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	c.log.Debug("Progress event", "status", ev.Status, "percent", snap.Percent)
	for _, fn := range listeners {
		fn(ev, snap)
	}
}

func (c *Channel) setConnected(connected bool, socketID string) {
	c.mu.Lock()
	if c.snap.Connected == connected && c.snap.SocketID == socketID {
		c.mu.Unlock()
		return
	}
	c.snap.Connected = connected
	c.snap.SocketID = socketID
	snap, subs := c.snap, c.statusListenersLocked()
	c.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func (c *Channel) giveUp() {
	c.mu.Lock()
	c.snap.GaveUp = true
	snap, subs := c.snap, c.statusListenersLocked()
	c.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func (c *Channel) statusListenersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(c.statusSubs))
	for _, fn := range c.statusSubs {
		out = append(out, fn)
	}
	return out
}
