package realtime

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"elsa-fe/internal/domain"
)

// DefaultHealthCheckDelay is how long an abnormal closure may persist before
// the connection is reported lost. Fast reconnects inside this window never
// surface an error.
const DefaultHealthCheckDelay = 5 * time.Second

// Config wires a Conn to one session.
type Config struct {
	// URL is the realtime endpoint base, e.g. ws://host/ws/quiz. The session
	// code is appended as a path segment and the token as a query parameter.
	URL   string
	Code  string
	Token string

	HealthCheckDelay time.Duration
	Clock            clockwork.Clock
	Logger           zerolog.Logger

	// OnEvent receives every inbound frame, in receipt order, from a single
	// reader goroutine.
	OnEvent func(data []byte)
	// OnConnectionLost fires once per abnormal closure that outlives the
	// health-check delay.
	OnConnectionLost func()
}

// Conn owns the lifetime of the realtime channel for one session: it dials
// with the credential, delivers inbound events in order, recovers from
// abnormal closures, and closes cleanly on intentional teardown.
type Conn struct {
	cfg    Config
	dialer *websocket.Dialer
	log    zerolog.Logger

	mu          sync.Mutex
	ws          *websocket.Conn
	connected   bool
	closed      bool
	healthTimer clockwork.Timer
}

// New validates the config and returns an unopened Conn. A missing
// credential fails with ErrUnauthenticated before any dial is attempted.
func New(cfg Config) (*Conn, error) {
	if cfg.Token == "" {
		return nil, domain.ErrUnauthenticated
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.HealthCheckDelay <= 0 {
		cfg.HealthCheckDelay = DefaultHealthCheckDelay
	}
	return &Conn{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		log:    cfg.Logger.With().Str("component", "realtime").Str("code", cfg.Code).Logger(),
	}, nil
}

// Open dials the channel. Opening an already-open or closed Conn is a
// caller error.
func (c *Conn) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrNotConnected
	}
	if c.connected {
		return domain.ErrAlreadyConnected
	}
	return c.dialLocked(ctx)
}

func (c *Conn) dialLocked(ctx context.Context) error {
	endpoint := strings.TrimRight(c.cfg.URL, "/") + "/" + url.PathEscape(c.cfg.Code) +
		"?token=" + url.QueryEscape(c.cfg.Token)

	ws, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial realtime channel: %w", err)
	}

	c.stopHealthTimerLocked()
	c.ws = ws
	c.connected = true

	attemptID := uuid.New().String()
	c.log.Info().Str("attempt_id", attemptID).Msg("channel open")
	go c.readLoop(ws, attemptID)
	return nil
}

// readLoop delivers frames in receipt order. One goroutine per dial; a
// stale loop from a previous dial exits without touching current state.
func (c *Conn) readLoop(ws *websocket.Conn, attemptID string) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleReadError(ws, attemptID, err)
			return
		}
		if c.cfg.OnEvent != nil {
			c.cfg.OnEvent(data)
		}
	}
}

func (c *Conn) handleReadError(ws *websocket.Conn, attemptID string, err error) {
	c.mu.Lock()
	if c.ws != ws {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.ws = nil

	if c.closed || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.mu.Unlock()
		c.log.Debug().Str("attempt_id", attemptID).Msg("channel closed")
		return
	}

	c.log.Warn().Err(err).Str("attempt_id", attemptID).Msg("channel closed abnormally")
	c.stopHealthTimerLocked()
	c.healthTimer = c.cfg.Clock.AfterFunc(c.cfg.HealthCheckDelay, c.healthCheck)
	c.mu.Unlock()
}

// healthCheck fires once after an abnormal closure. If the channel came back
// in the meantime (foreground redial), nothing is surfaced.
func (c *Conn) healthCheck() {
	c.mu.Lock()
	lost := !c.connected && !c.closed
	c.healthTimer = nil
	c.mu.Unlock()

	if lost {
		c.log.Error().Msg("connection lost")
		if c.cfg.OnConnectionLost != nil {
			c.cfg.OnConnectionLost()
		}
	}
}

// HandleForeground reacts to the application regaining focus: if the channel
// dropped while backgrounded, it redials. A no-op while connected or after
// an intentional close.
func (c *Conn) HandleForeground(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.connected {
		return nil
	}
	return c.dialLocked(ctx)
}

// Send marshals and writes an outbound command. Sends on a closed or
// never-opened channel fail with ErrNotConnected.
func (c *Conn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.ws == nil {
		return domain.ErrNotConnected
	}
	if err := c.ws.WriteJSON(v); err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	return nil
}

// Close tears the channel down intentionally: the normal closure code is
// sent so the peer (and this Conn's own read loop) does not treat it as a
// failure, and any pending health check is cancelled. Idempotent.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopHealthTimerLocked()

	if c.ws != nil {
		deadline := c.cfg.Clock.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "leaving session"), deadline)
		_ = c.ws.Close()
		c.ws = nil
	}
	c.connected = false
	c.log.Info().Msg("channel closed intentionally")
}

func (c *Conn) stopHealthTimerLocked() {
	if c.healthTimer != nil {
		c.healthTimer.Stop()
		c.healthTimer = nil
	}
}
