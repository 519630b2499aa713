// Package push holds the websocket client side of a job's event stream:
// one channel per job id, decoded into monitor push events.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/swellwatch/internal/monitor"
)

var ErrNotConnected = errors.New("push channel not connected")

// envelope is the wire shape of a push message. The result and elapsed
// fields are only present for some types.
type envelope struct {
	Type           string          `json:"type"`
	Message        string          `json:"message,omitempty"`
	Result         *monitor.Result `json:"result,omitempty"`
	ElapsedSeconds int             `json:"elapsed_seconds,omitempty"`
}

// stopFrame is the client->server cancellation signal.
const stopFrame = "stop"

// Channel streams events for exactly one job. A dropped connection only
// flips the disconnected flag; job status is the poll's business, so losing
// the stream is never mistaken for job failure. There is no automatic
// reconnect.
type Channel struct {
	jobID   string
	url     string
	header  http.Header
	deliver func(monitor.PushEvent)
	logger  *slog.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	disconnected bool
	closed       bool
}

func NewChannel(url string, header http.Header, jobID string, deliver func(monitor.PushEvent), logger *slog.Logger) *Channel {
	return &Channel{
		jobID:   jobID,
		url:     url,
		header:  header,
		deliver: deliver,
		logger:  logger,
	}
}

// Connect dials the stream and starts the read loop. On error the channel
// is left in the disconnected state.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.disconnected = true
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.conn = conn
	c.disconnected = false
	go c.readLoop(conn)
	return nil
}

// SendStop fires the cancellation frame without waiting for any ack.
func (c *Channel) SendStop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.disconnected {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(stopFrame))
}

// Disconnect closes the channel. Idempotent; safe on a channel that never
// connected.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.disconnected = true
	if c.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Channel) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.disconnected = true
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Debug("push channel dropped", "job_id", c.jobID, "error", err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *Channel) handle(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("undecodable push payload", "job_id", c.jobID, "error", err)
		return
	}

	var typ monitor.PushEventType
	switch env.Type {
	case "started":
		typ = monitor.PushStarted
	case "status":
		typ = monitor.PushStatus
	case "completed":
		typ = monitor.PushCompleted
	case "error":
		typ = monitor.PushError
	default:
		// Unknown types are logged, not silently swallowed.
		c.logger.Warn("unknown push event type", "job_id", c.jobID, "type", env.Type)
		return
	}

	c.deliver(monitor.PushEvent{
		JobID:          c.jobID,
		Type:           typ,
		Message:        env.Message,
		ElapsedSeconds: env.ElapsedSeconds,
		Result:         env.Result,
		At:             time.Now(),
	})
}
