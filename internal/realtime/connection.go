package realtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/docagent/docagent-go/internal/envelope"
)

// Connect opens the channel. It is idempotent: a no-op when a connection is
// already open or a dial is in flight. On successful open any pending
// reconnect timer is canceled and job subscriptions are re-announced to the
// server, whose subscription state is connection-scoped. On dial failure the
// fixed-delay reconnect is scheduled and the error is returned.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.cancelReconnectLocked()
	c.state = StateConnecting
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)

	c.mu.Lock()
	if c.state != StateConnecting {
		// Disconnect raced the dial; drop the connection if one was made.
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}
	if err != nil {
		c.state = StateDisconnected
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return fmt.Errorf("channel connect: %w", err)
	}
	conn.SetReadLimit(wsReadLimit)
	c.conn = conn
	c.state = StateOpen
	c.cancelReconnectLocked()
	c.gen++
	gen := c.gen
	jobs := c.jobSubscriptionsLocked()
	c.mu.Unlock()

	c.log.Info("realtime channel open", "client_id", c.clientID)
	go c.readPump(conn, gen)

	for _, jobID := range jobs {
		if err := c.Send(envelope.SubscribeJob(jobID)); err != nil {
			c.log.Warn("failed to re-announce job subscription", "job_id", jobID, "err", err)
		}
	}
	return nil
}

// Disconnect cancels any pending reconnect, closes the live connection if
// present, and clears connection state. Safe to call when no connection
// exists; after it returns no reconnect is pending.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.cancelReconnectLocked()
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.gen++ // orphan the read pump and any in-flight dial
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
		c.log.Info("realtime channel disconnected", "client_id", c.clientID)
	}
}

// Send writes an envelope to the live connection. Writes are serialized and
// bounded by a write deadline; a write failure closes the connection and the
// read pump drives reconnection.
func (c *Client) Send(env envelope.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	raw, err := env.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = conn.SetWriteDeadline(time.Time{}) }()
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		_ = conn.Close()
		return err
	}
	return nil
}

func (c *Client) readPump(conn *websocket.Conn, gen uint64) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleReadClosed(conn, gen, err)
			return
		}
		c.dispatch(raw)
	}
}

func (c *Client) handleReadClosed(conn *websocket.Conn, gen uint64, err error) {
	_ = conn.Close()

	c.mu.Lock()
	if gen != c.gen || c.conn != conn {
		// Manual disconnect or a newer connection already took over.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateDisconnected
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.log.Warn("realtime channel closed", "err", err, "retry_in", c.reconnectDelay.String())
	} else {
		c.log.Info("realtime channel closed", "retry_in", c.reconnectDelay.String())
	}
}

// scheduleReconnectLocked arms the reconnect timer unless one is already
// pending. At most one reconnect attempt is pending at any time; there is no
// backoff growth and no retry limit. The callback is bound to the current
// generation: a timer that has already fired and is waiting on the lock when
// Disconnect runs (so Stop misses it) sees the bumped generation and stands
// down instead of redialing.
func (c *Client) scheduleReconnectLocked() {
	if c.reconnect != nil {
		return
	}
	gen := c.gen
	c.reconnect = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.reconnect = nil
		if c.state != StateDisconnected {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		if err := c.Connect(context.Background()); err != nil {
			c.log.Warn("reconnect attempt failed", "err", err)
		}
	})
}

func (c *Client) cancelReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
}

func (c *Client) jobSubscriptionsLocked() []string {
	var jobs []string
	for key := range c.handlers {
		if jobID, ok := strings.CutPrefix(key, envelope.JobKey("")); ok && jobID != "" {
			jobs = append(jobs, jobID)
		}
	}
	return jobs
}
