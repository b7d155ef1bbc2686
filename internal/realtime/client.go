// Package realtime maintains the persistent WebSocket channel to the
// DocAgent server and routes server-pushed envelopes to registered handlers.
package realtime

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/docagent/docagent-go/internal/config"
	"github.com/docagent/docagent-go/internal/envelope"
)

// State is the connection state of the channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "disconnected"
	}
}

// ErrNotConnected is returned by Send when no connection is open.
var ErrNotConnected = errors.New("realtime channel not connected")

// Handler receives inbound envelopes matching its registration key.
type Handler func(envelope.Envelope)

type registration struct {
	id uint64
	fn Handler
}

const (
	wsHandshakeTimeout = 10 * time.Second
	wsWriteTimeout     = 15 * time.Second
	wsReadLimit        = 4 * 1024 * 1024
)

// Client owns one logical connection to the server's event channel, keyed by
// a per-instance client identity. At most one live connection exists at a
// time; on unexpected close the client retries forever at a fixed delay
// until Disconnect is called.
type Client struct {
	wsURL          string
	clientID       string
	log            *slog.Logger
	dialer         websocket.Dialer
	reconnectDelay time.Duration

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	gen       uint64 // connection generation; bumped on dial success and Disconnect
	reconnect *time.Timer
	handlers  map[string]registration
	nextReg   uint64

	writeMu sync.Mutex
}

// New creates a channel client addressing <ws-scheme>://<host>/ws/<client_id>
// derived from the configured API base URL.
func New(cfg config.Config, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	clientID := NewClientID()
	u.Path = "/ws/" + clientID

	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}

	return &Client{
		wsURL:    u.String(),
		clientID: clientID,
		log:      logger,
		dialer: websocket.Dialer{
			HandshakeTimeout: wsHandshakeTimeout,
		},
		reconnectDelay: delay,
		handlers:       make(map[string]registration),
	}, nil
}

// ClientID returns the per-instance channel identity.
func (c *Client) ClientID() string {
	return c.clientID
}

// URL returns the channel address the client dials.
func (c *Client) URL() string {
	return c.wsURL
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

const clientIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewClientID generates an opaque channel identity of the form
// client_<unix_ms>_<9-char-random>. It is never persisted; its lifetime is
// the in-memory client instance.
func NewClientID() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = clientIDAlphabet[rand.IntN(len(clientIDAlphabet))]
	}
	return fmt.Sprintf("client_%d_%s", time.Now().UnixMilli(), suffix)
}
