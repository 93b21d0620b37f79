package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/stone-paper-relay/game/service"
	"github.com/wricardo/stone-paper-relay/game/session"
)

var (
	// ErrSendBufferFull is returned by Client.Send when the client is not
	// draining its queue. The connection is closed.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrClientClosed is returned by Client.Send after the client left
	ErrClientClosed = errors.New("client closed")
	// ErrHubStopped is returned by Status once Run has exited
	ErrHubStopped = errors.New("hub stopped")
)

// Dispatcher handles connection lifecycle and messages on the hub goroutine
type Dispatcher interface {
	Connect(sender session.Sender) string
	Receive(connID string, data []byte)
	Disconnect(connID string)
	Status() service.Status
}

// Options tunes connection handling
type Options struct {
	// SendBuffer is the number of outbound frames queued per client
	SendBuffer int
	// MaxMessageSize is the largest inbound frame accepted, in bytes
	MaxMessageSize int64
	// WriteWait is the time allowed to write a frame to the peer
	WriteWait time.Duration
	// PongWait is the time allowed to read the next pong from the peer
	PongWait time.Duration
	// PingPeriod must be less than PongWait
	PingPeriod time.Duration
	// AllowedOrigins lists the browser origins allowed to connect.
	// Empty or "*" allows any origin.
	AllowedOrigins []string
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		SendBuffer:     256,
		MaxMessageSize: 4096,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	return o
}

// Client is one websocket connection attached to the hub
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// owned by the hub goroutine
	id      string
	closed  bool
	dropped bool
}

// Send queues one frame for the client without blocking. It must only be
// called from the hub goroutine.
func (c *Client) Send(data []byte) error {
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		if !c.dropped && c.conn != nil {
			c.dropped = true
			// readPump sees the close and unregisters the client
			c.conn.Close()
		}
		return ErrSendBufferFull
	}
}

type inbound struct {
	client *Client
	data   []byte
}

// Hub owns every client and serializes all relay work on one goroutine
type Hub struct {
	dispatcher Dispatcher
	opts       Options
	upgrader   websocket.Upgrader
	logger     *zap.Logger

	// Registered clients
	clients map[*Client]bool

	// Inbound messages from clients
	inbound chan inbound

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Status snapshot requests
	status chan chan service.Status

	done chan struct{}
}

// NewHub creates a new websocket hub
func NewHub(dispatcher Dispatcher, opts Options, logger *zap.Logger) *Hub {
	opts = opts.withDefaults()
	h := &Hub{
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger,
		clients:    make(map[*Client]bool),
		inbound:    make(chan inbound),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		status:     make(chan chan service.Status),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

// Run starts the hub's event loop. It returns when ctx is cancelled, after
// closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.inbound:
			if h.clients[msg.client] {
				h.dispatcher.Receive(msg.client.id, msg.data)
			}

		case reply := <-h.status:
			reply <- h.dispatcher.Status()
		}
	}
}

// Status asks the hub goroutine for a snapshot of the relay
func (h *Hub) Status(ctx context.Context) (service.Status, error) {
	reply := make(chan service.Status, 1)
	select {
	case h.status <- reply:
	case <-h.done:
		return service.Status{}, ErrHubStopped
	case <-ctx.Done():
		return service.Status{}, ctx.Err()
	}

	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return service.Status{}, ctx.Err()
	}
}

// ServeWS upgrades an HTTP request and attaches the connection to the hub
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.opts.SendBuffer),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

func (h *Hub) registerClient(client *Client) {
	client.id = h.dispatcher.Connect(client)
	h.clients[client] = true

	h.logger.Debug("client registered",
		zap.String("conn_id", client.id),
		zap.String("remote_addr", client.conn.RemoteAddr().String()),
		zap.Int("clients", len(h.clients)),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	h.dispatcher.Disconnect(client.id)
	client.closed = true
	close(client.send)

	h.logger.Debug("client unregistered",
		zap.String("conn_id", client.id),
		zap.Int("clients", len(h.clients)),
	)
}

func (h *Hub) shutdown() {
	for client := range h.clients {
		h.unregisterClient(client)
	}
	h.logger.Info("hub stopped")
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		select {
		case c.hub.inbound <- inbound{client: c, data: data}:
		case <-c.hub.done:
			return
		}
	}
}

// writePump pumps frames from the hub to the websocket connection, one
// envelope per frame
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// originChecker allows requests without an Origin header and those whose
// origin is listed
func originChecker(allowed []string) func(r *http.Request) bool {
	hosts := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			hosts[strings.ToLower(strings.TrimSuffix(o, "/"))] = true
		}
	}
	if len(hosts) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if hosts[strings.ToLower(origin)] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && hosts[strings.ToLower(u.Host)]
	}
}
