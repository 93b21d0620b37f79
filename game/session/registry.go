package session

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wricardo/stone-paper-relay/game/protocol"
)

var ErrUnknownConnection = errors.New("connection not found")

// DefaultName is the display name of a connection that never sent setName
const DefaultName = "Player"

// Sender delivers an encoded envelope to one client.
// Implementations must not block; delivery is best effort.
type Sender interface {
	Send(data []byte) error
}

// Connection holds the session attributes of one attached client
type Connection struct {
	ID          string
	Name        string
	State       State
	ConnectedAt time.Time

	sender Sender
}

// Seated reports whether the connection holds a seat in a room
func (c *Connection) Seated() bool {
	_, _, ok := SeatOf(c.State)
	return ok
}

// DetachHook runs while a closing connection is still registered
type DetachHook func(conn *Connection)

// Registry tracks every live connection
type Registry struct {
	conns       map[string]*Connection
	hooks       []DetachHook
	defaultName string
	newID       func() string
	logger      *zap.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithDefaultName sets the display name used until a client sends setName
func WithDefaultName(name string) Option {
	return func(r *Registry) {
		if name != "" {
			r.defaultName = name
		}
	}
}

// WithIDGenerator replaces the uuid based connection ID generator
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) {
		r.newID = gen
	}
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		conns:       make(map[string]*Connection),
		defaultName: DefaultName,
		newID:       uuid.NewString,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnDetach registers a hook run by Detach, in registration order
func (r *Registry) OnDetach(hook DetachHook) {
	r.hooks = append(r.hooks, hook)
}

// Register records a new unseated connection and returns its ID
func (r *Registry) Register(sender Sender) string {
	id := r.newID()
	for r.conns[id] != nil {
		id = r.newID()
	}

	r.conns[id] = &Connection{
		ID:          id,
		Name:        r.defaultName,
		State:       Unseated{},
		ConnectedAt: time.Now(),
		sender:      sender,
	}

	r.logger.Debug("connection registered",
		zap.String("conn_id", id),
		zap.Int("connections", len(r.conns)),
	)
	return id
}

// Get looks up a connection by ID
func (r *Registry) Get(id string) (*Connection, bool) {
	conn, ok := r.conns[id]
	return conn, ok
}

// SetName updates the display name. A blank name restores the default.
func (r *Registry) SetName(id, name string) error {
	conn, ok := r.conns[id]
	if !ok {
		return ErrUnknownConnection
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = r.defaultName
	}
	conn.Name = name
	return nil
}

// Name returns the display name of a connection, or the default for unknown IDs
func (r *Registry) Name(id string) string {
	if conn, ok := r.conns[id]; ok {
		return conn.Name
	}
	return r.defaultName
}

// Detach unwinds a closing connection: every hook runs first, then the record
// is discarded.
func (r *Registry) Detach(id string) error {
	conn, ok := r.conns[id]
	if !ok {
		return ErrUnknownConnection
	}

	for _, hook := range r.hooks {
		hook(conn)
	}
	delete(r.conns, id)

	r.logger.Debug("connection detached",
		zap.String("conn_id", id),
		zap.Duration("connected_for", time.Since(conn.ConnectedAt)),
		zap.Int("connections", len(r.conns)),
	)
	return nil
}

// Len returns the number of live connections
func (r *Registry) Len() int {
	return len(r.conns)
}

// Send encodes v and delivers it to one connection.
// Failures are logged and otherwise ignored.
func (r *Registry) Send(id string, v any) {
	data, err := protocol.Encode(v)
	if err != nil {
		r.logger.Error("failed to encode envelope", zap.Error(err))
		return
	}
	r.deliver(id, data)
}

// Broadcast encodes v once and delivers it to every listed connection.
// A failed delivery to one connection does not stop delivery to the rest.
func (r *Registry) Broadcast(ids []string, v any) {
	data, err := protocol.Encode(v)
	if err != nil {
		r.logger.Error("failed to encode envelope", zap.Error(err))
		return
	}
	for _, id := range ids {
		r.deliver(id, data)
	}
}

func (r *Registry) deliver(id string, data []byte) {
	conn, ok := r.conns[id]
	if !ok {
		r.logger.Debug("dropping envelope for unknown connection", zap.String("conn_id", id))
		return
	}
	if conn.sender == nil {
		return
	}
	if err := conn.sender.Send(data); err != nil {
		r.logger.Warn("send failed",
			zap.String("conn_id", id),
			zap.Error(err),
		)
	}
}
