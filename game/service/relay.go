package service

import (
	"errors"

	"go.uber.org/zap"

	"github.com/wricardo/stone-paper-relay/game/engine"
	"github.com/wricardo/stone-paper-relay/game/lobby"
	"github.com/wricardo/stone-paper-relay/game/protocol"
	"github.com/wricardo/stone-paper-relay/game/room"
	"github.com/wricardo/stone-paper-relay/game/session"
)

// Relay routes client envelopes to the registry, room store and queue
type Relay struct {
	registry *session.Registry
	rooms    *room.Store
	queue    *lobby.Queue
	logger   *zap.Logger
}

// NewRelay wires explicitly owned stores into a router. Detaching a
// connection removes it from the queue before freeing its seat.
func NewRelay(registry *session.Registry, rooms *room.Store, queue *lobby.Queue, logger *zap.Logger) *Relay {
	r := &Relay{
		registry: registry,
		rooms:    rooms,
		queue:    queue,
		logger:   logger,
	}

	registry.OnDetach(func(c *session.Connection) {
		if queue.Remove(c.ID) {
			logger.Debug("removed closing connection from queue", zap.String("conn_id", c.ID))
		}
	})
	registry.OnDetach(func(c *session.Connection) {
		rooms.Leave(c.ID)
	})

	return r
}

// New builds a relay with fresh stores
func New(logger *zap.Logger, opts Options) *Relay {
	registry := session.NewRegistry(logger.Named("registry"), session.WithDefaultName(opts.DefaultName))
	rooms := room.NewStore(registry, logger.Named("rooms"), room.WithIDLength(opts.RoomIDLength))
	queue := lobby.NewQueue(rooms, logger.Named("lobby"))
	return NewRelay(registry, rooms, queue, logger.Named("router"))
}

// Connect registers a new connection and returns its ID
func (r *Relay) Connect(sender session.Sender) string {
	id := r.registry.Register(sender)
	r.logger.Info("client connected", zap.String("conn_id", id))
	return id
}

// Disconnect detaches a closed connection, unwinding its queue entry and seat
func (r *Relay) Disconnect(connID string) {
	if err := r.registry.Detach(connID); err != nil {
		r.logger.Debug("disconnect for unknown connection", zap.String("conn_id", connID))
		return
	}
	r.logger.Info("client disconnected", zap.String("conn_id", connID))
}

// Receive handles one raw client message to completion. It never panics:
// a failure while handling one message is logged and the connection stays open.
func (r *Relay) Receive(connID string, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("recovered from panic while handling message",
				zap.String("conn_id", connID),
				zap.Any("panic", rec),
			)
		}
	}()

	conn, ok := r.registry.Get(connID)
	if !ok {
		r.logger.Debug("message from unknown connection", zap.String("conn_id", connID))
		return
	}

	in, err := protocol.Decode(data)
	if err != nil {
		r.logger.Debug("dropping message",
			zap.String("conn_id", connID),
			zap.Error(err),
		)
		return
	}

	r.logger.Debug("received",
		zap.String("conn_id", connID),
		zap.String("type", in.Type),
		zap.Stringer("state", conn.State),
	)

	switch in.Type {
	case protocol.TypeSetName:
		r.registry.SetName(conn.ID, in.Name)

	case protocol.TypeCreate:
		r.handleCreate(conn)

	case protocol.TypeJoin:
		r.handleJoin(conn, in.RoomID)

	case protocol.TypeMatchmake:
		r.handleMatchmake(conn)

	case protocol.TypeChoice:
		r.handleChoice(conn, in.Choice)

	case protocol.TypeChat:
		r.ignoreUnseated(conn, "chat", r.rooms.RelayChat(conn.ID, in.Text))

	case protocol.TypeReset:
		r.ignoreUnseated(conn, "reset", r.rooms.ResetRoom(conn.ID))
	}
}

// Status returns a snapshot of the relay
func (r *Relay) Status() Status {
	return Status{
		Connections: r.registry.Len(),
		Rooms:       r.rooms.Len(),
		Waiting:     r.queue.Len(),
		RoomList:    r.rooms.Summaries(),
	}
}

func (r *Relay) handleCreate(conn *session.Connection) {
	if conn.Seated() {
		r.registry.Send(conn.ID, protocol.NewError(MsgAlreadySeated))
		return
	}
	r.queue.Remove(conn.ID)
	if _, err := r.rooms.CreateRoom(conn.ID); err != nil {
		r.logger.Warn("create failed", zap.String("conn_id", conn.ID), zap.Error(err))
	}
}

func (r *Relay) handleJoin(conn *session.Connection, roomID string) {
	if conn.Seated() {
		r.registry.Send(conn.ID, protocol.NewError(MsgAlreadySeated))
		return
	}
	if err := r.rooms.JoinRoom(roomID, conn.ID); err != nil {
		r.logger.Debug("join rejected",
			zap.String("conn_id", conn.ID),
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		r.registry.Send(conn.ID, protocol.NewError(MsgRoomFullOrMissing))
		return
	}
	r.queue.Remove(conn.ID)
}

func (r *Relay) handleMatchmake(conn *session.Connection) {
	if conn.Seated() {
		r.registry.Send(conn.ID, protocol.NewError(MsgAlreadySeated))
		return
	}
	if _, err := r.queue.Enqueue(conn.ID); err != nil {
		r.logger.Warn("matchmaking failed", zap.String("conn_id", conn.ID), zap.Error(err))
	}
}

func (r *Relay) handleChoice(conn *session.Connection, raw string) {
	choice, err := engine.ParseChoice(raw)
	if err != nil {
		r.logger.Debug("dropping invalid choice",
			zap.String("conn_id", conn.ID),
			zap.String("choice", raw),
		)
		return
	}
	r.ignoreUnseated(conn, "choice", r.rooms.SubmitChoice(conn.ID, choice))
}

// ignoreUnseated logs the outcome of a seat-only request. Requests from
// unseated connections are ignored without telling anyone.
func (r *Relay) ignoreUnseated(conn *session.Connection, kind string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, room.ErrNotSeated):
		r.logger.Debug("ignoring request from unseated connection",
			zap.String("conn_id", conn.ID),
			zap.String("type", kind),
		)
	default:
		r.logger.Warn("request failed",
			zap.String("conn_id", conn.ID),
			zap.String("type", kind),
			zap.Error(err),
		)
	}
}
