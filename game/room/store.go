package room

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/stone-paper-relay/game/engine"
	"github.com/wricardo/stone-paper-relay/game/protocol"
	"github.com/wricardo/stone-paper-relay/game/session"
)

var (
	ErrRoomFullOrMissing = errors.New("room is full or does not exist")
	ErrNotSeated         = errors.New("connection is not seated in a room")
	ErrAlreadySeated     = errors.New("connection is already seated in a room")
	ErrSameConnection    = errors.New("cannot match a connection with itself")
)

// Store maps room IDs to rooms and owns their lifecycle
type Store struct {
	rooms    map[string]*Room
	registry *session.Registry
	logger   *zap.Logger
	idLength int
	genID    func(n int) string
}

// Option configures a Store
type Option func(*Store)

// WithIDLength sets the length of generated room IDs
func WithIDLength(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.idLength = n
		}
	}
}

// WithIDGenerator replaces the random room ID source
func WithIDGenerator(gen func(n int) string) Option {
	return func(s *Store) {
		s.genID = gen
	}
}

// NewStore creates an empty room store that delivers envelopes through registry
func NewStore(registry *session.Registry, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		rooms:    make(map[string]*Room),
		registry: registry,
		logger:   logger,
		idLength: DefaultIDLength,
		genID:    randomID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get retrieves a room by ID
func (s *Store) Get(roomID string) (*Room, bool) {
	r, ok := s.rooms[roomID]
	return r, ok
}

// Len returns the number of live rooms
func (s *Store) Len() int {
	return len(s.rooms)
}

// Summaries lists every live room, oldest first
func (s *Store) Summaries() []Summary {
	out := make([]Summary, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, Summary{
			ID:        r.ID,
			Players:   r.Count(),
			Rounds:    r.rounds,
			CreatedAt: r.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// CreateRoom opens a room with the creator in seat 0 and seat 1 empty.
// Only the creator is told about the room.
func (s *Store) CreateRoom(creatorID string) (string, error) {
	conn, err := s.unseated(creatorID)
	if err != nil {
		return "", err
	}

	r := s.newRoom()
	r.seats[0] = conn.ID
	conn.State = session.WaitingForOpponent{RoomID: r.ID, Seat: 0}

	s.registry.Send(conn.ID, protocol.NewRoomCreated(r.ID, ""))

	s.logger.Info("room created",
		zap.String("room_id", r.ID),
		zap.String("conn_id", conn.ID),
		zap.String("name", conn.Name),
	)
	return r.ID, nil
}

// CreateMatchedRoom seats two connections in a new room at once, a in seat 0
// and b in seat 1. Each is told the other's display name.
func (s *Store) CreateMatchedRoom(a, b string) (string, error) {
	if a == b {
		return "", ErrSameConnection
	}
	connA, err := s.unseated(a)
	if err != nil {
		return "", err
	}
	connB, err := s.unseated(b)
	if err != nil {
		return "", err
	}

	r := s.newRoom()
	r.seats = [Seats]string{connA.ID, connB.ID}
	connA.State = session.Active{RoomID: r.ID, Seat: 0}
	connB.State = session.Active{RoomID: r.ID, Seat: 1}

	s.registry.Send(connA.ID, protocol.NewRoomCreated(r.ID, connB.Name))
	s.registry.Send(connB.ID, protocol.NewRoomCreated(r.ID, connA.Name))

	s.logger.Info("matched room created",
		zap.String("room_id", r.ID),
		zap.String("seat0", connA.ID),
		zap.String("seat1", connB.ID),
	)
	return r.ID, nil
}

// JoinRoom seats the joiner in the free seat of an existing room and tells
// every occupant the new player count.
func (s *Store) JoinRoom(roomID, joinerID string) error {
	conn, err := s.unseated(joinerID)
	if err != nil {
		return err
	}

	r, ok := s.rooms[roomID]
	if !ok || r.Full() {
		return ErrRoomFullOrMissing
	}

	seat := r.freeSeat()
	r.seats[seat] = conn.ID
	for i, id := range r.seats {
		if c, ok := s.registry.Get(id); ok {
			c.State = session.Active{RoomID: r.ID, Seat: i}
		}
	}

	s.registry.Broadcast(r.Occupants(), protocol.NewPlayerJoined(r.Count()))

	s.logger.Info("player joined room",
		zap.String("room_id", r.ID),
		zap.String("conn_id", conn.ID),
		zap.Int("seat", seat),
	)
	return nil
}

// SubmitChoice records a choice for the connection's seat. When both seats
// have chosen, the round is resolved, the result is broadcast in seat order
// and both pending choices are cleared.
func (s *Store) SubmitChoice(connID string, choice engine.Choice) error {
	if !choice.Valid() {
		return fmt.Errorf("%w: %q", engine.ErrInvalidChoice, choice)
	}

	r, seat, err := s.seatOf(connID)
	if err != nil {
		s.logger.Debug("ignoring choice from unseated connection", zap.String("conn_id", connID))
		return err
	}

	r.choices[seat] = choice
	s.logger.Debug("choice recorded",
		zap.String("room_id", r.ID),
		zap.Int("seat", seat),
		zap.String("choice", string(choice)),
	)

	if !r.ready() {
		return nil
	}

	c0, c1 := r.choices[0], r.choices[1]
	winner := engine.Resolve(c0, c1)
	s.registry.Broadcast(r.Occupants(), protocol.NewResult(winner, c0, c1))
	r.clearChoices()
	r.rounds++

	s.logger.Info("round resolved",
		zap.String("room_id", r.ID),
		zap.String("winner", string(winner)),
		zap.Strings("choices", []string{string(c0), string(c1)}),
		zap.Int("round", r.rounds),
	)
	return nil
}

// ResetRoom clears both pending choices and tells every occupant
func (s *Store) ResetRoom(connID string) error {
	r, _, err := s.seatOf(connID)
	if err != nil {
		return err
	}

	r.clearChoices()
	s.registry.Broadcast(r.Occupants(), protocol.NewReset())

	s.logger.Info("room reset", zap.String("room_id", r.ID), zap.String("conn_id", connID))
	return nil
}

// RelayChat broadcasts a chat line to every occupant, the sender included
func (s *Store) RelayChat(connID, text string) error {
	r, _, err := s.seatOf(connID)
	if err != nil {
		return err
	}

	s.registry.Broadcast(r.Occupants(), protocol.NewChat(s.registry.Name(connID), text))
	return nil
}

// Leave frees the connection's seat. An emptied room is destroyed; otherwise
// the remaining occupant is told and goes back to waiting. Leaving when not
// seated is a no-op that returns false.
func (s *Store) Leave(connID string) bool {
	r, seat, err := s.seatOf(connID)
	if err != nil {
		return false
	}

	r.seats[seat] = ""
	r.clearChoices()
	if conn, ok := s.registry.Get(connID); ok {
		conn.State = session.Unseated{}
	}

	if r.Empty() {
		delete(s.rooms, r.ID)
		s.logger.Info("room destroyed",
			zap.String("room_id", r.ID),
			zap.Int("rounds", r.rounds),
			zap.Duration("lifetime", time.Since(r.CreatedAt)),
		)
		return true
	}

	remaining := r.Occupants()
	for _, id := range remaining {
		if c, ok := s.registry.Get(id); ok {
			_, other, _ := session.SeatOf(c.State)
			c.State = session.WaitingForOpponent{RoomID: r.ID, Seat: other}
		}
	}
	s.registry.Broadcast(remaining, protocol.NewPlayerLeft())

	s.logger.Info("player left room",
		zap.String("room_id", r.ID),
		zap.String("conn_id", connID),
		zap.Int("seat", seat),
	)
	return true
}

func (s *Store) newRoom() *Room {
	id := generateID(s.genID, s.idLength, func(id string) bool {
		_, taken := s.rooms[id]
		return taken
	})
	r := &Room{ID: id, CreatedAt: time.Now()}
	s.rooms[id] = r
	return r
}

func (s *Store) unseated(connID string) (*session.Connection, error) {
	conn, ok := s.registry.Get(connID)
	if !ok {
		return nil, session.ErrUnknownConnection
	}
	if conn.Seated() {
		return nil, ErrAlreadySeated
	}
	return conn, nil
}

// seatOf resolves a connection to its room and seat
func (s *Store) seatOf(connID string) (*Room, int, error) {
	conn, ok := s.registry.Get(connID)
	if !ok {
		return nil, -1, session.ErrUnknownConnection
	}
	roomID, seat, ok := session.SeatOf(conn.State)
	if !ok {
		return nil, -1, ErrNotSeated
	}
	r, ok := s.rooms[roomID]
	if !ok || r.seats[seat] != connID {
		s.logger.Warn("connection state points at a missing seat",
			zap.String("conn_id", connID),
			zap.String("room_id", roomID),
			zap.Int("seat", seat),
		)
		conn.State = session.Unseated{}
		return nil, -1, ErrNotSeated
	}
	return r, seat, nil
}
