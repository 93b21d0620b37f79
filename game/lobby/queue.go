// Package lobby provides the matchmaking queue: a FIFO of connections waiting
// for an opponent. Pairing happens synchronously inside Enqueue as soon as
// two connections are waiting, oldest first.
package lobby

import (
	"slices"

	"go.uber.org/zap"
)

// Pairer seats two waiting connections in a new room, a in seat 0
type Pairer interface {
	CreateMatchedRoom(a, b string) (string, error)
}

// Queue holds connections waiting for an opponent, in arrival order.
// It is not safe for concurrent use.
type Queue struct {
	waiting []string
	pairer  Pairer
	logger  *zap.Logger
}

// NewQueue creates an empty queue that hands pairs to pairer
func NewQueue(pairer Pairer, logger *zap.Logger) *Queue {
	return &Queue{
		pairer: pairer,
		logger: logger,
	}
}

// Enqueue appends a connection unless it is already waiting. When two
// connections are waiting the two oldest are removed and paired immediately.
// It returns the ID of the room created by pairing, or "" when none was.
func (q *Queue) Enqueue(connID string) (string, error) {
	if q.Contains(connID) {
		q.logger.Debug("ignoring duplicate enqueue", zap.String("conn_id", connID))
		return "", nil
	}
	q.waiting = append(q.waiting, connID)
	q.logger.Debug("connection waiting for opponent",
		zap.String("conn_id", connID),
		zap.Int("waiting", len(q.waiting)),
	)

	if len(q.waiting) < 2 {
		return "", nil
	}

	a, b := q.waiting[0], q.waiting[1]
	q.waiting = slices.Delete(q.waiting, 0, 2)

	roomID, err := q.pairer.CreateMatchedRoom(a, b)
	if err != nil {
		q.logger.Warn("pairing failed",
			zap.String("first", a),
			zap.String("second", b),
			zap.Error(err),
		)
		return "", err
	}

	q.logger.Info("connections paired",
		zap.String("room_id", roomID),
		zap.String("first", a),
		zap.String("second", b),
	)
	return roomID, nil
}

// Remove drops a connection from the queue. It reports whether it was waiting.
func (q *Queue) Remove(connID string) bool {
	idx := slices.Index(q.waiting, connID)
	if idx < 0 {
		return false
	}
	q.waiting = slices.Delete(q.waiting, idx, idx+1)
	return true
}

// Contains reports whether a connection is waiting
func (q *Queue) Contains(connID string) bool {
	return slices.Contains(q.waiting, connID)
}

// Len returns the number of waiting connections
func (q *Queue) Len() int {
	return len(q.waiting)
}

// Waiting returns a copy of the waiting connections, oldest first
func (q *Queue) Waiting() []string {
	return slices.Clone(q.waiting)
}
