package session

import "fmt"

// State is the seat state of a connection. It is one of Unseated,
// WaitingForOpponent or Active.
type State interface {
	fmt.Stringer
	isState()
}

// Unseated connections are not in any room
type Unseated struct{}

// WaitingForOpponent connections hold a seat in a room whose other seat is empty
type WaitingForOpponent struct {
	RoomID string
	Seat   int
}

// Active connections hold a seat in a room with both seats filled
type Active struct {
	RoomID string
	Seat   int
}

func (Unseated) isState()           {}
func (WaitingForOpponent) isState() {}
func (Active) isState()             {}

func (Unseated) String() string { return "unseated" }

func (s WaitingForOpponent) String() string {
	return fmt.Sprintf("waiting(room=%s seat=%d)", s.RoomID, s.Seat)
}

func (s Active) String() string {
	return fmt.Sprintf("active(room=%s seat=%d)", s.RoomID, s.Seat)
}

// SeatOf extracts the room and seat from a seated state
func SeatOf(s State) (roomID string, seat int, ok bool) {
	switch st := s.(type) {
	case WaitingForOpponent:
		return st.RoomID, st.Seat, true
	case Active:
		return st.RoomID, st.Seat, true
	default:
		return "", -1, false
	}
}
