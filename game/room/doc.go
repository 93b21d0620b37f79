// Package room provides the room store: two-seat matches keyed by a short
// random token, their pending choices, and round resolution.
//
// Rooms are created by a "create" request (seat 0 filled, seat 1 awaiting a
// join) or by matchmaking (both seats filled at once). A room is destroyed
// when its last occupant leaves. Once both seats have chosen, the round is
// resolved with engine.Resolve, the result is broadcast in seat order and
// the pending choices are cleared for the next round.
//
// The store is not safe for concurrent use; like the session registry it is
// owned by the relay's event loop.
package room
