package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/wricardo/stone-paper-relay/game/lobby"
	"github.com/wricardo/stone-paper-relay/game/room"
	"github.com/wricardo/stone-paper-relay/game/session"
	"github.com/wricardo/stone-paper-relay/game/session/sessiontest"
)

type harness struct {
	relay    *Relay
	registry *session.Registry
	rooms    *room.Store
	queue    *lobby.Queue
	clients  map[string]*sessiontest.Recorder
}

func newHarness() *harness {
	n := 0
	registry := session.NewRegistry(zap.NewNop(), session.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("conn-%d", n)
	}))
	r := 0
	rooms := room.NewStore(registry, zap.NewNop(), room.WithIDGenerator(func(length int) string {
		r++
		return fmt.Sprintf("R%0*d", length-1, r)
	}))
	queue := lobby.NewQueue(rooms, zap.NewNop())
	return &harness{
		relay:    NewRelay(registry, rooms, queue, zap.NewNop()),
		registry: registry,
		rooms:    rooms,
		queue:    queue,
		clients:  map[string]*sessiontest.Recorder{},
	}
}

func (h *harness) connect() string {
	rec := &sessiontest.Recorder{}
	id := h.relay.Connect(rec)
	h.clients[id] = rec
	return id
}

func (h *harness) send(id, raw string) {
	h.relay.Receive(id, []byte(raw))
}

func (h *harness) state(id string) session.State {
	conn, ok := h.registry.Get(id)
	if !ok {
		return nil
	}
	return conn.State
}

// createRoom has id create a room and returns the room ID it was told
func (h *harness) createRoom(t *testing.T, id string) string {
	t.Helper()
	h.send(id, `{"type":"create"}`)
	msg := h.clients[id].Last()
	require.NotNil(t, msg)
	require.Equal(t, "roomCreated", msg["type"])
	return msg["roomId"].(string)
}

func TestRelay_CreateJoinAndPlay(t *testing.T) {
	h := newHarness()
	a := h.connect()
	b := h.connect()

	roomID := h.createRoom(t, a)
	assert.Equal(t, session.WaitingForOpponent{RoomID: roomID, Seat: 0}, h.state(a))

	h.send(b, fmt.Sprintf(`{"type":"join","roomId":%q}`, roomID))
	for _, id := range []string{a, b} {
		msg := h.clients[id].Last()
		assert.Equal(t, "playerJoined", msg["type"])
		assert.Equal(t, float64(2), msg["playerCount"])
	}
	assert.Equal(t, session.Active{RoomID: roomID, Seat: 0}, h.state(a))
	assert.Equal(t, session.Active{RoomID: roomID, Seat: 1}, h.state(b))

	h.send(a, `{"type":"choice","choice":"stone"}`)
	assert.Empty(t, h.clients[a].OfType("result"))

	h.send(b, `{"type":"choice","choice":"scissors"}`)
	for _, id := range []string{a, b} {
		results := h.clients[id].OfType("result")
		require.Len(t, results, 1)
		assert.Equal(t, "player1", results[0]["winner"])
		assert.Equal(t, []any{"stone", "scissors"}, results[0]["choices"])
	}
}

func TestRelay_ChoicesClearAfterEachRound(t *testing.T) {
	h := newHarness()
	a, b := h.connect(), h.connect()
	roomID := h.createRoom(t, a)
	h.send(b, fmt.Sprintf(`{"type":"join","roomId":%q}`, roomID))

	h.send(a, `{"type":"choice","choice":"paper"}`)
	h.send(b, `{"type":"choice","choice":"paper"}`)

	// a single choice in the next round must not resolve against stale state
	h.send(b, `{"type":"choice","choice":"stone"}`)
	require.Len(t, h.clients[a].OfType("result"), 1)

	h.send(a, `{"type":"choice","choice":"paper"}`)
	results := h.clients[b].OfType("result")
	require.Len(t, results, 2)
	assert.Equal(t, "draw", results[0]["winner"])
	assert.Equal(t, "player1", results[1]["winner"])
	assert.Equal(t, []any{"paper", "stone"}, results[1]["choices"])

	r, ok := h.rooms.Get(roomID)
	require.True(t, ok)
	assert.Equal(t, 2, r.Rounds())
}

func TestRelay_JoinFullRoom(t *testing.T) {
	h := newHarness()
	a, b, c := h.connect(), h.connect(), h.connect()
	roomID := h.createRoom(t, a)
	h.send(b, fmt.Sprintf(`{"type":"join","roomId":%q}`, roomID))

	h.clients[a].Reset()
	h.clients[b].Reset()

	h.send(c, fmt.Sprintf(`{"type":"join","roomId":%q}`, roomID))
	msg := h.clients[c].Last()
	require.NotNil(t, msg)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, MsgRoomFullOrMissing, msg["message"])
	assert.Equal(t, session.Unseated{}, h.state(c))
	assert.Empty(t, h.clients[a].Frames())
	assert.Empty(t, h.clients[b].Frames())
}

func TestRelay_JoinMissingRoom(t *testing.T) {
	h := newHarness()
	a := h.connect()

	h.send(a, `{"type":"join","roomId":"nope1"}`)
	assert.Equal(t, []string{"error"}, h.clients[a].Types())
	assert.Equal(t, 0, h.rooms.Len())
}

func TestRelay_SeatedConnectionCannotCreateOrJoin(t *testing.T) {
	h := newHarness()
	a, b := h.connect(), h.connect()
	roomA := h.createRoom(t, a)
	roomB := h.createRoom(t, b)

	h.send(a, `{"type":"create"}`)
	h.send(a, fmt.Sprintf(`{"type":"join","roomId":%q}`, roomB))
	h.send(a, `{"type":"matchmake"}`)

	assert.Equal(t, []string{"roomCreated", "error", "error", "error"}, h.clients[a].Types())
	assert.Equal(t, MsgAlreadySeated, h.clients[a].Last()["message"])
	assert.Equal(t, session.WaitingForOpponent{RoomID: roomA, Seat: 0}, h.state(a))
	assert.Equal(t, 2, h.rooms.Len())
	assert.Equal(t, 0, h.queue.Len())
}

func TestRelay_Matchmaking(t *testing.T) {
	h := newHarness()
	a, b := h.connect(), h.connect()
	h.send(a, `{"type":"setName","name":"Alice"}`)
	h.send(b, `{"type":"setName","name":"Bob"}`)

	h.send(a, `{"type":"matchmake"}`)
	assert.Empty(t, h.clients[a].Frames())
	assert.Equal(t, 1, h.queue.Len())

	h.send(b, `{"type":"matchmake"}`)
	assert.Equal(t, 0, h.queue.Len())

	ma := h.clients[a].Last()
	mb := h.clients[b].Last()
	require.Equal(t, "roomCreated", ma["type"])
	require.Equal(t, "roomCreated", mb["type"])
	assert.Equal(t, ma["roomId"], mb["roomId"])
	assert.Equal(t, "Bob", ma["opponent"])
	assert.Equal(t, "Alice", mb["opponent"])

	roomID := ma["roomId"].(string)
	assert.Equal(t, session.Active{RoomID: roomID, Seat: 0}, h.state(a))
	assert.Equal(t, session.Active{RoomID: roomID, Seat: 1}, h.state(b))
}

func TestRelay_DuplicateMatchmakeIsIgnored(t *testing.T) {
	h := newHarness()
	a := h.connect()

	h.send(a, `{"type":"matchmake"}`)
	h.send(a, `{"type":"matchmake"}`)

	assert.Equal(t, 1, h.queue.Len())
	assert.Equal(t, 0, h.rooms.Len())
	assert.Empty(t, h.clients[a].Frames())
}

func TestRelay_CreateLeavesQueue(t *testing.T) {
	h := newHarness()
	a, b := h.connect(), h.connect()

	h.send(a, `{"type":"matchmake"}`)
	h.createRoom(t, a)
	assert.False(t, h.queue.Contains(a))

	// b must not be paired with a connection that already holds a seat
	h.send(b, `{"type":"matchmake"}`)
	assert.Equal(t, []string{b}, h.queue.Waiting())
	assert.Empty(t, h.clients[b].Frames())
}

func TestRelay_JoinLeavesQueue(t *testing.T) {
	h := newHarness()
	a, b := h.connect(), h.connect()
	roomID := h.createRoom(t, a)

	h.send(b, `{"type":"matchmake"}`)
	h.send(b, fmt.Sprintf(`{"type":"join","roomId":%q}`, roomID))
	assert.Equal(t, 0, h.queue.Len())
	assert.Equal(t, session.Active{RoomID: roomID, Seat: 1}, h.state(b))
}

func TestRelay_DisconnectNotifiesOpponent(t *testing.T) {
	h := newHarness()
	a, b := h.connect(), h.connect()
	roomID := h.createRoom(t, a)
	h.send(b, fmt.Sprintf(`{"type":"join","roomId":%q}`, roomID))
	h.send(a, `{"type":"choice","choice":"rock"}`)
	h.send(a, `{"type":"choice","choice":"stone"}`)

	h.clients[b].Reset()
	h.relay.Disconnect(a)

	assert.Len(t, h.clients[b].OfType("playerLeft"), 1)
	assert.Equal(t, []string{"playerLeft"}, h.clients[b].Types())
	assert.Equal(t, session.WaitingForOpponent{RoomID: roomID, Seat: 1}, h.state(b))

	// a second disconnect of the same id is a no-op
	h.relay.Disconnect(a)
	assert.Len(t, h.clients[b].OfType("playerLeft"), 1)
	assert.Nil(t, h.state(a))

	r, ok := h.rooms.Get(roomID)
	require.True(t, ok)
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, "", string(r.Choice(0)))

	// a newcomer takes the freed seat
	c := h.connect()
	h.send(c, fmt.Sprintf(`{"type":"join","roomId":%q}`, roomID))
	assert.Equal(t, session.Active{RoomID: roomID, Seat: 0}, h.state(c))
	assert.Equal(t, session.Active{RoomID: roomID, Seat: 1}, h.state(b))
}

func TestRelay_LastDisconnectDestroysRoom(t *testing.T) {
	h := newHarness()
	a, b := h.connect(), h.connect()
	roomID := h.createRoom(t, a)
	h.send(b, fmt.Sprintf(`{"type":"join","roomId":%q}`, roomID))

	h.relay.Disconnect(a)
	h.relay.Disconnect(b)
	assert.Equal(t, 0, h.rooms.Len())

	c := h.connect()
	h.send(c, fmt.Sprintf(`{"type":"join","roomId":%q}`, roomID))
	assert.Equal(t, []string{"error"}, h.clients[c].Types())
}

func TestRelay_DisconnectWhileQueued(t *testing.T) {
	h := newHarness()
	a, b := h.connect(), h.connect()

	h.send(a, `{"type":"matchmake"}`)
	h.relay.Disconnect(a)
	assert.Equal(t, 0, h.queue.Len())

	h.send(b, `{"type":"matchmake"}`)
	assert.Equal(t, []string{b}, h.queue.Waiting())
	assert.Equal(t, 0, h.rooms.Len())

	// unknown IDs are ignored
	h.relay.Disconnect(a)
	h.send(a, `{"type":"create"}`)
	assert.Equal(t, 0, h.rooms.Len())
}

func TestRelay_ChatAndReset(t *testing.T) {
	h := newHarness()
	a, b := h.connect(), h.connect()
	h.send(a, `{"type":"setName","name":"Alice"}`)
	roomID := h.createRoom(t, a)
	h.send(b, fmt.Sprintf(`{"type":"join","roomId":%q}`, roomID))

	h.send(a, `{"type":"chat","text":"good luck"}`)
	for _, id := range []string{a, b} {
		msg := h.clients[id].Last()
		assert.Equal(t, "chat", msg["type"])
		assert.Equal(t, "Alice", msg["from"])
		assert.Equal(t, "good luck", msg["text"])
	}

	h.send(a, `{"type":"choice","choice":"paper"}`)
	h.send(b, `{"type":"reset"}`)
	assert.Equal(t, "reset", h.clients[a].Last()["type"])
	assert.Equal(t, "reset", h.clients[b].Last()["type"])

	h.send(b, `{"type":"choice","choice":"stone"}`)
	assert.Empty(t, h.clients[a].OfType("result"))
}

func TestRelay_UnseatedRequestsAreIgnored(t *testing.T) {
	h := newHarness()
	a := h.connect()

	h.send(a, `{"type":"choice","choice":"stone"}`)
	h.send(a, `{"type":"chat","text":"hello?"}`)
	h.send(a, `{"type":"reset"}`)

	assert.Empty(t, h.clients[a].Frames())
	assert.Equal(t, session.Unseated{}, h.state(a))
}

func TestRelay_MalformedInputIsDropped(t *testing.T) {
	h := newHarness()
	a := h.connect()

	for _, raw := range []string{
		`not json`,
		`{"type":"dance"}`,
		`{"name":"no type"}`,
		`[]`,
		``,
	} {
		h.send(a, raw)
	}

	assert.Empty(t, h.clients[a].Frames())
	assert.Equal(t, 1, h.registry.Len())

	// the connection still works afterwards
	h.createRoom(t, a)
}

func TestRelay_SendFailureDoesNotAbortBroadcast(t *testing.T) {
	h := newHarness()
	a, b := h.connect(), h.connect()
	roomID := h.createRoom(t, a)
	h.send(b, fmt.Sprintf(`{"type":"join","roomId":%q}`, roomID))

	h.clients[a].Fail = true
	h.send(a, `{"type":"choice","choice":"scissors"}`)
	h.send(b, `{"type":"choice","choice":"paper"}`)

	results := h.clients[b].OfType("result")
	require.Len(t, results, 1)
	assert.Equal(t, "player1", results[0]["winner"])
}

func TestRelay_Status(t *testing.T) {
	h := newHarness()
	a, b, c := h.connect(), h.connect(), h.connect()
	h.createRoom(t, a)
	h.send(b, `{"type":"matchmake"}`)
	_ = c

	st := h.relay.Status()
	assert.Equal(t, 3, st.Connections)
	assert.Equal(t, 1, st.Rooms)
	assert.Equal(t, 1, st.Waiting)
	require.Len(t, st.RoomList, 1)
	assert.Equal(t, 1, st.RoomList[0].Players)
}

func TestNew_UsesOptions(t *testing.T) {
	relay := New(zap.NewNop(), Options{DefaultName: "Anon", RoomIDLength: 7})
	rec := &sessiontest.Recorder{}
	id := relay.Connect(rec)

	relay.Receive(id, []byte(`{"type":"create"}`))
	msg := rec.Last()
	require.NotNil(t, msg)
	assert.Len(t, msg["roomId"], 7)

	relay.Receive(id, []byte(`{"type":"chat","text":"hi"}`))
	assert.Equal(t, "Anon", rec.Last()["from"])
}

// Every connection's state must agree with the room store and queue after
// any sequence of client actions.
func TestRelay_StateStaysConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := newHarness()
		var ids []string
		var roomIDs []string

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if len(ids) == 0 || rapid.IntRange(0, 9).Draw(t, "connect") == 0 {
				ids = append(ids, h.connect())
				continue
			}
			id := rapid.SampledFrom(ids).Draw(t, "conn")

			switch rapid.IntRange(0, 6).Draw(t, "action") {
			case 0:
				h.send(id, `{"type":"create"}`)
				if msg := h.clients[id].Last(); msg != nil && msg["type"] == "roomCreated" {
					roomIDs = append(roomIDs, msg["roomId"].(string))
				}
			case 1:
				if len(roomIDs) > 0 {
					roomID := rapid.SampledFrom(roomIDs).Draw(t, "room")
					h.send(id, fmt.Sprintf(`{"type":"join","roomId":%q}`, roomID))
				}
			case 2:
				h.send(id, `{"type":"matchmake"}`)
			case 3:
				choice := rapid.SampledFrom([]string{"stone", "paper", "scissors", "lizard"}).Draw(t, "choice")
				h.send(id, fmt.Sprintf(`{"type":"choice","choice":%q}`, choice))
			case 4:
				h.send(id, `{"type":"reset"}`)
			case 5:
				h.send(id, `{"type":"chat","text":"hi"}`)
			case 6:
				h.relay.Disconnect(id)
			}
		}

		for _, id := range ids {
			st := h.state(id)
			if st == nil {
				assert.False(t, h.queue.Contains(id), "closed connection %s still queued", id)
				continue
			}
			roomID, seat, seated := session.SeatOf(st)
			if !seated {
				continue
			}
			assert.False(t, h.queue.Contains(id), "seated connection %s is queued", id)
			r, ok := h.rooms.Get(roomID)
			if assert.True(t, ok, "connection %s points at missing room %s", id, roomID) {
				assert.Equal(t, id, r.Occupant(seat))
				if r.Full() {
					assert.IsType(t, session.Active{}, st)
				} else {
					assert.IsType(t, session.WaitingForOpponent{}, st)
				}
			}
		}

		for _, s := range h.rooms.Summaries() {
			assert.Positive(t, s.Players, "empty room %s survived", s.ID)
		}
	})
}

type panicSender struct{}

func (panicSender) Send([]byte) error { panic("sender exploded") }

func TestRelay_RecoversFromPanicPerMessage(t *testing.T) {
	h := newHarness()
	a := h.relay.Connect(panicSender{})
	b := h.connect()

	assert.NotPanics(t, func() { h.send(a, `{"type":"create"}`) })

	_, ok := h.registry.Get(a)
	assert.True(t, ok, "connection stays registered after a panic")
	assert.Equal(t, 1, h.rooms.Len())

	h.send(b, `{"type":"create"}`)
	assert.Equal(t, []string{"roomCreated"}, h.clients[b].Types())
	assert.Equal(t, 2, h.rooms.Len())
}
