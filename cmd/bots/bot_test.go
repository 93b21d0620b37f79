package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wricardo/stone-paper-relay/game/engine"
	"github.com/wricardo/stone-paper-relay/game/service"
	"github.com/wricardo/stone-paper-relay/transport/websocket"
)

func startRelay(t *testing.T) string {
	t.Helper()
	hub := websocket.NewHub(service.New(zap.NewNop(), service.Options{}), websocket.Options{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestBotsPlayAMatch(t *testing.T) {
	url := startRelay(t)
	bots := []*Bot{
		NewBot("Alice", url, FixedStrategy{Choice: engine.Stone}, 2, nil),
		NewBot("Bob", url, FixedStrategy{Choice: engine.Paper}, 2, nil),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := runBots(ctx, bots, 20*time.Millisecond)
	require.Len(t, results, 2)
	for _, res := range results {
		require.NoError(t, res.err, res.report.Name)
	}

	alice, bob := results[0].report, results[1].report
	assert.Equal(t, "Bob", alice.Opponent)
	assert.Equal(t, "Alice", bob.Opponent)
	assert.Equal(t, alice.RoomID, bob.RoomID)
	assert.Len(t, alice.RoomID, 5)

	assert.Equal(t, 0, alice.Wins)
	assert.Equal(t, 2, alice.Losses)
	assert.Equal(t, 2, bob.Wins)
	assert.Equal(t, 0, bob.Losses)

	assert.ElementsMatch(t, []string{"Alice: Hello from Alice", "Bob: Hello from Bob"}, alice.Chats)
	assert.ElementsMatch(t, alice.Chats, bob.Chats)
	assert.Empty(t, alice.Errors)
}

func TestBotsDraw(t *testing.T) {
	url := startRelay(t)
	bots := []*Bot{
		NewBot("A", url, FixedStrategy{Choice: engine.Scissors}, 1, nil),
		NewBot("B", url, FixedStrategy{Choice: engine.Scissors}, 1, nil),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, res := range runBots(ctx, bots, 0) {
		require.NoError(t, res.err)
		assert.Equal(t, 1, res.report.Draws)
	}
}

func TestBotTimesOutWithoutOpponent(t *testing.T) {
	url := startRelay(t)
	bot := NewBot("Solo", url, FixedStrategy{Choice: engine.Stone}, 1, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	report, err := bot.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, report.Rounds())
}

func TestBotDialFailure(t *testing.T) {
	bot := NewBot("Lost", "ws://127.0.0.1:1", FixedStrategy{Choice: engine.Stone}, 1, nil)
	_, err := bot.Run(context.Background())
	assert.Error(t, err)
}

func TestBotScore(t *testing.T) {
	tests := []struct {
		name     string
		played   engine.Choice
		choices  [2]engine.Choice
		winner   engine.Winner
		want     Report
		opponent engine.Choice
	}{
		{"seat 0 wins", engine.Stone, [2]engine.Choice{engine.Stone, engine.Scissors}, engine.Player1, Report{Wins: 1}, engine.Scissors},
		{"seat 1 wins", engine.Paper, [2]engine.Choice{engine.Stone, engine.Paper}, engine.Player2, Report{Wins: 1}, engine.Stone},
		{"seat 1 loses", engine.Scissors, [2]engine.Choice{engine.Stone, engine.Scissors}, engine.Player1, Report{Losses: 1}, engine.Stone},
		{"draw", engine.Paper, [2]engine.Choice{engine.Paper, engine.Paper}, engine.Draw, Report{Draws: 1}, engine.Paper},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Bot{played: tt.played}
			got := b.score(envelope{Type: "result", Winner: tt.winner, Choices: tt.choices})
			assert.Equal(t, tt.opponent, got)
			assert.Equal(t, tt.want, b.report)
		})
	}
}

func TestStrategies(t *testing.T) {
	cycle := &CycleStrategy{}
	assert.Equal(t, []engine.Choice{engine.Stone, engine.Paper, engine.Scissors, engine.Stone},
		[]engine.Choice{cycle.Next(""), cycle.Next(""), cycle.Next(""), cycle.Next("")})

	counter := CounterStrategy{opening: engine.Stone}
	assert.Equal(t, engine.Stone, counter.Next(engine.NoChoice))
	assert.Equal(t, engine.Paper, counter.Next(engine.Stone))
	assert.Equal(t, engine.Scissors, counter.Next(engine.Paper))
}

func TestParseBots(t *testing.T) {
	bots, err := parseBots([]string{"Alice=stone", "Bob=cycle", "Carol"}, "ws://relay", 3, nil)
	require.NoError(t, err)
	require.Len(t, bots, 3)

	assert.Equal(t, FixedStrategy{Choice: engine.Stone}, bots[0].strategy)
	assert.Equal(t, "cycle", bots[1].strategy.Name())
	assert.Equal(t, "random", bots[2].strategy.Name())
	assert.Equal(t, 3, bots[0].rounds)

	_, err = parseBots([]string{"Dave=lizard"}, "ws://relay", 1, nil)
	assert.Error(t, err)

	_, err = parseBots([]string{"=stone"}, "ws://relay", 1, nil)
	assert.Error(t, err)

	_, err = parseBots(nil, "ws://relay", 1, nil)
	assert.Error(t, err)
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, Report{Name: "Alice", Opponent: "Bob", RoomID: "ab12c", Wins: 1, Chats: []string{"Bob: hi"}})

	assert.Contains(t, buf.String(), "Alice vs Bob in room ab12c: 1 wins, 0 losses, 0 draws")
	assert.Contains(t, buf.String(), "chat Bob: hi")
}
