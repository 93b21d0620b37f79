package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/stone-paper-relay/game/engine"
	"github.com/wricardo/stone-paper-relay/game/protocol"
)

// envelope is the union of every relay to client message
type envelope struct {
	Type        string           `json:"type"`
	RoomID      string           `json:"roomId"`
	Opponent    string           `json:"opponent"`
	PlayerCount int              `json:"playerCount"`
	Winner      engine.Winner    `json:"winner"`
	Choices     [2]engine.Choice `json:"choices"`
	From        string           `json:"from"`
	Text        string           `json:"text"`
	Message     string           `json:"message"`
}

// Report summarizes one bot's session
type Report struct {
	Name     string
	RoomID   string
	Opponent string
	Wins     int
	Losses   int
	Draws    int
	Chats    []string
	Errors   []string
}

func (r Report) Rounds() int { return r.Wins + r.Losses + r.Draws }

// Bot is a scripted relay client. It names itself, asks for a match, greets
// its opponent and plays rounds with its strategy.
type Bot struct {
	name     string
	url      string
	strategy Strategy
	rounds   int
	logger   *zap.Logger

	conn   *websocket.Conn
	played engine.Choice
	report Report
}

func NewBot(name, url string, strategy Strategy, rounds int, logger *zap.Logger) *Bot {
	if rounds < 1 {
		rounds = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		name:     name,
		url:      url,
		strategy: strategy,
		rounds:   rounds,
		logger:   logger.With(zap.String("bot", name)),
		report:   Report{Name: name},
	}
}

// Run plays until the bot has seen its rounds or ctx ends. The partial report
// is returned alongside any error.
func (b *Bot) Run(ctx context.Context) (Report, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return b.report, fmt.Errorf("dial %s: %w", b.url, err)
	}
	b.conn = conn
	defer conn.Close()
	b.logger.Info("Connected", zap.String("url", b.url))

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := b.send(protocol.Inbound{Type: protocol.TypeSetName, Name: b.name}); err != nil {
		return b.report, err
	}
	if err := b.send(protocol.Inbound{Type: protocol.TypeMatchmake}); err != nil {
		return b.report, err
	}

	for b.report.Rounds() < b.rounds {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return b.report, ctxErr
			}
			return b.report, fmt.Errorf("read: %w", err)
		}

		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			b.logger.Warn("Failed to parse message", zap.Error(err))
			continue
		}
		b.logger.Debug("Received", zap.ByteString("message", data))

		if err := b.handle(msg); err != nil {
			return b.report, err
		}
	}

	b.logger.Info("Finished",
		zap.Int("wins", b.report.Wins),
		zap.Int("losses", b.report.Losses),
		zap.Int("draws", b.report.Draws))
	b.close()
	return b.report, nil
}

func (b *Bot) handle(msg envelope) error {
	switch msg.Type {
	case protocol.TypeRoomCreated:
		b.report.RoomID = msg.RoomID
		b.report.Opponent = msg.Opponent
		b.logger.Info("Matched", zap.String("room", msg.RoomID), zap.String("opponent", msg.Opponent))
		if err := b.send(protocol.Inbound{Type: protocol.TypeChat, Text: "Hello from " + b.name}); err != nil {
			return err
		}
		return b.play(engine.NoChoice)

	case protocol.TypeResult:
		opponent := b.score(msg)
		b.logger.Info("Round result",
			zap.String("winner", string(msg.Winner)),
			zap.String("mine", string(b.played)),
			zap.String("theirs", string(opponent)))
		if b.report.Rounds() < b.rounds {
			return b.play(opponent)
		}

	case protocol.TypeChat:
		b.report.Chats = append(b.report.Chats, msg.From+": "+msg.Text)

	case protocol.TypePlayerLeft:
		return errors.New("opponent left")

	case protocol.TypeError:
		b.report.Errors = append(b.report.Errors, msg.Message)
		b.logger.Warn("Relay error", zap.String("message", msg.Message))
	}
	return nil
}

// score records a result and returns the opponent's choice.
// The bot's seat is the one holding its own choice; on a draw both match.
func (b *Bot) score(msg envelope) engine.Choice {
	seat := 0
	if msg.Choices[0] != b.played {
		seat = 1
	}
	opponent := msg.Choices[1-seat]

	switch {
	case msg.Winner == engine.Draw:
		b.report.Draws++
	case (msg.Winner == engine.Player1) == (seat == 0):
		b.report.Wins++
	default:
		b.report.Losses++
	}
	return opponent
}

func (b *Bot) play(last engine.Choice) error {
	b.played = b.strategy.Next(last)
	return b.send(protocol.Inbound{Type: protocol.TypeChoice, Choice: string(b.played)})
}

func (b *Bot) send(msg protocol.Inbound) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	b.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

func (b *Bot) close() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	b.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
