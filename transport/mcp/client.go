package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/wricardo/stone-paper-relay/game/engine"
	"github.com/wricardo/stone-paper-relay/game/service"
)

// Client is a thin MCP server that proxies relay status to the REST API and
// plays local rounds against the computer
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
	logger     *zap.Logger
	source     engine.Source

	mu    sync.Mutex
	score engine.Score
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger used for tool calls
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSource replaces the random source of the computer opponent
func WithSource(src engine.Source) Option {
	return func(c *Client) {
		c.source = src
	}
}

// NewClient creates a new MCP client that calls the REST API at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: zap.NewNop(),
		source: engine.DefaultSource,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Stone Paper Scissors Relay",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Stone Paper Scissors Relay - MCP Interface

Relay tools proxy to the REST API of a running relay. Computer tools play locally.

AVAILABLE TOOLS:
- relay_status: Connections, rooms and players waiting for a match
- game_rules: Which choice beats which
- play_computer: Play one round against the computer (stone, paper or scissors)
- computer_score: Running score against the computer, optionally reset
- game_instructions: How the relay protocol works for websocket clients`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "relay_status",
		Description: "Get live connection, room and matchmaking counts from the relay",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"include_rooms": map[string]interface{}{
					"type":        "boolean",
					"description": "List every live room (optional)",
				},
			},
		},
	}, c.handleRelayStatus)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_rules",
		Description: "Get the beats table used to resolve every round",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameRules)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "play_computer",
		Description: "Play one round of stone paper scissors against the computer",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"choice": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"stone", "paper", "scissors"},
					"description": "Your choice for this round",
				},
			},
			Required: []string{"choice"},
		},
	}, c.handlePlayComputer)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "computer_score",
		Description: "Show the running score against the computer",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Start a new match after showing the score (optional)",
				},
			},
		},
	}, c.handleComputerScore)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get instructions for connecting to the relay and playing a match",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// HTTPHandler serves single JSON-RPC messages posted to it
func (c *Client) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := c.mcpServer.HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// Tool handlers

func (c *Client) handleRelayStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	includeRooms, _ := arguments(request)["include_rooms"].(bool)

	path := "/api/status"
	if includeRooms {
		path += "?rooms=true"
	}

	var status service.Status
	if err := c.apiCall(ctx, "GET", path, nil, &status); err != nil {
		c.logger.Debug("relay status failed", zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStatus(&status)), nil
}

func (c *Client) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Rules []engine.Rule `json:"rules"`
	}

	if err := c.apiCall(ctx, "GET", "/api/rules", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRules(response.Rules)), nil
}

func (c *Client) handlePlayComputer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, _ := arguments(request)["choice"].(string)

	choice, err := engine.ParseChoice(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid choice %q: pick stone, paper or scissors", raw)), nil
	}

	c.mu.Lock()
	round, err := engine.PlayComputer(choice, c.source)
	if err == nil {
		c.score.Record(round.Winner)
	}
	score := c.score
	c.mu.Unlock()

	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	c.logger.Debug("computer round played",
		zap.String("player", string(round.Player)),
		zap.String("computer", string(round.Computer)),
		zap.String("winner", string(round.Winner)),
	)
	return mcp.NewToolResultText(formatRound(round) + "\n" + formatScore(score)), nil
}

func (c *Client) handleComputerScore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reset, _ := arguments(request)["reset"].(bool)

	c.mu.Lock()
	score := c.score
	if reset {
		c.score = engine.Score{}
	}
	c.mu.Unlock()

	result := formatScore(score)
	if reset {
		result += "\nScore reset. A new match starts with the next round."
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Stone Paper Scissors Relay - Complete Instructions

GAME OBJECTIVE:
Two players each pick stone, paper or scissors. Stone beats scissors, paper
beats stone and scissors beats paper. The same choice is a draw.

CONNECTING:
Open a websocket to ws://<host>/ws. Every message is one JSON object with a
"type" field, one object per frame.

CLIENT MESSAGES:
- {"type":"setName","name":"Alice"}      Set your display name
- {"type":"create"}                      Open a room and wait for an opponent
- {"type":"join","roomId":"ab12c"}       Join a room by its 5 character ID
- {"type":"matchmake"}                   Get paired with the next waiting player
- {"type":"choice","choice":"stone"}     Submit your choice for the round
- {"type":"chat","text":"good luck"}     Talk to everyone in your room
- {"type":"reset"}                       Clear pending choices in your room

SERVER MESSAGES:
- roomCreated {roomId, opponent?}        You have a seat; opponent is set by matchmaking
- playerJoined {playerCount}             Someone took the second seat
- result {winner, choices}               Round resolved; winner is draw, player1 or player2
- chat {from, text}                      Chat line from a room occupant
- playerLeft                             Your opponent disconnected; you wait for a new one
- reset                                  Pending choices were cleared
- error {message}                        Your request was rejected

ROUNDS:
- The room creator sits in seat 0 (player1); the joiner in seat 1 (player2)
- Each seat submits one choice; a second choice before the round resolves replaces the first
- Once both have chosen, both players receive the result and a new round starts

MATCHMAKING:
- Players are paired in arrival order; the earlier player takes seat 0
- Sending matchmake again while waiting has no effect

PLAYING THE COMPUTER:
Use play_computer to play rounds locally and computer_score to see the tally.`

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatStatus(status *service.Status) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("Connections: %d | Rooms: %d | Waiting for match: %d\n",
		status.Connections, status.Rooms, status.Waiting))

	if len(status.RoomList) > 0 {
		result.WriteString("\nRooms:\n")
		for _, r := range status.RoomList {
			result.WriteString(fmt.Sprintf("- %s: %d/2 players, %d rounds played (since %s)\n",
				r.ID, r.Players, r.Rounds, r.CreatedAt.Format("15:04:05")))
		}
	}

	return result.String()
}

func formatRules(rules []engine.Rule) string {
	var result strings.Builder
	result.WriteString("Rules:\n")
	for _, r := range rules {
		result.WriteString(fmt.Sprintf("- %s beats %s\n", r.Choice, r.Beats))
	}
	result.WriteString("- the same choice is a draw\n")
	return result.String()
}

func formatRound(round engine.ComputerRound) string {
	outcome := "It's a draw!"
	switch round.Winner {
	case engine.Player1:
		outcome = "You win!"
	case engine.Player2:
		outcome = "Computer wins!"
	}
	return fmt.Sprintf("You chose %s, computer chose %s. %s", round.Player, round.Computer, outcome)
}

func formatScore(score engine.Score) string {
	return fmt.Sprintf("Score after %d rounds: You %d | Computer %d | Draws %d",
		score.Rounds(), score.Player, score.Computer, score.Draws)
}
