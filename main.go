// Command stone-paper-relay starts the stone-paper-scissors relay.
//
// It supports four commands:
//  1. "serve" (default) – runs the HTTP server exposing the WebSocket relay, status API and an /mcp endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal relay if none is reachable
//  3. "play" – plays stone, paper, scissors against the computer in the terminal
//  4. "config" – prints the effective configuration as YAML
//
// Configuration comes from an optional YAML file, RELAY_ environment variables
// and a .env file, with command flags applied last. Optional ngrok tunneling
// gives easy external access during development.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/stone-paper-relay/api"
	"github.com/wricardo/stone-paper-relay/config"
	"github.com/wricardo/stone-paper-relay/game/engine"
	"github.com/wricardo/stone-paper-relay/game/service"
	"github.com/wricardo/stone-paper-relay/logging"
	"github.com/wricardo/stone-paper-relay/transport/mcp"
	"github.com/wricardo/stone-paper-relay/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Stone Paper Scissors Relay"
)

// main loads .env, builds the command tree and runs the selected command.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "stone-paper-relay",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file (optional)",
				Sources: cli.EnvVars("RELAY_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run the HTTP server with the WebSocket relay, status API and MCP endpoint",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "host", Usage: "HTTP server host"},
					&cli.IntFlag{Name: "port", Usage: "HTTP server port"},
					&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel"},
					&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)"},
				},
				Action: serveAction,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run an MCP stdio server backed by a running relay or an internal one",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "api-url",
						Usage: "Base URL of a running relay",
						Value: "http://localhost:8080",
					},
				},
				Action: stdioMCPAction,
			},
			{
				Name:   "play",
				Usage:  "Play stone, paper, scissors against the computer",
				Action: playAction,
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration as YAML",
				Action: configAction,
			},
		},
	}
}

// loadConfig reads configuration and applies the flags of cmd and its parents
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return config.Config{}, err
	}

	if cmd.Bool("debug") {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "console"
	}
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func setup(cmd *cli.Command) (config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.NewLogger(cfg.Logging, logging.WithCommand(cmd.Name), logging.WithVersion(Version))
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting", zap.String("app", AppName), zap.String("version", Version))
	return runHTTPServer(ctx, cfg, logger)
}

func stdioMCPAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	return runStdioMCP(ctx, cfg, cmd.String("api-url"), logger)
}

func playAction(ctx context.Context, cmd *cli.Command) error {
	playComputer(os.Stdin, os.Stdout, engine.DefaultSource)
	return nil
}

func configAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

// relayServer bundles the hub with the HTTP handler that fronts it
type relayServer struct {
	hub     *websocket.Hub
	handler http.Handler
}

// newRelayServer wires the relay, the websocket hub, the REST API and the
// /mcp endpoint. The hub is not started.
func newRelayServer(cfg config.Config, logger *zap.Logger) *relayServer {
	relay := service.New(logger, service.Options{
		DefaultName:  cfg.Relay.DefaultName,
		RoomIDLength: cfg.Relay.RoomIDLength,
	})
	hub := websocket.NewHub(relay, hubOptions(cfg.Relay), logger.Named("hub"))
	apiServer := api.NewServer(hub, logger.Named("api"))

	// MCP tools call back into this server's REST API
	mcpClient := mcp.NewClient(loopbackURL(cfg.Server), mcp.WithLogger(logger.Named("mcp")))

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.Handle("/mcp", mcpClient.HTTPHandler())

	return &relayServer{hub: hub, handler: mainRouter}
}

func hubOptions(r config.RelayConfig) websocket.Options {
	return websocket.Options{
		SendBuffer:     r.SendBuffer,
		MaxMessageSize: r.MaxMessageSize,
		WriteWait:      r.WriteWait,
		PongWait:       r.PongWait,
		PingPeriod:     r.PingPeriod,
		AllowedOrigins: r.AllowedOrigins,
	}
}

// loopbackURL is the base URL local clients use to reach the listener
func loopbackURL(s config.ServerConfig) string {
	host := s.Host
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(strings.Trim(host, "[]"), fmt.Sprint(s.Port))
}

// runHTTPServer serves the relay until ctx is cancelled. If ngrok is enabled
// it also serves through a public tunnel.
func runHTTPServer(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	srv := newRelayServer(cfg, logger)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go srv.hub.Run(hubCtx)

	addr := cfg.Server.Addr()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	// Start regular HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("websocket", "ws://"+addr+"/ws"),
			zap.String("status", "http://"+addr+"/api/status"),
			zap.String("mcp", "http://"+addr+"/mcp"),
		)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg.Ngrok, srv.handler, logger.Named("ngrok"))
		}()
	}

	// Wait for shutdown signal or a listener failure
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-serveErr:
		logger.Error("listener failed", zap.Error(runErr))
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}
	// Hijacked websocket connections are closed by the hub
	stopHub()

	// Wait for all goroutines to finish
	wg.Wait()
	logger.Info("server stopped")
	return runErr
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled
func runNgrok(ctx context.Context, cfg config.NgrokConfig, handler http.Handler, logger *zap.Logger) {
	// Configure ngrok endpoint
	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
		logger.Info("using custom ngrok domain", zap.String("domain", cfg.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", zap.Error(err))
		}
	}()

	ngrokURL := tun.URL()
	wsURL := "wss" + strings.TrimPrefix(ngrokURL, "https") + "/ws"
	logger.Info("ngrok tunnel established",
		zap.String("url", ngrokURL),
		zap.String("websocket", wsURL),
		zap.String("mcp", ngrokURL+"/mcp"),
	)

	// Serve HTTP through ngrok tunnel
	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Warn("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
}

// runStdioMCP runs an MCP stdio server.
// It tries to reuse a relay at apiURL; if unavailable, it starts an internal
// relay bound to a random loopback port and targets that.
func runStdioMCP(ctx context.Context, cfg config.Config, apiURL string, logger *zap.Logger) error {
	baseURL := strings.TrimSuffix(apiURL, "/")
	logger.Info("checking for external relay", zap.String("url", baseURL))

	// Test if external server is running
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/health")
	if err == nil && resp.StatusCode == http.StatusOK {
		resp.Body.Close()
		logger.Info("external relay found, using it for MCP", zap.String("url", baseURL))
	} else {
		if resp != nil {
			resp.Body.Close()
		}
		logger.Info("no external relay found, starting internal HTTP server")

		// Start internal HTTP server on a random available port
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		internalCfg := cfg
		internalCfg.Server.Host = "127.0.0.1"
		internalCfg.Server.Port = listener.Addr().(*net.TCPAddr).Port
		srv := newRelayServer(internalCfg, logger)

		hubCtx, stopHub := context.WithCancel(ctx)
		defer stopHub()
		go srv.hub.Run(hubCtx)

		httpServer := &http.Server{Handler: srv.handler}
		defer httpServer.Close()

		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", zap.Error(err))
			}
		}()

		baseURL = loopbackURL(internalCfg.Server)
		logger.Info("internal relay listening", zap.String("url", baseURL))
	}

	// Create MCP client pointing to the selected server
	mcpClient := mcp.NewClient(baseURL, mcp.WithLogger(logger.Named("mcp")))

	logger.Info("MCP stdio server ready")
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
