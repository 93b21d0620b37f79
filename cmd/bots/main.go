// Command bots drives scripted players against a running relay. It is a
// smoke test for matchmaking, chat and round resolution.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/stone-paper-relay/config"
	"github.com/wricardo/stone-paper-relay/logging"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "bots",
		Usage: "Play scripted matches against a stone paper scissors relay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "ws://localhost:8080",
				Usage:   "Relay websocket URL",
				Sources: cli.EnvVars("WS_URL"),
			},
			&cli.StringSliceFlag{
				Name:  "bot",
				Value: []string{"Alice=stone", "Bob=paper"},
				Usage: "Bot as name=strategy (stone, paper, scissors, cycle, counter, random)",
			},
			&cli.IntFlag{
				Name:  "rounds",
				Value: 1,
				Usage: "Rounds each bot plays before leaving",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 4 * time.Second,
				Usage: "Give up after this long",
			},
			&cli.DurationFlag{
				Name:  "stagger",
				Value: 100 * time.Millisecond,
				Usage: "Delay between bot connections",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log every received message",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := newLogger(cmd.Bool("verbose"))
			defer logger.Sync()

			bots, err := parseBots(cmd.StringSlice("bot"), cmd.String("url"), int(cmd.Int("rounds")), logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
			defer cancel()

			failed := 0
			for _, res := range runBots(ctx, bots, cmd.Duration("stagger")) {
				printReport(os.Stdout, res.report)
				if res.err != nil {
					fmt.Printf("  error: %v\n", res.err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d bots did not finish", failed, len(bots))
			}
			return nil
		},
	}
}

func newLogger(verbose bool) *zap.Logger {
	level := "info"
	if verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger(config.LoggingConfig{Level: level, Format: "console"}, logging.WithCommand("bots"))
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// parseBots turns name=strategy entries into bots. An entry without a strategy
// plays random.
func parseBots(entries []string, url string, rounds int, logger *zap.Logger) ([]*Bot, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("at least one bot is required")
	}
	bots := make([]*Bot, 0, len(entries))
	for _, entry := range entries {
		name, strategyName, found := strings.Cut(entry, "=")
		if !found {
			strategyName = "random"
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("bot %q has no name", entry)
		}
		strategy, err := ParseStrategy(strategyName)
		if err != nil {
			return nil, fmt.Errorf("bot %s: %w", name, err)
		}
		bots = append(bots, NewBot(name, url, strategy, rounds, logger))
	}
	return bots, nil
}

type result struct {
	report Report
	err    error
}

// runBots starts each bot after the previous one by stagger and waits for all
// of them. Results are in bot order.
func runBots(ctx context.Context, bots []*Bot, stagger time.Duration) []result {
	results := make([]result, len(bots))
	var wg sync.WaitGroup
	for i, bot := range bots {
		if i > 0 && stagger > 0 {
			select {
			case <-time.After(stagger):
			case <-ctx.Done():
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := bot.Run(ctx)
			results[i] = result{report: report, err: err}
		}()
	}
	wg.Wait()
	return results
}

func printReport(w io.Writer, r Report) {
	fmt.Fprintf(w, "%s vs %s in room %s: %d wins, %d losses, %d draws\n",
		r.Name, orDash(r.Opponent), orDash(r.RoomID), r.Wins, r.Losses, r.Draws)
	for _, line := range r.Chats {
		fmt.Fprintf(w, "  chat %s\n", line)
	}
	for _, msg := range r.Errors {
		fmt.Fprintf(w, "  relay error: %s\n", msg)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
