// Package logging builds the relay's structured logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wricardo/stone-paper-relay/config"
)

// RootName is the name of the root logger. Components hang named children off it.
const RootName = "relay"

// Option adds process-wide context to the root logger
type Option func(*[]zap.Field)

// WithCommand tags every entry with the CLI command being run
func WithCommand(name string) Option {
	return func(fields *[]zap.Field) {
		if name != "" {
			*fields = append(*fields, zap.String("command", name))
		}
	}
}

// WithVersion tags every entry with the build version
func WithVersion(version string) Option {
	return func(fields *[]zap.Field) {
		if version != "" {
			*fields = append(*fields, zap.String("version", version))
		}
	}
}

// NewLogger creates the root "relay" logger from the given configuration.
// Output goes to stderr so stdout stays free for the MCP stdio transport and
// the terminal game. Sampling is off: per-connection drops must all be visible.
func NewLogger(cfg config.LoggingConfig, opts ...Option) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
		zapCfg.Sampling = nil
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.DisableStacktrace = level > zapcore.DebugLevel
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	base, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return Root(base, opts...), nil
}

// Root names base as the root logger and adds the fields from opts
func Root(base *zap.Logger, opts ...Option) *zap.Logger {
	var fields []zap.Field
	for _, opt := range opts {
		opt(&fields)
	}
	return base.With(fields...).Named(RootName)
}
