package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dan-solli/graphrag/pkg/config"
)

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New builds a logger writing to out in the configured format.
func New(cfg config.LoggingConfig, out io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "", "pretty":
		return slog.New(NewPrettyHandler(out, PrettyHandlerOptions{SlogOpts: opts})), nil
	case "json":
		return slog.New(slog.NewJSONHandler(out, &opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", cfg.Format)
}
