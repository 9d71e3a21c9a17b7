package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/flemzord/llamacord/internal/config"
	"github.com/flemzord/llamacord/internal/security"
)

// NewLogger builds the root logger described by cfg, writing to w. Every
// record goes through redactor before it is formatted.
func NewLogger(cfg config.LogConfig, w io.Writer, redactor *security.Redactor) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	switch cfg.Format {
	case "json":
		inner = slog.NewJSONHandler(w, opts)
	case "text", "":
		inner = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("log.format: unknown format %q", cfg.Format)
	}
	return slog.New(security.NewRedactingHandler(inner, redactor)), nil
}
