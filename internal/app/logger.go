package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger: JSON for deployed environments, text
// for local runs. Source locations are attached so log lines point back at
// their call sites. The result is also installed as the slog default.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}

	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
