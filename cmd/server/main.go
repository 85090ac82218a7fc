// Package main is the entry point for the notecode server.
//
// main stays minimal: load configuration, build the logger, hand everything
// to internal/server. All real logic lives in the internal packages.
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/notecode/internal/config"
	"github.com/sakif/notecode/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file (YAML); env vars NOTECODE_* override")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// The configured logger doesn't exist yet; fall back to a plain one.
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	// Ensure the database directory exists before sqlite tries to open the
	// file. Skipped for in-memory databases, which have no directory.
	if cfg.Database.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Database.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				logger.Error("failed to create database directory",
					slog.String("dir", dir),
					slog.String("error", err.Error()),
				)
				os.Exit(1)
			}
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newLogger builds the slog logger the configuration asks for.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
