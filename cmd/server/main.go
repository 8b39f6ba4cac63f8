// Package main is the entry point for the pet community server.
//
// The main package is kept minimal. Its job is to:
// 1. Read configuration (TOML file, then environment overrides)
// 2. Create dependencies (logger, data directories)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/petcommunity/internal/config"
	"github.com/sakif/petcommunity/internal/server"
)

func main() {
	// === 1. SET UP LOGGING ===
	// Log levels (from least to most severe): Debug → Info → Warn → Error
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// === 2. READ CONFIGURATION ===
	// A missing file is fine: defaults plus env vars (PORT, DB_PATH,
	// JWT_SECRET, GITHUB_*, S3_*) are enough to run.
	configPath := flag.String("config", "petcommunity.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// JWT_SECRET must be a long random string. Use:
	//   JWT_SECRET=$(openssl rand -hex 32)
	if cfg.Auth.JWTSecret == "" {
		logger.Error("JWT_SECRET not set; refusing to start without a token secret")
		os.Exit(1)
	}

	// === 3. DATA DIRECTORIES ===
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	dirs := []string{filepath.Dir(cfg.Database.Path)}
	if cfg.Images.Type == config.ImagesFilesystem {
		dirs = append(dirs, cfg.Images.FSRoot)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error("failed to create data directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
