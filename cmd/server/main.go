// Meterly antifraud - signup risk assessment service
package main

import (
	"context"
	"os"

	"github.com/meterly/antifraud/internal/config"
	"github.com/meterly/antifraud/internal/logging"
	"github.com/meterly/antifraud/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting antifraud",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"engine_disabled", cfg.Disabled,
		"review_threshold", cfg.ReviewThreshold,
		"block_threshold", cfg.BlockThreshold,
	)

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
