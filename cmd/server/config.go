package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/phrazzld/tasker-api/internal/config"
)

// loadAppConfig loads envFile into the process environment, then reads the
// configuration. A missing env file is not an error; variables already set
// in the environment win over the file.
func loadAppConfig(envFile string) (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)
	slog.Debug("Optional services",
		"redis_configured", cfg.Redis.Addr != "",
		"cors_origins", len(cfg.CORS.AllowedOrigins))

	return cfg, nil
}
