package main

import (
	"os"

	"broker-copilot/internal/bootstrap"
	"broker-copilot/internal/shared/config"
	"broker-copilot/internal/shared/server"
	"broker-copilot/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Init(telemetry.Options{
		Level:    cfg.LogLevel,
		FilePath: cfg.LogFile,
		Console:  cfg.Env == "dev",
	})
	defer func() { _ = telemetry.Sync() }()

	if err := cfg.Validate(); err != nil {
		telemetry.Error("config.invalid", map[string]any{"error": err})
		os.Exit(1)
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		telemetry.Error("bootstrap.failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer func() { _ = app.Close() }()

	addr := server.Addr(cfg.Port)
	telemetry.Info("server.starting", map[string]any{
		"addr":       addr,
		"agent_mode": cfg.AgentMode,
		"env":        cfg.Env,
	})

	if err := app.Router.Run(addr); err != nil {
		telemetry.Error("server.stopped", map[string]any{"error": err})
		os.Exit(1)
	}
}
