package main

import (
	"log"

	"littlebot/internal/app"
	"littlebot/internal/config"
	"littlebot/internal/logger"
	mcpserver "littlebot/internal/service/mcp-server"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadForTools()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// stdout carries the MCP protocol
	if err := logger.Init(cfg.LogLevel, cfg.IsDevelopment(), "stderr"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	deps := mcpserver.Deps{
		Runner: app.NewRunner(cfg),
		Branch: cfg.CircleCIBranch,
	}
	if cc := app.NewCircleCI(cfg); cc != nil {
		deps.CircleCI = cc
	}

	server, err := mcpserver.NewServer(deps)
	if err != nil {
		logger.GetLogger().Fatal("failed to create MCP server", zap.Error(err))
	}

	logger.GetLogger().Info("starting littlebot MCP server")
	if err := mcpserver.Serve(server); err != nil {
		logger.GetLogger().Fatal("MCP server error", zap.Error(err))
	}
}
