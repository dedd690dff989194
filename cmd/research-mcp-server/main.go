package main

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/research-library/internal/config"
	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/server"
)

func main() {
	// Initialize logger with default configuration
	log, err := logger.NewLogger(logger.LogConfig{})
	if err != nil {
		panic(err)
	}

	log.Info("Starting research-library MCP server %s", server.Version)

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal("Failed to load config: %v", err)
	}

	lib, store, err := server.OpenLibrary(cfg, log)
	if err != nil {
		log.Fatal("Failed to open library: %v", err)
	}
	defer store.Close()

	srv := server.CreateServer(lib, log)
	if err := srv.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatal("Server failed: %v", err)
	}
}
