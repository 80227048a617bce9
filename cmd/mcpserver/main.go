package main

import (
	"context"
	"log"

	"github.com/mark3labs/mcp-go/server"

	"openwork-backend/config"
	"openwork-backend/mcp"
	storage "openwork-backend/storage/conversation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	var store storage.Store
	switch cfg.StoreDriver {
	case "postgres":
		store, err = storage.NewPGStore(ctx, cfg.DatabaseURL, cfg.SeedFixtures)
		if err != nil {
			log.Fatalf("failed to init store: %v", err)
		}
	default:
		if cfg.SeedFixtures {
			store = storage.NewSeededMemoryStore()
		} else {
			store = storage.NewMemoryStore()
		}
	}
	defer store.Close()

	mcpServer := mcp.NewMCPServer(store)

	log.Printf("OpenWork MCP server starting (driver=%s)", cfg.StoreDriver)
	log.Printf("Server: OpenWork Conversation MCP Server v1.0.0")

	if err := server.ServeStdio(mcpServer.GetMCPServer()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
