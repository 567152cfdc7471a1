// Package main provides the entry point for the tracepayload MCP (Model Context Protocol) server.
package main

import (
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"tracepayload/internal/app"
	"tracepayload/internal/config"
	"tracepayload/internal/logger"
	mcpsrv "tracepayload/internal/mcp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("Failed to load config")
	}

	// stdout carries the protocol, so logs always go to stderr as JSON.
	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel, os.Stderr)
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("Failed to create logger")
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize service")
	}
	defer a.Close()

	// Initialize the core MCP server instance.
	s := server.NewMCPServer(
		"tracepayload-mcp",
		"1.0.0",
	)

	// Bind the query and download tools to the MCP server.
	mcpsrv.New(a.Service).RegisterTools(s)

	log.Info().Msg("tracepayload MCP server listening on stdio...")
	// Start serving the MCP protocol over standard input/output streams.
	if err := server.ServeStdio(s); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}
