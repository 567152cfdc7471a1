// Package mcp binds tracepayload functionality to the Model Context Protocol (MCP) server standard.
package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"tracepayload/internal/models"
	"tracepayload/internal/output"
	"tracepayload/internal/query"
	"tracepayload/internal/service"
)

// Service is the subset of the download service exposed as tools.
type Service interface {
	BuildQuery(key models.CorrelationKey) (string, error)
	Download(ctx context.Context, key models.CorrelationKey) (*service.Result, error)
}

// Server defines the core MCP capability layer, exposing native handler functions to connected AI agents.
type Server struct {
	service Service
}

// New creates a new MCP server wrapper
func New(svc Service) *Server {
	return &Server{service: svc}
}

// RegisterTools registers the tracepayload tools with the MCP server
func (s *Server) RegisterTools(mcpServer *server.MCPServer) {
	// 1. Build Query Tool
	queryTool := mcp.NewTool("build_query",
		mcp.WithDescription("Builds the KQL query selecting the request/response traces of one transaction."),
		mcp.WithString("transaction_id", mcp.Required(), mcp.Description("Transaction identifier")),
		mcp.WithString("transaction_date", mcp.Required(), mcp.Description("Transaction date as YYYY-MM-DD")),
	)
	mcpServer.AddTool(queryTool, s.HandleBuildQuery)

	// 2. Download Payload Tool
	downloadTool := mcp.NewTool("download_payload",
		mcp.WithDescription("Queries Application Insights and returns the reconstructed transaction payload as JSON."),
		mcp.WithString("transaction_id", mcp.Required(), mcp.Description("Transaction identifier")),
		mcp.WithString("transaction_date", mcp.Required(), mcp.Description("Transaction date as YYYY-MM-DD")),
	)
	mcpServer.AddTool(downloadTool, s.HandleDownloadPayload)
}

// HandleBuildQuery returns the query text without running it
func (s *Server) HandleBuildQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := keyFromRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	q, err := s.service.BuildQuery(key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to build query: %v", err)), nil
	}

	return mcp.NewToolResultText(q), nil
}

// HandleDownloadPayload runs the full download and returns the payload
func (s *Server) HandleDownloadPayload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := keyFromRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.service.Download(ctx, key)
	if errors.Is(err, service.ErrNotFound) {
		return mcp.NewToolResultText(fmt.Sprintf("No payload found for transaction %s on %s.",
			key.TransactionID, key.Day().Format(models.DateLayout))), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Download failed: %v", err)), nil
	}

	var buf bytes.Buffer
	if err := output.WriteJSON(&buf, res.Payload, true); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report := buf.String()
	if len(res.Diagnostics) > 0 {
		report += fmt.Sprintf("\nDiagnostics (%d):\n", len(res.Diagnostics))
		for _, d := range res.Diagnostics {
			report += fmt.Sprintf("- %s\n", d.Error())
		}
	}

	return mcp.NewToolResultText(report), nil
}

func keyFromRequest(request mcp.CallToolRequest) (models.CorrelationKey, error) {
	id, err := request.RequireString("transaction_id")
	if err != nil {
		return models.CorrelationKey{}, err
	}
	rawDate, err := request.RequireString("transaction_date")
	if err != nil {
		return models.CorrelationKey{}, err
	}

	return query.ParseKey(id, rawDate, time.Now())
}
