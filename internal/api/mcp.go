package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/docidx/internal/retriever"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Retriever Retriever
	Stats     StatsSource
}

// NewMCPServer creates an MCP server exposing document search to agent
// clients, plus an index-stats resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"docidx",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("docidx — semantic search over indexed company documents."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_documents",
			mcp.WithDescription("Semantically search indexed company documents and return the most relevant text chunks."),
			mcp.WithString("query", mcp.Description("Natural language search query"), mcp.Required()),
			mcp.WithNumber("max_results", mcp.Description("Maximum number of results (default 10, capped at 50)")),
			mcp.WithNumber("threshold", mcp.Description("Minimum similarity score between 0 and 1 (default 0.7)")),
		),
		mcpSearchDocuments(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"docidx://stats",
			"Index Statistics",
			mcp.WithResourceDescription("Aggregate figures about the document index"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpSearchDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("max_results", retriever.DefaultMaxResults)
		if limit <= 0 {
			limit = retriever.DefaultMaxResults
		}
		if limit > 50 {
			limit = 50
		}

		threshold := req.GetFloat("threshold", retriever.DefaultThreshold)
		if threshold < 0 || threshold > 1 {
			return mcpError("threshold must be between 0 and 1"), nil
		}

		results, err := deps.Retriever.Search(ctx, query, retriever.Options{
			Threshold:  threshold,
			MaxResults: limit,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		if len(results) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stats, err := deps.Stats.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading index stats: %w", err)
		}

		b, err := json.Marshal(map[string]any{
			"total_embeddings": stats.TotalEmbeddings,
			"unique_documents": stats.UniqueDocuments,
			"avg_chunk_length": stats.AvgChunkLength,
			"oldest":           stats.Oldest,
			"newest":           stats.Newest,
		})
		if err != nil {
			return nil, fmt.Errorf("marshaling index stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
