package policyqa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/registry"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/schema"
)

const Version = "1.0.0"

// Service is what the outer surfaces need from the pipeline.
type Service interface {
	Ask(ctx context.Context, question string) (schema.Outcome, error)
	Sources() []registry.SourceInfo
}

// NewMCPServer exposes the pipeline as MCP tools.
func NewMCPServer(serverName string, svc Service) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		serverName,
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("This server answers questions about borrower-insurance contracts by consulting each insurer's contract documents and synthesizing one answer"),
	)

	mcpServer.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Answer a question about borrower-insurance contracts using the registered insurers' documents"),
			mcp.WithString("question", mcp.Required(), mcp.Description("The user's question, in natural language")),
		),
		HandleAsk(svc),
	)
	mcpServer.AddTool(
		mcp.NewTool("list-sources",
			mcp.WithDescription("List the insurers and other sources the server can consult"),
		),
		HandleListSources(svc),
	)
	return mcpServer
}

// HandleAsk answers the "question" argument.
func HandleAsk(svc Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		outcome, err := svc.Ask(ctx, question)
		if err != nil {
			if errors.Is(err, ErrEmptyQuestion) {
				return mcp.NewToolResultError("question must not be empty"), nil
			}
			return nil, fmt.Errorf("ask failed, err: %w", err)
		}
		return mcp.NewToolResultText(outcome.Answer), nil
	}
}

// HandleListSources returns the source catalog as JSON.
func HandleListSources(svc Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.Marshal(svc.Sources())
		if err != nil {
			return nil, fmt.Errorf("marshal sources failed, err: %w", err)
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}
