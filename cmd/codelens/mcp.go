package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/arjunkori/codelens/internal/orchestrator"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// serveMCP starts a Model Context Protocol server over SSE, exposing the
// orchestrator's index/query operations plus the iterative agent's four
// sandboxed tools (list_directory, search_codebase, get_file_structure_summary,
// read_file_content) so an external MCP client can drive retrieval directly.
func serveMCP(cfg orchestrator.Config, port int) error {
	engine := orchestrator.NewEngine(cfg)
	defer engine.Close()

	mcpServer := server.NewMCPServer("codelens", version)
	for _, tool := range mcpTools() {
		mcpServer.AddTool(tool, mcpToolHandler(engine, tool.Name))
	}

	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(mcpServer)
	log.Printf("codelens MCP server listening on http://localhost%s", addr)
	return sseServer.Start(addr)
}

// mcpTools lists every tool the server advertises to a connecting client:
// the two repository-level operations plus the agent's own sandboxed
// filesystem tools, reusing the exact schemas C9's round-response contract
// already expects.
func mcpTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "index_repository",
			Description: "Index a local code repository so it can be queried.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"path":  map[string]any{"type": "string", "description": "Path to the repository"},
					"force": map[string]any{"type": "boolean", "description": "Force re-indexing", "default": false},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "query_codebase",
			Description: "Ask a natural-language question about an indexed codebase and get back a synthesized answer with citations.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"question": map[string]any{"type": "string", "description": "The question to ask"},
					"repo":     map[string]any{"type": "string", "description": "Repository path to index first, if not already indexed"},
				},
				Required: []string{"question"},
			},
		},
		{
			Name:        "list_directory",
			Description: "List the entries of a directory inside the indexed repository.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"path": map[string]any{"type": "string", "description": "Repo-relative directory path"},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "search_codebase",
			Description: "Search the indexed repository's code elements by keyword, optionally scoped to a glob.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"search_term":  map[string]any{"type": "string", "description": "Term or phrase to search for"},
					"file_pattern": map[string]any{"type": "string", "description": "Optional glob to scope the search, e.g. *.go"},
				},
				Required: []string{"search_term"},
			},
		},
		{
			Name:        "get_file_structure_summary",
			Description: "Summarize the classes/functions declared in a file without returning its full source.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"path": map[string]any{"type": "string", "description": "Repo-relative file path"},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "read_file_content",
			Description: "Read a line range (or the whole file) from the indexed repository.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"path":       map[string]any{"type": "string", "description": "Repo-relative file path"},
					"start_line": map[string]any{"type": "number", "description": "1-indexed start line (optional)"},
					"end_line":   map[string]any{"type": "number", "description": "1-indexed end line (optional)"},
				},
				Required: []string{"path"},
			},
		},
	}
}

// mcpToolHandler dispatches one tool call to the engine: the two
// repository-level operations are handled directly, everything else is
// forwarded to the agent's sandboxed ToolExecutor unchanged.
func mcpToolHandler(engine *orchestrator.Engine, toolName string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		callID := uuid.NewString()
		args, ok := request.Params.Arguments.(map[string]any)
		if !ok {
			args = make(map[string]any)
		}

		switch toolName {
		case "index_repository":
			path, _ := args["path"].(string)
			if path == "" {
				return errorResult("path is required"), nil
			}
			force, _ := args["force"].(bool)
			result, err := engine.Index(path, force)
			if err != nil {
				return errorResult(err.Error()), nil
			}
			return jsonResult(result, callID), nil

		case "query_codebase":
			question, _ := args["question"].(string)
			if question == "" {
				return errorResult("question is required"), nil
			}
			if repo, _ := args["repo"].(string); repo != "" {
				if _, err := engine.Index(repo, false); err != nil {
					return errorResult(err.Error()), nil
				}
			}
			result, err := engine.Query(question)
			if err != nil {
				return errorResult(err.Error()), nil
			}
			return jsonResult(result, callID), nil

		default:
			tools, err := engine.Tools()
			if err != nil {
				return errorResult(err.Error()), nil
			}
			result, err := tools.Execute(toolName, args)
			if err != nil {
				return errorResult(err.Error()), nil
			}
			return jsonResult(result, callID), nil
		}
	}
}

// jsonResult wraps data (plus the per-call correlation ID, for joining this
// result with its log lines) as the MCP text-content payload clients expect.
func jsonResult(data any, callID string) *mcp.CallToolResult {
	envelope := map[string]any{"query_id": callID, "result": data}
	content, _ := json.Marshal(envelope)
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(content)},
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: fmt.Sprintf("Error: %s", message)},
		},
		IsError: true,
	}
}
