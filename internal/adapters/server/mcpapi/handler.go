// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing board and task tools.
func NewHandler(cfg Config, boards common.BoardService) (*Handler, error) {
	if boards == nil {
		return nil, fmt.Errorf("board service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerBoardTools(mcpSrv, boards)
	registerTaskTools(mcpSrv, boards)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "tavla"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerBoardTools registers list/create/delete board tools.
func registerBoardTools(srv *mcpserver.MCPServer, boards common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"tavla.list_boards",
			mcp.WithDescription("List boards in display order with task ids and counts."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := boards.ListBoards(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_boards", map[string]any{"boards": rows})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.create_board",
			mcp.WithDescription("Create one board. Names are trimmed and upper-cased."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Board name")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name, err := req.RequireString("name")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			board, err := boards.CreateBoard(ctx, common.CreateBoardRequest{Name: name})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_board", board)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.delete_board",
			mcp.WithDescription("Delete one board and apply the configured delete policy to its tasks."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Board name")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name, err := req.RequireString("name")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			result, err := boards.DeleteBoard(ctx, name)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("delete_board", result)
		},
	)
}

// registerTaskTools registers task list/create/edit/delete/move/history tools.
func registerTaskTools(srv *mcpserver.MCPServer, boards common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"tavla.list_tasks",
			mcp.WithDescription("List tasks in board order, optionally for one board."),
			mcp.WithString("board", mcp.Description("Restrict to one board")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := boards.ListTasks(ctx, req.GetString("board", ""))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_tasks", map[string]any{"tasks": rows})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.create_task",
			mcp.WithDescription("Create one task on an existing board."),
			mcp.WithString("board", mcp.Required(), mcp.Description("Board name")),
			mcp.WithString("text", mcp.Required(), mcp.Description("Task text")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			board, err := req.RequireString("board")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			text, err := req.RequireString("text")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			task, err := boards.CreateTask(ctx, common.CreateTaskRequest{Board: board, Text: text})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_task", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.edit_task",
			mcp.WithDescription("Replace the text of one task. History is unchanged."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
			mcp.WithString("text", mcp.Required(), mcp.Description("New task text")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			text, err := req.RequireString("text")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			task, err := boards.EditTask(ctx, common.EditTaskRequest{ID: id, Text: text})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("edit_task", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.delete_task",
			mcp.WithDescription("Delete one task and its history."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			if err := boards.DeleteTask(ctx, id); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("delete_task", map[string]any{"id": id, "deleted": true})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.move_task",
			mcp.WithDescription("Move one task to a board. Without position the task is appended."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
			mcp.WithString("board", mcp.Required(), mcp.Description("Destination board")),
			mcp.WithNumber("position", mcp.Description("Index among the other tasks on the destination board")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				ID       string `json:"id"`
				Board    string `json:"board"`
				Position *int   `json:"position"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.ID) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "id" not found`), nil
			}
			if strings.TrimSpace(args.Board) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "board" not found`), nil
			}
			task, err := boards.MoveTask(ctx, common.MoveTaskRequest{
				ID:       args.ID,
				Board:    args.Board,
				Position: args.Position,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("move_task", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.task_history",
			mcp.WithDescription("Return the ordered board history of one task."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			history, err := boards.TaskHistory(ctx, id)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("task_history", map[string]any{"id": id, "history": history})
		},
	)
}

// jsonResult encodes one structured tool result.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// invalidRequestToolResult maps argument errors into MCP-visible tool errors.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
