package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/taskbridge/internal/domain/task"
	"github.com/Strob0t/taskbridge/internal/service"
)

var errNoTasks = errors.New("task service not configured")

func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		mcpserver.ServerTool{
			Tool: mcplib.NewTool("submit_tool_request",
				mcplib.WithDescription("Queue a tool request and return its task id"),
				mcplib.WithString("tool_name", mcplib.Required(), mcplib.Description("Tool to run, e.g. translator or ppt_generator")),
				mcplib.WithObject("args", mcplib.Description("Tool arguments")),
				mcplib.WithString("task_id", mcplib.Description("Caller-chosen task id; generated when omitted")),
				mcplib.WithString("trace_id", mcplib.Description("Trace id propagated to logs and remote agents")),
			),
			Handler: s.handleSubmit,
		},
		mcpserver.ServerTool{
			Tool: mcplib.NewTool("get_task_status",
				mcplib.WithDescription("Return the status and result of a task"),
				mcplib.WithString("task_id", mcplib.Required(), mcplib.Description("Task id returned by submit_tool_request")),
			),
			Handler: s.handleGetTaskStatus,
		},
	)
}

func (s *Server) handleSubmit(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if s.deps.Tasks == nil {
		return mcplib.NewToolResultErrorFromErr("submit", errNoTasks), nil
	}
	params := req.GetArguments()
	toolName, _ := params["tool_name"].(string)
	if toolName == "" {
		return mcplib.NewToolResultError("tool_name is required"), nil
	}
	args, err := toArgs(params["args"])
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("invalid args", err), nil
	}
	taskID, _ := params["task_id"].(string)
	traceID, _ := params["trace_id"].(string)

	id, err := s.deps.Tasks.Submit(ctx, service.SubmitRequest{
		TaskID:   taskID,
		TraceID:  traceID,
		ToolName: toolName,
		Args:     args,
	})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("submit failed", err), nil
	}
	return toolResultJSON(map[string]string{"task_id": id, "status": string(task.PollRunning)})
}

func (s *Server) handleGetTaskStatus(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if s.deps.Tasks == nil {
		return mcplib.NewToolResultErrorFromErr("get status", errNoTasks), nil
	}
	taskID, _ := req.GetArguments()["task_id"].(string)
	if taskID == "" {
		return mcplib.NewToolResultError("task_id is required"), nil
	}
	return toolResultJSON(s.deps.Tasks.Poll(taskID))
}

// toArgs re-encodes a decoded JSON object into ordered task args.
func toArgs(v any) (task.Args, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("args must be an object, got %T", v)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var args task.Args
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}

func toolResultJSON(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcplib.NewToolResultText(string(data)), nil
}
