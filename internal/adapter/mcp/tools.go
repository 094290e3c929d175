package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/taskpad/internal/domain/assistant"
	"github.com/Strob0t/taskpad/internal/domain/task"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.listTasksTool(),
		s.createTaskTool(),
		s.completeTaskTool(),
	)
}

func (s *Server) listTasksTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_tasks",
		mcplib.WithDescription("List the user's tasks, newest first"),
		mcplib.WithString("view",
			mcplib.Description("Which tasks to return"),
			mcplib.Enum(string(task.ViewAll), string(task.ViewActive), string(task.ViewHistory)),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListTasks}
}

func (s *Server) createTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("create_task",
		mcplib.WithDescription("Create a task. due_date accepts a timestamp or a phrase like \"tomorrow\" or \"in 3 days\""),
		mcplib.WithString("title", mcplib.Required(), mcplib.Description("Task title")),
		mcplib.WithString("content", mcplib.Description("Optional task body")),
		mcplib.WithString("due_date", mcplib.Description("Optional due date")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleCreateTask}
}

func (s *Server) completeTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("complete_task",
		mcplib.WithDescription("Mark a task as done"),
		mcplib.WithString("task_id", mcplib.Required(), mcplib.Description("The task ID")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleCompleteTask}
}

func (s *Server) handleListTasks(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Tasks == nil {
		return mcplib.NewToolResultError("task service not configured"), nil
	}
	view, _ := req.GetArguments()["view"].(string)
	tasks, err := s.deps.Tasks.List(s.withUser(ctx), task.ParseView(view))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list tasks", err), nil
	}
	return toolResultJSON(tasks)
}

func (s *Server) handleCreateTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Tasks == nil {
		return mcplib.NewToolResultError("task service not configured"), nil
	}
	args := req.GetArguments()
	title, _ := args["title"].(string)
	if title == "" {
		return mcplib.NewToolResultError("title is required"), nil
	}
	content, _ := args["content"].(string)
	due, _ := args["due_date"].(string)
	if due != "" {
		due = assistant.ResolveDate(due, s.deps.Now())
	}

	t, err := s.deps.Tasks.Create(s.withUser(ctx), task.CreateRequest{Title: title, Content: content, DueDate: due})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to create task", err), nil
	}
	return toolResultJSON(t)
}

func (s *Server) handleCompleteTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Tasks == nil {
		return mcplib.NewToolResultError("task service not configured"), nil
	}
	id, _ := req.GetArguments()["task_id"].(string)
	if id == "" {
		return mcplib.NewToolResultError("task_id is required"), nil
	}
	done := true
	t, err := s.deps.Tasks.Update(s.withUser(ctx), id, task.UpdateRequest{IsDone: &done})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to complete task %s", id), err), nil
	}
	return toolResultJSON(t)
}

func toolResultJSON(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
