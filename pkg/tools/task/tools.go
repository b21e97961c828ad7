// Task tools - the five operations the conversational agent can invoke
// against the task store. Domain errors (bad titles, unknown ids) are
// returned to the model as JSON error payloads, never as Go errors; every
// invocation is recorded in the run's call log with its arguments and
// structured result.
package task

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/taskpilot/taskpilot/pkg/db"
	"github.com/taskpilot/taskpilot/pkg/service"
	"github.com/taskpilot/taskpilot/pkg/tools"
)

// Tool IDs
const (
	ToolIDAddTask      tools.ToolID = "add_task"
	ToolIDListTasks    tools.ToolID = "list_tasks"
	ToolIDCompleteTask tools.ToolID = "complete_task"
	ToolIDDeleteTask   tools.ToolID = "delete_task"
	ToolIDUpdateTask   tools.ToolID = "update_task"
)

// Error payload texts. These are part of the tool contract and mirrored by
// the REST validation layer.
const (
	msgTitleEmpty   = "Title cannot be empty"
	msgTitleTooLong = "Title exceeds 200 characters"
	msgTaskNotFound = "Task not found"
	msgNoUpdates    = "No updates provided"
)

func init() {
	tools.Register(tools.ToolDefinition{
		ID:          ToolIDAddTask,
		Name:        "add_task",
		Description: "Create a new task on the user's todo list.",
		Dangerous:   true,
	}, newAddTaskTool)

	tools.Register(tools.ToolDefinition{
		ID:          ToolIDListTasks,
		Name:        "list_tasks",
		Description: "Retrieve tasks from the user's todo list.",
		Dangerous:   false,
	}, newListTasksTool)

	tools.Register(tools.ToolDefinition{
		ID:          ToolIDCompleteTask,
		Name:        "complete_task",
		Description: "Mark a task as complete.",
		Dangerous:   true,
	}, newCompleteTaskTool)

	tools.Register(tools.ToolDefinition{
		ID:          ToolIDDeleteTask,
		Name:        "delete_task",
		Description: "Remove a task from the user's todo list.",
		Dangerous:   true,
	}, newDeleteTaskTool)

	tools.Register(tools.ToolDefinition{
		ID:          ToolIDUpdateTask,
		Name:        "update_task",
		Description: "Update a task's title or description.",
		Dangerous:   true,
	}, newUpdateTaskTool)
}

// ========== add_task ==========

type AddTaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func newAddTaskTool(tc *tools.ToolContext) tool.InvokableTool {
	return utils.NewTool(&schema.ToolInfo{
		Name: "add_task",
		Desc: "Create a new task for the user's todo list.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"title": {
				Type:     schema.String,
				Desc:     "The task title (1-200 characters)",
				Required: true,
			},
			"description": {
				Type: schema.String,
				Desc: "Optional task description (up to 1000 characters)",
			},
		}),
	}, func(ctx context.Context, input *AddTaskInput) (string, error) {
		args := map[string]any{"title": input.Title}
		if input.Description != "" {
			args["description"] = input.Description
		}

		created, err := tc.Tasks.Create(tc.OwnerID, input.Title, input.Description)
		if err != nil {
			result := titleErrorPayload(err)
			tc.Record("add_task", args, result)
			return formatJSON(result), nil
		}

		result := map[string]any{
			"task_id": created.ID,
			"status":  "created",
			"title":   created.Title,
		}
		tc.Record("add_task", args, result)
		return formatJSON(result), nil
	})
}

// ========== list_tasks ==========

type ListTasksInput struct {
	Status string `json:"status,omitempty"`
}

func newListTasksTool(tc *tools.ToolContext) tool.InvokableTool {
	return utils.NewTool(&schema.ToolInfo{
		Name: "list_tasks",
		Desc: "Retrieve tasks from the user's todo list.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"status": {
				Type: schema.String,
				Desc: "Filter by task status. Default: all",
				Enum: []string{db.StatusAll, db.StatusPending, db.StatusCompleted},
			},
		}),
	}, func(ctx context.Context, input *ListTasksInput) (string, error) {
		status := input.Status
		switch status {
		case db.StatusAll, db.StatusPending, db.StatusCompleted:
		default:
			status = db.StatusAll
		}

		list, err := tc.Tasks.List(tc.OwnerID, status, 0, 0)
		if err != nil {
			return "", err
		}

		items := make([]map[string]any, 0, len(list))
		for _, t := range list {
			items = append(items, map[string]any{
				"id":          t.ID,
				"title":       t.Title,
				"description": t.Description,
				"completed":   t.Completed,
				"created_at":  t.CreatedAt.UTC().Format(time.RFC3339),
			})
		}

		tc.Record("list_tasks",
			map[string]any{"status": status},
			map[string]any{"tasks": items, "count": len(items)})
		// The model sees the bare array, matching the declared contract.
		return formatJSON(items), nil
	})
}

// ========== complete_task ==========

type CompleteTaskInput struct {
	TaskID uint `json:"task_id"`
}

func newCompleteTaskTool(tc *tools.ToolContext) tool.InvokableTool {
	return utils.NewTool(&schema.ToolInfo{
		Name: "complete_task",
		Desc: "Mark a task as complete. Completing an already-completed task succeeds.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"task_id": {
				Type:     schema.Integer,
				Desc:     "The ID of the task to complete",
				Required: true,
			},
		}),
	}, func(ctx context.Context, input *CompleteTaskInput) (string, error) {
		args := map[string]any{"task_id": input.TaskID}

		completed, err := tc.Tasks.Complete(tc.OwnerID, input.TaskID)
		if err != nil {
			if !errors.Is(err, service.ErrTaskNotFound) {
				return "", err
			}
			result := notFoundPayload(input.TaskID)
			tc.Record("complete_task", args, result)
			return formatJSON(result), nil
		}

		result := map[string]any{
			"task_id": completed.ID,
			"status":  "completed",
			"title":   completed.Title,
		}
		tc.Record("complete_task", args, result)
		return formatJSON(result), nil
	})
}

// ========== delete_task ==========

type DeleteTaskInput struct {
	TaskID uint `json:"task_id"`
}

func newDeleteTaskTool(tc *tools.ToolContext) tool.InvokableTool {
	return utils.NewTool(&schema.ToolInfo{
		Name: "delete_task",
		Desc: "Remove a task from the user's todo list.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"task_id": {
				Type:     schema.Integer,
				Desc:     "The ID of the task to delete",
				Required: true,
			},
		}),
	}, func(ctx context.Context, input *DeleteTaskInput) (string, error) {
		args := map[string]any{"task_id": input.TaskID}

		// Capture the title before the row goes away.
		existing, err := tc.Tasks.GetByID(tc.OwnerID, input.TaskID)
		if err != nil {
			if !errors.Is(err, service.ErrTaskNotFound) {
				return "", err
			}
			result := notFoundPayload(input.TaskID)
			tc.Record("delete_task", args, result)
			return formatJSON(result), nil
		}

		if err := tc.Tasks.Delete(tc.OwnerID, input.TaskID); err != nil {
			if !errors.Is(err, service.ErrTaskNotFound) {
				return "", err
			}
			result := notFoundPayload(input.TaskID)
			tc.Record("delete_task", args, result)
			return formatJSON(result), nil
		}

		result := map[string]any{
			"task_id": input.TaskID,
			"status":  "deleted",
			"title":   existing.Title,
		}
		tc.Record("delete_task", args, result)
		return formatJSON(result), nil
	})
}

// ========== update_task ==========

type UpdateTaskInput struct {
	TaskID      uint    `json:"task_id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

func newUpdateTaskTool(tc *tools.ToolContext) tool.InvokableTool {
	return utils.NewTool(&schema.ToolInfo{
		Name: "update_task",
		Desc: "Update a task's title or description. At least one of them must be provided.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"task_id": {
				Type:     schema.Integer,
				Desc:     "The ID of the task to update",
				Required: true,
			},
			"title": {
				Type: schema.String,
				Desc: "New task title (1-200 characters)",
			},
			"description": {
				Type: schema.String,
				Desc: "New task description (up to 1000 characters)",
			},
		}),
	}, func(ctx context.Context, input *UpdateTaskInput) (string, error) {
		args := map[string]any{"task_id": input.TaskID}
		if input.Title != nil {
			args["title"] = *input.Title
		}
		if input.Description != nil {
			args["description"] = *input.Description
		}

		if input.Title == nil && input.Description == nil {
			result := map[string]any{"error": msgNoUpdates}
			tc.Record("update_task", args, result)
			return formatJSON(result), nil
		}

		updated, err := tc.Tasks.Update(tc.OwnerID, input.TaskID, service.TaskUpdate{
			Title:       input.Title,
			Description: input.Description,
		})
		if err != nil {
			var result map[string]any
			switch {
			case errors.Is(err, service.ErrTaskNotFound):
				result = notFoundPayload(input.TaskID)
			case errors.Is(err, service.ErrTitleEmpty), errors.Is(err, service.ErrTitleTooLong):
				result = titleErrorPayload(err)
			default:
				return "", err
			}
			tc.Record("update_task", args, result)
			return formatJSON(result), nil
		}

		result := map[string]any{
			"task_id": updated.ID,
			"status":  "updated",
			"title":   updated.Title,
		}
		tc.Record("update_task", args, result)
		return formatJSON(result), nil
	})
}

// ========== helpers ==========

func titleErrorPayload(err error) map[string]any {
	switch {
	case errors.Is(err, service.ErrTitleEmpty):
		return map[string]any{"error": msgTitleEmpty}
	case errors.Is(err, service.ErrTitleTooLong):
		return map[string]any{"error": msgTitleTooLong}
	default:
		return map[string]any{"error": err.Error()}
	}
}

func notFoundPayload(taskID uint) map[string]any {
	return map[string]any{"error": msgTaskNotFound, "task_id": taskID}
}

func formatJSON(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}
