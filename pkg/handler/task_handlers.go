package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskpilot/taskpilot/pkg/db"
	"github.com/taskpilot/taskpilot/pkg/service"
	"github.com/taskpilot/taskpilot/pkg/utils"
)

// TaskHandler serves the REST task endpoints. Ownership is already enforced
// by the auth middleware, so the path user_id is trusted here.
type TaskHandler struct {
	tasks *service.TaskService
}

func NewTaskHandler(tasks *service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// RegisterRoutes mounts the task endpoints under the authenticated group.
func (h *TaskHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:user_id/tasks", h.List)
	rg.POST("/:user_id/tasks", h.Create)
	rg.GET("/:user_id/tasks/:id", h.Get)
	rg.PUT("/:user_id/tasks/:id", h.Update)
	rg.PATCH("/:user_id/tasks/:id/complete", h.ToggleComplete)
	rg.DELETE("/:user_id/tasks/:id", h.Delete)
}

type taskResponse struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toTaskResponse(t *db.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// List returns the owner's tasks, newest first. Optional query params:
// status (all/pending/completed), limit (default 50, max 100), offset.
func (h *TaskHandler) List(c *gin.Context) {
	ownerID := c.Param("user_id")
	status := c.DefaultQuery("status", db.StatusAll)
	limit := queryInt(c, "limit", 50, 100)
	offset := queryInt(c, "offset", 0, 1<<30)

	tasks, err := h.tasks.List(ownerID, status, limit, offset)
	if err != nil {
		internalError(c, err)
		return
	}

	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out, "count": len(out)})
}

func (h *TaskHandler) Create(c *gin.Context) {
	ownerID := c.Param("user_id")
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	task, err := h.tasks.Create(ownerID, req.Title, req.Description)
	if err != nil {
		if isValidationError(err) {
			badRequest(c, err.Error())
			return
		}
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTaskResponse(task))
}

func (h *TaskHandler) Get(c *gin.Context) {
	ownerID := c.Param("user_id")
	taskID, ok := pathID(c, "invalid task id")
	if !ok {
		return
	}

	task, err := h.tasks.GetByID(ownerID, taskID)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			notFound(c, "task not found")
			return
		}
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h *TaskHandler) Update(c *gin.Context) {
	ownerID := c.Param("user_id")
	taskID, ok := pathID(c, "invalid task id")
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	task, err := h.tasks.Update(ownerID, taskID, service.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTaskNotFound):
			notFound(c, "task not found")
		case isValidationError(err), errors.Is(err, service.ErrNoUpdates):
			badRequest(c, err.Error())
		default:
			internalError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

// ToggleComplete flips the completion flag, so completing twice through the
// REST surface reopens the task. The agent tool is one-way instead.
func (h *TaskHandler) ToggleComplete(c *gin.Context) {
	ownerID := c.Param("user_id")
	taskID, ok := pathID(c, "invalid task id")
	if !ok {
		return
	}

	task, err := h.tasks.ToggleComplete(ownerID, taskID)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			notFound(c, "task not found")
			return
		}
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h *TaskHandler) Delete(c *gin.Context) {
	ownerID := c.Param("user_id")
	taskID, ok := pathID(c, "invalid task id")
	if !ok {
		return
	}

	if err := h.tasks.Delete(ownerID, taskID); err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			notFound(c, "task not found")
			return
		}
		internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func isValidationError(err error) bool {
	return errors.Is(err, service.ErrTitleEmpty) || errors.Is(err, service.ErrTitleTooLong)
}

// pathID parses the :id path parameter; on failure it writes a 400 with
// the given message and reports false.
func pathID(c *gin.Context, message string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		badRequest(c, message)
		return 0, false
	}
	return uint(n), true
}

// queryInt reads an integer query parameter with a default and a cap.
// Unparseable, zero, and negative values fall back to the default, so a
// client cannot disable the cap by asking for limit=0.
func queryInt(c *gin.Context, name string, def, max int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": message})
}

func notFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": message})
}

// internalError logs the failure and answers with a fixed body. Internal
// detail (driver errors, SQL) never reaches the client.
func internalError(c *gin.Context, err error) {
	utils.GetLogger().Error("Request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "An unexpected error occurred"})
}
