package tools

import (
	"sync"

	"github.com/taskpilot/taskpilot/pkg/db"
	"github.com/taskpilot/taskpilot/pkg/service"
)

// ToolContext binds one agent run to an owner. Every tool invocation goes
// through the task service with this owner id, and every invocation is
// appended to the call log in order. The context is built per request and
// never shared across runs.
type ToolContext struct {
	Tasks   *service.TaskService
	OwnerID string

	mu  sync.Mutex
	log db.ToolCallLog
}

// NewToolContext creates a tool context for one owner's agent run.
func NewToolContext(tasks *service.TaskService, ownerID string) *ToolContext {
	return &ToolContext{
		Tasks:   tasks,
		OwnerID: ownerID,
	}
}

// Record appends one tool invocation to the call log.
func (c *ToolContext) Record(tool string, arguments, result map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, db.ToolCallRecord{
		Tool:      tool,
		Arguments: arguments,
		Result:    result,
	})
}

// Log returns the invocations recorded so far, in call order.
func (c *ToolContext) Log() db.ToolCallLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(db.ToolCallLog, len(c.log))
	copy(out, c.log)
	return out
}
