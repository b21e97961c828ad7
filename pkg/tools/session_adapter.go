package tools

import (
	"github.com/cloudwego/eino/components/tool"
	"github.com/taskpilot/taskpilot/pkg/db"
	"github.com/taskpilot/taskpilot/pkg/service"
)

// SessionProvider implements the ToolSetProvider interface from the service
// package: it binds the registered tools to one owner for one agent run.
type SessionProvider struct {
	tasks *service.TaskService
}

// NewSessionProvider creates a new session provider
func NewSessionProvider(tasks *service.TaskService) *SessionProvider {
	return &SessionProvider{tasks: tasks}
}

// NewSession builds a fresh tool context and instantiates every registered
// tool against it. Each session has its own call log.
func (p *SessionProvider) NewSession(ownerID string) service.ToolSession {
	ctx := NewToolContext(p.tasks, ownerID)
	invokable := GetAllTools(ctx)
	bound := make([]tool.BaseTool, 0, len(invokable))
	for _, t := range invokable {
		bound = append(bound, t)
	}
	return &session{ctx: ctx, tools: bound}
}

type session struct {
	ctx   *ToolContext
	tools []tool.BaseTool
}

func (s *session) Tools() []tool.BaseTool {
	return s.tools
}

func (s *session) Log() db.ToolCallLog {
	return s.ctx.Log()
}
