// Package tools provides the closed set of task tools the conversational
// agent can invoke. Tools are registered once at init time and instantiated
// per request from a ToolContext carrying the owner id and the call log.
package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/tool"
)

// ToolID identifies a built-in tool
type ToolID string

// ToolDefinition describes a built-in tool
type ToolDefinition struct {
	ID          ToolID `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Dangerous   bool   `json:"dangerous"` // Whether this tool can modify data
}

// ToolFactory is a function that creates a tool instance
type ToolFactory func(ctx *ToolContext) tool.InvokableTool

// Registry manages built-in tools
type Registry struct {
	definitions map[ToolID]ToolDefinition
	factories   map[ToolID]ToolFactory
	mu          sync.RWMutex
}

// Global registry instance
var globalRegistry = &Registry{
	definitions: make(map[ToolID]ToolDefinition),
	factories:   make(map[ToolID]ToolFactory),
}

// Register registers a tool with its definition and factory
func Register(def ToolDefinition, factory ToolFactory) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	globalRegistry.definitions[def.ID] = def
	globalRegistry.factories[def.ID] = factory
}

// GetTool returns an invokable tool by ID
func GetTool(id ToolID, ctx *ToolContext) (tool.InvokableTool, error) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	factory, exists := globalRegistry.factories[id]
	if !exists {
		return nil, fmt.Errorf("unknown tool: %s", id)
	}
	return factory(ctx), nil
}

// GetAllTools returns all registered tools bound to the given context,
// ordered by tool name so the schema the model sees is deterministic.
func GetAllTools(ctx *ToolContext) []tool.InvokableTool {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	ids := make([]ToolID, 0, len(globalRegistry.factories))
	for id := range globalRegistry.factories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tools := make([]tool.InvokableTool, 0, len(ids))
	for _, id := range ids {
		tools = append(tools, globalRegistry.factories[id](ctx))
	}
	return tools
}

// ListToolDefinitions returns all available tool definitions sorted by name
func ListToolDefinitions() []ToolDefinition {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	result := make([]ToolDefinition, 0, len(globalRegistry.definitions))
	for _, def := range globalRegistry.definitions {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// IsRegistered checks if a tool ID is registered
func IsRegistered(id ToolID) bool {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	_, exists := globalRegistry.definitions[id]
	return exists
}
