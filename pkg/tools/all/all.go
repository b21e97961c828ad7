// Package all imports and initializes all built-in tools.
// Import this package to register all tools.
package all

import (
	// Import all tool packages to trigger their init() functions
	_ "github.com/taskpilot/taskpilot/pkg/tools/task"
)
