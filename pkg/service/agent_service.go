// Agent runner - turns one user message plus history into a reply and an
// ordered tool-call log, using an OpenAI-compatible chat model as the
// decision maker.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot/pkg/config"
	"github.com/taskpilot/taskpilot/pkg/db"
	"github.com/taskpilot/taskpilot/pkg/utils"
)

// ErrToolRoundsExceeded reports a run that kept requesting tools past the
// round budget. The caller treats it like any other runner failure.
var ErrToolRoundsExceeded = errors.New("tool call rounds exceeded")

// maxToolRounds bounds the model->tools->model loop of a single run.
const maxToolRounds = 8

// replyWhenSilent is returned when the model produces an empty final turn.
const replyWhenSilent = "I'm not sure how to help with that."

const systemPrompt = `You are a friendly and helpful AI assistant that helps users manage their todo list.
You can help users:
- Create new tasks ("Add a task to...", "I need to remember...", "Create...")
- View their tasks ("Show me...", "What's pending?", "List...")
- Mark tasks as complete ("Mark as complete", "Done with...", "Finished...")
- Delete tasks ("Delete...", "Remove...", "Cancel...")
- Update tasks ("Change...", "Update...", "Rename...")

When responding:
1. Be friendly and conversational
2. Confirm actions with the task details
3. Offer helpful follow-up suggestions when appropriate
4. If you're unsure what the user wants, ask for clarification

Task response guidelines:
- After adding: "I've added '{title}' to your task list!"
- After listing: Show tasks in a numbered list with status
- After completing: "Nice work! '{title}' is marked as complete."
- After deleting: "'{title}' has been removed from your list."
- After updating: "I've updated '{title}' for you."

If the user's request is unclear, respond with:
"I'm not sure what you'd like me to do with your tasks. You can ask me to:
- Add a new task
- Show your tasks
- Mark a task as complete
- Delete a task
- Update a task title"`

// ToolSession is one run's tool set, bound to an owner, plus the call log
// the tools record into.
type ToolSession interface {
	Tools() []tool.BaseTool
	Log() db.ToolCallLog
}

// ToolSetProvider builds a per-run tool session. Implemented by the tools
// package; declared here to avoid an import cycle.
type ToolSetProvider interface {
	NewSession(ownerID string) ToolSession
}

// AgentRunner is what the conversation orchestrator depends on; tests
// substitute a stub.
type AgentRunner interface {
	Run(ctx context.Context, ownerID, message string, history []*schema.Message) (string, db.ToolCallLog, error)
}

// AgentService drives the tool-calling loop against a single
// OpenAI-compatible chat model. The model is constructed once at startup.
type AgentService struct {
	model   einoModel.ToolCallingChatModel
	toolSet ToolSetProvider
	logger  *slog.Logger
}

// NewAgentService creates the agent runner from the startup configuration.
func NewAgentService(cfg *config.Config, toolSet ToolSetProvider) (*AgentService, error) {
	chatModel, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return &AgentService{
		model:   chatModel,
		toolSet: toolSet,
		logger:  utils.GetLogger(),
	}, nil
}

// Run maps one message plus a bounded history window into a final reply and
// the ordered tool-call log. The model sees each tool's result before
// deciding its next action; no tool runs without the model requesting it.
// Provider or transport failures propagate as errors - the runner never
// fabricates a reply or a log on that path.
func (s *AgentService) Run(ctx context.Context, ownerID, message string, history []*schema.Message) (string, db.ToolCallLog, error) {
	session := s.toolSet.NewSession(ownerID)
	sessionTools := session.Tools()

	toolsInfo := make([]*schema.ToolInfo, 0, len(sessionTools))
	for _, t := range sessionTools {
		info, err := t.Info(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("get tool info: %w", err)
		}
		toolsInfo = append(toolsInfo, info)
	}

	toolsModel, err := s.model.WithTools(toolsInfo)
	if err != nil {
		return "", nil, fmt.Errorf("bind tools: %w", err)
	}

	toolNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{Tools: sessionTools})
	if err != nil {
		return "", nil, fmt.Errorf("create tools node: %w", err)
	}

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, sanitizeHistory(history)...)
	messages = append(messages, schema.UserMessage(message))

	for round := 0; round < maxToolRounds; round++ {
		out, err := toolsModel.Generate(ctx, messages)
		if err != nil {
			return "", nil, fmt.Errorf("model call: %w", err)
		}

		if len(out.ToolCalls) == 0 {
			reply := out.Content
			if reply == "" {
				reply = replyWhenSilent
			}
			return reply, session.Log(), nil
		}

		// Some providers omit tool-call ids; the tools node needs one to
		// pair results with requests.
		for i := range out.ToolCalls {
			if out.ToolCalls[i].ID == "" {
				out.ToolCalls[i].ID = uuid.New().String()
			}
		}

		toolMessages, err := toolNode.Invoke(ctx, out)
		if err != nil {
			return "", nil, fmt.Errorf("invoke tools: %w", err)
		}

		messages = append(messages, out)
		messages = append(messages, toolMessages...)
		s.logger.Debug("Agent tool round completed", "owner", ownerID, "round", round, "calls", len(out.ToolCalls))
	}

	return "", nil, ErrToolRoundsExceeded
}

// sanitizeHistory cleans stored history for API compatibility: nil and
// empty turns are dropped and consecutive same-role turns are merged, since
// some providers reject them.
func sanitizeHistory(history []*schema.Message) []*schema.Message {
	result := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		if msg == nil || msg.Content == "" {
			continue
		}
		if len(result) > 0 && result[len(result)-1].Role == msg.Role {
			last := result[len(result)-1]
			merged := *last
			merged.Content = last.Content + "\n" + msg.Content
			result[len(result)-1] = &merged
			continue
		}
		msgCopy := *msg
		result = append(result, &msgCopy)
	}
	return result
}
