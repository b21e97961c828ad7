// Conversation orchestrator - the fixed seven-step pipeline wrapping the
// agent runner. Owns failure containment: a broken model call degrades to a
// fixed apology reply stored as a normal assistant message, never a
// pipeline error.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/taskpilot/taskpilot/pkg/db"
	"github.com/taskpilot/taskpilot/pkg/utils"
)

// FallbackReply is stored as the assistant message whenever the agent
// runner fails. It must read like a normal reply; the failure never
// surfaces to the HTTP caller.
const FallbackReply = "I'm having trouble connecting right now. Please try again in a moment."

// historyWindow is how many recent messages are handed to the agent runner.
const historyWindow = 20

// ErrEmptyMessage rejects blank chat input before any state change.
var ErrEmptyMessage = errors.New("message cannot be empty")

// ChatResult is what one pipeline run returns to the HTTP layer.
type ChatResult struct {
	ConversationID uint           `json:"conversation_id"`
	Response       string         `json:"response"`
	ToolCalls      db.ToolCallLog `json:"tool_calls,omitempty"`
}

// ChatService orchestrates one inbound chat message:
//
//  1. validate the message
//  2. resolve or create the conversation
//  3. load the recent history window
//  4. persist the user message (before the model is invoked)
//  5. run the agent
//  6. persist the assistant reply, real or fallback, with its call log
//  7. return the result
//
// Steps run strictly in sequence; there is no internal concurrency.
type ChatService struct {
	conversations *ConversationService
	runner        AgentRunner
	logger        *slog.Logger
}

// NewChatService creates a new chat service
func NewChatService(conversations *ConversationService, runner AgentRunner) *ChatService {
	return &ChatService{
		conversations: conversations,
		runner:        runner,
		logger:        utils.GetLogger(),
	}
}

// ProcessMessage runs the pipeline for one owner message. A conversation id
// that is absent, unknown, or foreign starts a fresh conversation. Store
// failures are pipeline errors; agent failures are not - they are contained
// here as the fallback reply.
func (s *ChatService) ProcessMessage(ctx context.Context, ownerID, message string, conversationID *uint) (*ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	conv, err := s.conversations.GetOrCreateConversation(ownerID, conversationID)
	if err != nil {
		return nil, err
	}

	historyMessages, err := s.conversations.RecentMessages(ownerID, conv.ID, historyWindow)
	if err != nil {
		return nil, err
	}
	history := toSchemaMessages(historyMessages)

	// The user message is durable before the model call begins; a failing
	// run still leaves a complete transcript up to this point.
	if _, err := s.conversations.AddMessage(ownerID, conv.ID, db.RoleUser, message, nil); err != nil {
		return nil, err
	}

	reply, toolCalls, runErr := s.runner.Run(ctx, ownerID, message, history)
	if runErr != nil {
		s.logger.Error("Agent run failed, storing fallback reply",
			"owner", ownerID, "conversation", conv.ID, "error", runErr)
		reply = FallbackReply
		toolCalls = nil
	}

	if _, err := s.conversations.AddMessage(ownerID, conv.ID, db.RoleAssistant, reply, toolCalls); err != nil {
		return nil, err
	}

	return &ChatResult{
		ConversationID: conv.ID,
		Response:       reply,
		ToolCalls:      toolCalls,
	}, nil
}

// toSchemaMessages converts stored transcript rows into the model's message
// shape. Tool-call logs are not replayed into history; the model only sees
// the spoken turns.
func toSchemaMessages(messages []db.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case db.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case db.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		}
	}
	return out
}
