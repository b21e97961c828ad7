package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/taskpilot/taskpilot/pkg/db"
)

// stubRunner stands in for the agent; it records what it was handed and
// returns a canned reply or error.
type stubRunner struct {
	reply     string
	toolCalls db.ToolCallLog
	err       error

	gotMessage string
	gotHistory []*schema.Message
	calls      int
}

func (s *stubRunner) Run(ctx context.Context, ownerID, message string, history []*schema.Message) (string, db.ToolCallLog, error) {
	s.calls++
	s.gotMessage = message
	s.gotHistory = history
	return s.reply, s.toolCalls, s.err
}

func TestChatService_NewConversation(t *testing.T) {
	conversations := NewConversationService(newTestDB(t))
	runner := &stubRunner{reply: "I've added 'Buy milk' to your task list!"}
	chat := NewChatService(conversations, runner)

	result, err := chat.ProcessMessage(context.Background(), "user-1", "Add a task to buy milk", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if result.ConversationID == 0 {
		t.Fatalf("result has zero conversation id")
	}
	if result.Response != runner.reply {
		t.Fatalf("response = %q, want %q", result.Response, runner.reply)
	}

	msgs, err := conversations.GetMessages("user-1", result.ConversationID, 0)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("stored %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != db.RoleUser || msgs[0].Content != "Add a task to buy milk" {
		t.Fatalf("first message = %+v, want the user turn", msgs[0])
	}
	if msgs[1].Role != db.RoleAssistant || msgs[1].Content != runner.reply {
		t.Fatalf("second message = %+v, want the assistant turn", msgs[1])
	}
}

func TestChatService_EmptyMessageRejected(t *testing.T) {
	conversations := NewConversationService(newTestDB(t))
	runner := &stubRunner{reply: "unused"}
	chat := NewChatService(conversations, runner)

	_, err := chat.ProcessMessage(context.Background(), "user-1", "   \n\t ", nil)
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("ProcessMessage(blank) error = %v, want ErrEmptyMessage", err)
	}
	if runner.calls != 0 {
		t.Fatalf("runner was invoked for a blank message")
	}

	// Nothing was persisted.
	list, err := conversations.ListConversations("user-1", 0)
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("blank message created %d conversations", len(list))
	}
}

func TestChatService_ResumeCarriesHistory(t *testing.T) {
	conversations := NewConversationService(newTestDB(t))
	runner := &stubRunner{reply: "Sure."}
	chat := NewChatService(conversations, runner)

	first, err := chat.ProcessMessage(context.Background(), "user-1", "hello", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	_, err = chat.ProcessMessage(context.Background(), "user-1", "and my tasks?", &first.ConversationID)
	if err != nil {
		t.Fatalf("ProcessMessage(resume) error = %v", err)
	}
	if len(runner.gotHistory) != 2 {
		t.Fatalf("runner got %d history messages, want 2", len(runner.gotHistory))
	}
	if runner.gotHistory[0].Role != schema.User || runner.gotHistory[0].Content != "hello" {
		t.Fatalf("history[0] = %+v, want the first user turn", runner.gotHistory[0])
	}
	if runner.gotHistory[1].Role != schema.Assistant {
		t.Fatalf("history[1] role = %v, want assistant", runner.gotHistory[1].Role)
	}

	msgs, _ := conversations.GetMessages("user-1", first.ConversationID, 0)
	if len(msgs) != 4 {
		t.Fatalf("stored %d messages after two turns, want 4", len(msgs))
	}
}

func TestChatService_UnknownConversationStartsFresh(t *testing.T) {
	conversations := NewConversationService(newTestDB(t))
	chat := NewChatService(conversations, &stubRunner{reply: "ok"})

	bogus := uint(424242)
	result, err := chat.ProcessMessage(context.Background(), "user-1", "hi", &bogus)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if result.ConversationID == bogus {
		t.Fatalf("unknown conversation id was resumed")
	}
}

func TestChatService_RunnerFailureStoresFallback(t *testing.T) {
	conversations := NewConversationService(newTestDB(t))
	runner := &stubRunner{err: errors.New("upstream timeout")}
	chat := NewChatService(conversations, runner)

	result, err := chat.ProcessMessage(context.Background(), "user-1", "add milk", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v, want contained failure", err)
	}
	if result.Response != FallbackReply {
		t.Fatalf("response = %q, want fallback reply", result.Response)
	}
	if len(result.ToolCalls) != 0 {
		t.Fatalf("fallback result carries tool calls: %+v", result.ToolCalls)
	}

	// Both the user message and the fallback reply are in the transcript.
	msgs, _ := conversations.GetMessages("user-1", result.ConversationID, 0)
	if len(msgs) != 2 {
		t.Fatalf("stored %d messages, want 2", len(msgs))
	}
	if msgs[1].Content != FallbackReply {
		t.Fatalf("assistant message = %q, want fallback reply", msgs[1].Content)
	}
}

func TestChatService_ToolCallsReturnedAndStored(t *testing.T) {
	conversations := NewConversationService(newTestDB(t))
	log := db.ToolCallLog{{
		Tool:      "list_tasks",
		Arguments: map[string]any{"status": "pending"},
		Result:    map[string]any{"count": float64(0)},
	}}
	chat := NewChatService(conversations, &stubRunner{reply: "You have no pending tasks.", toolCalls: log})

	result, err := chat.ProcessMessage(context.Background(), "user-1", "what's pending?", nil)
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Tool != "list_tasks" {
		t.Fatalf("result tool calls = %+v", result.ToolCalls)
	}

	msgs, _ := conversations.GetMessages("user-1", result.ConversationID, 0)
	if len(msgs[1].ToolCalls) != 1 {
		t.Fatalf("stored assistant message lost its tool calls: %+v", msgs[1])
	}
}
