package db

import (
	"testing"
)

func TestToolCallLog_ValueEmpty(t *testing.T) {
	var log ToolCallLog
	v, err := log.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if v != nil {
		t.Fatalf("Value() on empty log = %v, want nil", v)
	}
}

func TestToolCallLog_RoundTrip(t *testing.T) {
	log := ToolCallLog{{
		Tool:      "add_task",
		Arguments: map[string]any{"title": "Buy milk"},
		Result:    map[string]any{"status": "created"},
	}}

	v, err := log.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	var decoded ToolCallLog
	if err := decoded.Scan(v); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(decoded) != 1 || decoded[0].Tool != "add_task" {
		t.Fatalf("decoded = %+v", decoded)
	}
	if decoded[0].Arguments["title"] != "Buy milk" {
		t.Fatalf("arguments = %+v", decoded[0].Arguments)
	}
}

func TestToolCallLog_ScanVariants(t *testing.T) {
	var fromString ToolCallLog
	if err := fromString.Scan(`[{"tool":"list_tasks","arguments":{},"result":{"count":0}}]`); err != nil {
		t.Fatalf("Scan(string) error = %v", err)
	}
	if len(fromString) != 1 || fromString[0].Tool != "list_tasks" {
		t.Fatalf("fromString = %+v", fromString)
	}

	var fromNil ToolCallLog
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error = %v", err)
	}
	if fromNil != nil {
		t.Fatalf("Scan(nil) produced %+v", fromNil)
	}
}

func TestMessagesPersistThroughGorm(t *testing.T) {
	gdb, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	conv := &Conversation{OwnerID: "user-1"}
	if err := gdb.Create(conv).Error; err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	msg := &Message{
		ConversationID: conv.ID,
		OwnerID:        "user-1",
		Role:           RoleAssistant,
		Content:        "Done!",
		ToolCalls: ToolCallLog{{
			Tool:      "complete_task",
			Arguments: map[string]any{"task_id": float64(3)},
			Result:    map[string]any{"status": "completed"},
		}},
	}
	if err := gdb.Create(msg).Error; err != nil {
		t.Fatalf("create message: %v", err)
	}

	var got Message
	if err := gdb.First(&got, msg.ID).Error; err != nil {
		t.Fatalf("load message: %v", err)
	}
	if len(got.ToolCalls) != 1 || got.ToolCalls[0].Tool != "complete_task" {
		t.Fatalf("tool calls = %+v", got.ToolCalls)
	}
}
