// Database model for chat messages
package db

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation. Rows are immutable once created
// and ordered by (created_at ASC, id ASC) within a conversation; the
// autoincrement id breaks ties for equal timestamps in insertion order.
// OwnerID is denormalized from the conversation so isolation checks never
// need a join.
type Message struct {
	ID             uint        `json:"id" gorm:"primaryKey"`
	ConversationID uint        `json:"conversation_id" gorm:"index:idx_messages_conversation;not null"`
	OwnerID        string      `json:"owner_id" gorm:"index:idx_messages_owner;size:64;not null"`
	Role           string      `json:"role" gorm:"size:20;not null"`
	Content        string      `json:"content" gorm:"type:text;not null"`
	ToolCalls      ToolCallLog `json:"tool_calls,omitempty" gorm:"type:text"`
	CreatedAt      time.Time   `json:"created_at" gorm:"index:idx_messages_conversation_created"`
}

func (Message) TableName() string {
	return "messages"
}

// ToolCallRecord is one entry of the tool-call log: the tool the agent
// invoked, the arguments it passed, and the structured result the tool
// returned. Results carrying an "error" key are domain errors, not
// failures.
type ToolCallRecord struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Result    map[string]any `json:"result"`
}

// ToolCallLog is the ordered sequence of tool invocations made during one
// agent run, stored as a JSON column on the assistant message. Empty logs
// are stored as NULL so user messages and tool-less replies carry nothing.
type ToolCallLog []ToolCallRecord

// Value implements driver.Valuer for database storage
func (t ToolCallLog) Value() (driver.Value, error) {
	if len(t) == 0 {
		return nil, nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner for database retrieval
func (t *ToolCallLog) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion to []byte or string failed")
	}
	return json.Unmarshal(bytes, t)
}
