// Database model for chat conversations
package db

import "time"

// Conversation represents one chat session. UpdatedAt is bumped whenever a
// message is appended, which makes it the sort key for "most recent
// conversation".
type Conversation struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	OwnerID   string    `json:"owner_id" gorm:"index:idx_conversations_owner;size:64;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index:idx_conversations_owner_updated"`
}

func (Conversation) TableName() string {
	return "conversations"
}
