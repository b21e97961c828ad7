// Conversation store - owner-scoped conversations and their transcripts
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskpilot/taskpilot/pkg/db"
	"github.com/taskpilot/taskpilot/pkg/utils"
	"gorm.io/gorm"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationService manages conversations and their ordered messages.
// Every read and write is constrained to the owner; a foreign conversation
// id behaves exactly like a missing one.
type ConversationService struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(gdb *gorm.DB) *ConversationService {
	return &ConversationService{
		db:     gdb,
		logger: utils.GetLogger(),
	}
}

// CreateConversation creates an empty conversation for ownerID. The caller
// is expected to append a message right away; the zero-message state is
// only momentary.
func (s *ConversationService) CreateConversation(ownerID string) (*db.Conversation, error) {
	conv := &db.Conversation{OwnerID: ownerID}
	if err := s.db.Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns the conversation only if owned by ownerID.
func (s *ConversationService) GetConversation(ownerID string, conversationID uint) (*db.Conversation, error) {
	var conv db.Conversation
	err := s.db.Where("id = ? AND owner_id = ?", conversationID, ownerID).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// GetOrCreateConversation resolves an optional conversation id. An id that
// is absent, unknown, or owned by someone else silently falls back to
// creating a fresh conversation; it never errors on a bad id.
func (s *ConversationService) GetOrCreateConversation(ownerID string, conversationID *uint) (*db.Conversation, error) {
	if conversationID != nil {
		conv, err := s.GetConversation(ownerID, *conversationID)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, ErrConversationNotFound) {
			return nil, err
		}
	}
	return s.CreateConversation(ownerID)
}

// ListConversations returns the owner's conversations, most recent first.
func (s *ConversationService) ListConversations(ownerID string, limit int) ([]db.Conversation, error) {
	query := s.db.Where("owner_id = ?", ownerID).Order("updated_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var conversations []db.Conversation
	if err := query.Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

// MostRecentConversation returns the owner's last-touched conversation, or
// ErrConversationNotFound if they have none. Chat never resumes this
// implicitly; it exists for clients that want an explicit resume.
func (s *ConversationService) MostRecentConversation(ownerID string) (*db.Conversation, error) {
	var conv db.Conversation
	err := s.db.Where("owner_id = ?", ownerID).Order("updated_at DESC, id DESC").First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// AddMessage appends a message and bumps the conversation's updated_at in
// the same transaction. Messages are immutable once written.
func (s *ConversationService) AddMessage(ownerID string, conversationID uint, role, content string, toolCalls db.ToolCallLog) (*db.Message, error) {
	if _, err := s.GetConversation(ownerID, conversationID); err != nil {
		return nil, err
	}

	msg := &db.Message{
		ConversationID: conversationID,
		OwnerID:        ownerID,
		Role:           role,
		Content:        content,
		ToolCalls:      toolCalls,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&db.Conversation{}).
			Where("id = ? AND owner_id = ?", conversationID, ownerID).
			Update("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}
	return msg, nil
}

// GetMessages returns up to limit messages of the conversation in
// chronological order (created_at ASC, id ASC as insertion-order tiebreak).
// Ownership is verified first; a foreign conversation reports
// ErrConversationNotFound rather than leaking its transcript.
func (s *ConversationService) GetMessages(ownerID string, conversationID uint, limit int) ([]db.Message, error) {
	if _, err := s.GetConversation(ownerID, conversationID); err != nil {
		return nil, err
	}

	query := s.db.Where("conversation_id = ?", conversationID).Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var messages []db.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return messages, nil
}

// RecentMessages returns the most recent limit messages in chronological
// order. This is the history window handed to the agent runner.
func (s *ConversationService) RecentMessages(ownerID string, conversationID uint, limit int) ([]db.Message, error) {
	if _, err := s.GetConversation(ownerID, conversationID); err != nil {
		return nil, err
	}

	var messages []db.Message
	query := s.db.Where("conversation_id = ?", conversationID).Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("get recent messages: %w", err)
	}
	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
