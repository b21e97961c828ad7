package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskpilot/taskpilot/pkg/db"
	"github.com/taskpilot/taskpilot/pkg/service"
)

// ChatHandler serves the conversational endpoints. The chat service may be
// nil when the model configuration is absent or broken at startup; the chat
// endpoint then degrades to 503 while the read-only conversation endpoints
// keep working.
type ChatHandler struct {
	chat          *service.ChatService
	conversations *service.ConversationService
}

func NewChatHandler(chat *service.ChatService, conversations *service.ConversationService) *ChatHandler {
	return &ChatHandler{chat: chat, conversations: conversations}
}

// RegisterRoutes mounts the chat endpoints under the authenticated group.
func (h *ChatHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:user_id/chat", h.Chat)
	rg.GET("/:user_id/conversations", h.ListConversations)
	rg.GET("/:user_id/conversations/:id/messages", h.GetMessages)
}

// maxChatMessageLen bounds one inbound chat message.
const maxChatMessageLen = 2000

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID *uint  `json:"conversation_id"`
}

type conversationResponse struct {
	ID        uint   `json:"id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type messageResponse struct {
	ID        uint           `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls db.ToolCallLog `json:"tool_calls,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// Chat runs one turn of the conversation pipeline. Model failures never
// reach this layer as errors; they come back as a stored fallback reply
// with a 200.
func (h *ChatHandler) Chat(c *gin.Context) {
	if h.chat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "unavailable",
			"message": "chat is not configured on this server",
		})
		return
	}

	ownerID := c.Param("user_id")
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if len([]rune(req.Message)) > maxChatMessageLen {
		badRequest(c, "message exceeds 2000 characters")
		return
	}

	result, err := h.chat.ProcessMessage(c.Request.Context(), ownerID, req.Message, req.ConversationID)
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			badRequest(c, err.Error())
			return
		}
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListConversations returns the owner's conversations, most recently
// touched first. limit defaults to 10, capped at 50.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	ownerID := c.Param("user_id")
	limit := queryInt(c, "limit", 10, 50)

	conversations, err := h.conversations.ListConversations(ownerID, limit)
	if err != nil {
		internalError(c, err)
		return
	}

	out := make([]conversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, conversationResponse{
			ID:        conv.ID,
			CreatedAt: conv.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt: conv.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out, "count": len(out)})
}

// GetMessages returns a conversation transcript in chronological order.
// limit defaults to 50, capped at 100. A foreign conversation id is
// indistinguishable from a missing one.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	ownerID := c.Param("user_id")
	conversationID, ok := pathID(c, "invalid conversation id")
	if !ok {
		return
	}
	limit := queryInt(c, "limit", 50, 100)

	messages, err := h.conversations.GetMessages(ownerID, conversationID, limit)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			notFound(c, "conversation not found")
			return
		}
		internalError(c, err)
		return
	}

	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageResponse{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			ToolCalls: m.ToolCalls,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out, "count": len(out)})
}
