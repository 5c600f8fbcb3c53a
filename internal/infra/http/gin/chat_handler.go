package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"direct-messaging/internal/app/chat"
	"direct-messaging/internal/app/dto"
	"direct-messaging/internal/domain/conversation"
	"direct-messaging/internal/domain/directory"
	"direct-messaging/internal/store"
)

// ChatHTTP exposes chat endpoints.
type ChatHTTP interface {
	Directory(c *gin.Context)
	ListConversations(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	DeleteConversation(c *gin.Context)
}

// ChatHandler bridges HTTP with the chat service.
type ChatHandler struct {
	Service *chat.Service
	Logger  *slog.Logger
}

// Directory lists everyone the current actor can message.
func (h ChatHandler) Directory(c *gin.Context) {
	principal, ok := requireActor(c)
	if !ok {
		return
	}
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
		return
	}
	entries, err := h.Service.Contacts(c.Request.Context(), principal.actor())
	if err != nil {
		h.respondChatError(c, err, "list directory", "actor_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, dto.FromEntries(entries))
}

// ListConversations returns the actor's conversations, newest first.
func (h ChatHandler) ListConversations(c *gin.Context) {
	principal, ok := requireActor(c)
	if !ok {
		return
	}
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
		return
	}
	summaries, err := h.Service.Conversations(c.Request.Context(), principal.actor())
	if err != nil {
		h.respondChatError(c, err, "list conversations", "actor_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, dto.FromSummaries(summaries))
}

// ListMessages returns a thread, oldest first, if the actor takes part in it.
func (h ChatHandler) ListMessages(c *gin.Context) {
	principal, ok := requireActor(c)
	if !ok {
		return
	}
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
		return
	}
	key := conversation.Key(strings.TrimSpace(c.Param("key")))
	msgs, err := h.Service.Messages(c.Request.Context(), principal.actor(), key)
	if err != nil {
		h.respondChatError(c, err, "list messages", "conversation_key", key, "actor_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, dto.FromMessages(string(key), msgs))
}

// SendMessage posts a message to the recipient directory entry.
func (h ChatHandler) SendMessage(c *gin.Context) {
	principal, ok := requireActor(c)
	if !ok {
		return
	}
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
		return
	}
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	saved, err := h.Service.Send(c.Request.Context(), principal.actor(), req.RecipientID, req.Text)
	if err != nil {
		h.respondChatError(c, err, "send message", "recipient_id", req.RecipientID, "actor_id", principal.ID)
		return
	}
	c.JSON(http.StatusCreated, dto.FromMessage(saved))
}

// DeleteConversation erases a conversation for both participants. The caller confirms by
// repeating the key in the confirm query parameter.
func (h ChatHandler) DeleteConversation(c *gin.Context) {
	principal, ok := requireActor(c)
	if !ok {
		return
	}
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"})
		return
	}
	key := conversation.Key(strings.TrimSpace(c.Param("key")))
	var confirm chat.Confirmation
	if c.Query("confirm") == string(key) {
		confirm = chat.Confirm(key)
	}
	result, err := h.Service.DeleteConversation(c.Request.Context(), principal.actor(), key, confirm)
	if err != nil {
		h.respondChatError(c, err, "delete conversation", "conversation_key", key, "actor_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, dto.FromDeleteResult(result, nil))
}

func (h ChatHandler) respondChatError(c *gin.Context, err error, action string, attrs ...any) {
	status, body := chatErrorResponse(err)
	if h.Logger != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		h.Logger.Log(c.Request.Context(), level, "chat call failed", append([]any{"action", action, "status", status, "error", err}, attrs...)...)
	}
	c.JSON(status, body)
}

// chatErrorResponse maps chat and store errors to a status and body.
func chatErrorResponse(err error) (int, any) {
	var (
		validation   *chat.ValidationError
		dispatch     *chat.DispatchError
		partial      *chat.PartialDeleteError
		subscription *chat.SubscriptionError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, gin.H{"error": validation.Reason, "field": validation.Field}
	case errors.Is(err, chat.ErrNotParticipant):
		return http.StatusForbidden, gin.H{"error": "not a chat participant"}
	case errors.As(err, &dispatch):
		switch dispatch.Code {
		case store.CodePermissionDenied:
			return http.StatusForbidden, gin.H{"error": dispatch.Message, "code": dispatch.Code}
		case store.CodeUnavailable:
			return http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable", "code": dispatch.Code}
		case store.CodeInvalidArgument:
			return http.StatusBadRequest, gin.H{"error": dispatch.Message, "code": dispatch.Code}
		}
		return http.StatusBadGateway, gin.H{"error": "messaging unavailable", "code": dispatch.Code}
	case errors.As(err, &partial):
		result := chat.DeleteResult{Key: partial.Key, Expected: partial.Expected, Deleted: partial.Deleted}
		return http.StatusMultiStatus, dto.FromDeleteResult(result, partial.Failures)
	case errors.As(err, &subscription):
		return http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"}
	case errors.Is(err, directory.ErrNotFound):
		return http.StatusNotFound, gin.H{"error": "not found"}
	}
	switch store.CodeOf(err) {
	case store.CodeNotFound:
		return http.StatusNotFound, gin.H{"error": "not found"}
	case store.CodeInvalidArgument:
		return http.StatusBadRequest, gin.H{"error": "invalid request"}
	case store.CodePermissionDenied:
		return http.StatusForbidden, gin.H{"error": "forbidden"}
	case store.CodeUnavailable:
		return http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable"}
	}
	return http.StatusInternalServerError, gin.H{"error": "internal error"}
}

var _ ChatHTTP = ChatHandler{}
