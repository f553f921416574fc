package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/chat"
	"github.com/lalith-99/chatline/internal/middleware"
	"go.uber.org/zap"
)

// ConversationHandler serves direct conversations, groups, read pointers and
// messages. Every route runs behind Auth and Identity, so the caller is
// always resolved; the service still rejects a nil caller.
type ConversationHandler struct {
	chat   *chat.Service
	logger *zap.Logger
}

func NewConversationHandler(chat *chat.Service, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{chat: chat, logger: logger}
}

type createConversationRequest struct {
	FriendID uuid.UUID `json:"friend_id" binding:"required"`
}

type createGroupRequest struct {
	Name      string      `json:"name" binding:"required,notblank,max=100"`
	MemberIDs []uuid.UUID `json:"member_ids" binding:"required,min=1"`
}

type markReadRequest struct {
	MessageID int64 `json:"message_id"`
}

type conversationIDResponse struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

// List handles GET /v1/conversations
func (h *ConversationHandler) List(c *gin.Context) {
	list, err := h.chat.List(c.Request.Context(), middleware.GetCaller(c))
	if err != nil {
		writeError(c, h.logger, "list conversations", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get handles GET /v1/conversations/:id
//
// A conversation that does not exist (or is being deleted) answers 200 with a
// null body; clients treat it as gone.
func (h *ConversationHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	detail, err := h.chat.Get(c.Request.Context(), middleware.GetCaller(c), id)
	if err != nil {
		writeError(c, h.logger, "get conversation", err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Create handles POST /v1/conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	var req createConversationRequest
	if !bindJSON(c, &req) {
		return
	}

	id, err := h.chat.CreateConversation(c.Request.Context(), middleware.GetCaller(c), req.FriendID)
	if err != nil {
		writeError(c, h.logger, "create conversation", err)
		return
	}
	c.JSON(http.StatusCreated, conversationIDResponse{ConversationID: id})
}

// Delete handles DELETE /v1/conversations/:id and DELETE /v1/groups/:id
func (h *ConversationHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.chat.Delete(c.Request.Context(), middleware.GetCaller(c), id); err != nil {
		writeError(c, h.logger, "delete conversation", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkRead handles POST /v1/conversations/:id/read
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req markReadRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.chat.MarkRead(c.Request.Context(), middleware.GetCaller(c), id, req.MessageID); err != nil {
		writeError(c, h.logger, "mark read", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateGroup handles POST /v1/groups
func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if !bindJSON(c, &req) {
		return
	}

	id, err := h.chat.CreateGroup(c.Request.Context(), middleware.GetCaller(c), req.Name, req.MemberIDs)
	if err != nil {
		writeError(c, h.logger, "create group", err)
		return
	}
	c.JSON(http.StatusCreated, conversationIDResponse{ConversationID: id})
}

// LeaveGroup handles POST /v1/groups/:id/leave
func (h *ConversationHandler) LeaveGroup(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.chat.LeaveGroup(c.Request.Context(), middleware.GetCaller(c), id); err != nil {
		writeError(c, h.logger, "leave group", err)
		return
	}
	c.Status(http.StatusNoContent)
}
