package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/chatline/internal/chat"
	"github.com/lalith-99/chatline/internal/middleware"
	"go.uber.org/zap"
)

type MessageHandler struct {
	chat   *chat.Service
	logger *zap.Logger
}

func NewMessageHandler(chat *chat.Service, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{chat: chat, logger: logger}
}

type createMessageRequest struct {
	Type    string   `json:"type" binding:"omitempty,oneof=text"`
	Content []string `json:"content" binding:"required,min=1,max=20,dive,max=4000"`
}

// Create handles POST /v1/conversations/:id/messages
func (h *MessageHandler) Create(c *gin.Context) {
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req createMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), middleware.GetCaller(c), convID, req.Type, req.Content)
	if err != nil {
		writeError(c, h.logger, "send message", err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// List handles GET /v1/conversations/:id/messages?before=123&limit=50
//
// Cursor-based pagination:
//   - "before" = message ID. "Give me messages older than this." 0 = start from latest.
//   - "limit"  = how many to return. The service defaults and caps it.
func (h *MessageHandler) List(c *gin.Context) {
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var (
		before int64
		limit  int
		err    error
	)
	if b := c.Query("before"); b != "" {
		before, err = strconv.ParseInt(b, 10, 64)
		if err != nil || before < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'before' parameter"})
			return
		}
	}
	if l := c.Query("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
	}

	messages, err := h.chat.ListMessages(c.Request.Context(), middleware.GetCaller(c), convID, before, limit)
	if err != nil {
		writeError(c, h.logger, "list messages", err)
		return
	}
	c.JSON(http.StatusOK, messages)
}
