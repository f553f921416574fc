package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/chatline/internal/chat"
	"github.com/lalith-99/chatline/internal/friends"
	"github.com/lalith-99/chatline/internal/middleware"
	"go.uber.org/zap"
)

// FriendHandler serves the friends list and friend requests.
type FriendHandler struct {
	ledger *friends.Ledger
	chat   *chat.Service
	logger *zap.Logger
}

func NewFriendHandler(ledger *friends.Ledger, chat *chat.Service, logger *zap.Logger) *FriendHandler {
	return &FriendHandler{ledger: ledger, chat: chat, logger: logger}
}

type sendRequestRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// List handles GET /v1/friends
func (h *FriendHandler) List(c *gin.Context) {
	list, err := h.ledger.ListFriends(c.Request.Context(), middleware.GetCaller(c))
	if err != nil {
		writeError(c, h.logger, "list friends", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Remove handles DELETE /v1/friends/:conversationId
func (h *FriendHandler) Remove(c *gin.Context) {
	id, ok := pathID(c, "conversationId")
	if !ok {
		return
	}

	if err := h.chat.RemoveFriend(c.Request.Context(), middleware.GetCaller(c), id); err != nil {
		writeError(c, h.logger, "remove friend", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListRequests handles GET /v1/requests
func (h *FriendHandler) ListRequests(c *gin.Context) {
	list, err := h.ledger.ListRequests(c.Request.Context(), middleware.GetCaller(c))
	if err != nil {
		writeError(c, h.logger, "list requests", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// SendRequest handles POST /v1/requests
func (h *FriendHandler) SendRequest(c *gin.Context) {
	var req sendRequestRequest
	if !bindJSON(c, &req) {
		return
	}

	fr, err := h.ledger.SendRequest(c.Request.Context(), middleware.GetCaller(c), req.Email)
	if err != nil {
		writeError(c, h.logger, "send request", err)
		return
	}
	c.JSON(http.StatusCreated, fr)
}

// Accept handles POST /v1/requests/:id/accept
func (h *FriendHandler) Accept(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	convID, err := h.ledger.Accept(c.Request.Context(), middleware.GetCaller(c), id)
	if err != nil {
		writeError(c, h.logger, "accept request", err)
		return
	}
	c.JSON(http.StatusOK, conversationIDResponse{ConversationID: convID})
}

// Deny handles POST /v1/requests/:id/deny
func (h *FriendHandler) Deny(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.ledger.Deny(c.Request.Context(), middleware.GetCaller(c), id); err != nil {
		writeError(c, h.logger, "deny request", err)
		return
	}
	c.Status(http.StatusNoContent)
}
