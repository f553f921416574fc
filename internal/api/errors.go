package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/chatline/internal/apperr"
	"go.uber.org/zap"
)

// statusFor maps service errors to HTTP statuses. Anything unlisted is a 500.
var statusFor = []struct {
	err    error
	status int
}{
	{apperr.ErrUnauthorized, http.StatusUnauthorized},
	{apperr.ErrUserNotFound, http.StatusNotFound},
	{apperr.ErrForbidden, http.StatusForbidden},
	{apperr.ErrNotAMember, http.StatusForbidden},
	{apperr.ErrNotFound, http.StatusNotFound},
	{apperr.ErrEmptyConversation, http.StatusConflict},
	{apperr.ErrDuplicateConversation, http.StatusConflict},
	{apperr.ErrAlreadyFriends, http.StatusConflict},
	{apperr.ErrRequestExists, http.StatusConflict},
	{apperr.ErrInvalidInput, http.StatusBadRequest},
	{apperr.ErrNotGroup, http.StatusBadRequest},
	{apperr.ErrNotDirect, http.StatusBadRequest},
}

// writeError renders a service error. Known kinds carry their message to the
// client; everything else is logged and answered with a generic 500.
func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	for _, m := range statusFor {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": err.Error()})
			return
		}
	}

	logger.Error(op+" failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
}

// pathID parses a uuid path parameter, answering 400 when it is malformed.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
