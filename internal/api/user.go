package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/chatline/internal/identity"
	"github.com/lalith-99/chatline/internal/middleware"
	"go.uber.org/zap"
)

type UserHandler struct {
	resolver *identity.Resolver
	logger   *zap.Logger
}

func NewUserHandler(resolver *identity.Resolver, logger *zap.Logger) *UserHandler {
	return &UserHandler{resolver: resolver, logger: logger}
}

// Sync handles POST /v1/users/sync
//
// Creates the user record for a first-time principal. Answers 201 when a
// record was written and 200 when it already existed.
func (h *UserHandler) Sync(c *gin.Context) {
	user, created, err := h.resolver.Sync(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		writeError(c, h.logger, "sync user", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, user)
}

// GetMe handles GET /v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.GetCaller(c))
}
