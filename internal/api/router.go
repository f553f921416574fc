package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/chatline/internal/auth"
	"github.com/lalith-99/chatline/internal/chat"
	"github.com/lalith-99/chatline/internal/friends"
	"github.com/lalith-99/chatline/internal/identity"
	"github.com/lalith-99/chatline/internal/middleware"
	"github.com/lalith-99/chatline/internal/realtime"
	"github.com/lalith-99/chatline/internal/repository"
	"go.uber.org/zap"
)

// Deps is everything the router hands to its handlers.
type Deps struct {
	Verifier auth.Verifier
	Resolver *identity.Resolver
	Users    repository.UserRepository
	Chat     *chat.Service
	Friends  *friends.Ledger
	Hub      *realtime.Hub

	// JWTSecret mounts signup and login when set. Leave it empty when tokens
	// come from an external provider.
	JWTSecret string
	TokenTTL  time.Duration

	// Health reports whether the backing store is reachable. Nil means
	// always healthy.
	Health func(ctx context.Context) error

	Logger *zap.Logger
}

// NewRouter builds the HTTP surface.
func NewRouter(d Deps) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(middleware.RequestLogger(d.Logger), gin.Recovery())

	// Public. Load balancers hit health without credentials.
	r.GET("/v1/health", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health(c.Request.Context()); err != nil {
				d.Logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if d.JWTSecret != "" {
		authHandler := NewAuthHandler(d.Users, d.JWTSecret, d.TokenTTL, d.Logger)
		r.POST("/v1/auth/signup", authHandler.Signup)
		r.POST("/v1/auth/login", authHandler.Login)
	}

	userHandler := NewUserHandler(d.Resolver, d.Logger)
	convHandler := NewConversationHandler(d.Chat, d.Logger)
	msgHandler := NewMessageHandler(d.Chat, d.Logger)
	friendHandler := NewFriendHandler(d.Friends, d.Chat, d.Logger)
	wsHandler := NewWSHandler(d.Hub, d.Logger)

	// Authenticated but not necessarily registered: sync is how a principal
	// becomes a user.
	authed := r.Group("/v1")
	authed.Use(middleware.Auth(d.Verifier))
	authed.POST("/users/sync", userHandler.Sync)

	v1 := authed.Group("")
	v1.Use(middleware.Identity(d.Resolver, d.Logger))

	v1.GET("/users/me", userHandler.GetMe)

	v1.GET("/conversations", convHandler.List)
	v1.POST("/conversations", convHandler.Create)
	v1.GET("/conversations/:id", convHandler.Get)
	v1.DELETE("/conversations/:id", convHandler.Delete)
	v1.POST("/conversations/:id/read", convHandler.MarkRead)
	v1.GET("/conversations/:id/messages", msgHandler.List)
	v1.POST("/conversations/:id/messages", msgHandler.Create)

	v1.POST("/groups", convHandler.CreateGroup)
	v1.DELETE("/groups/:id", convHandler.Delete)
	v1.POST("/groups/:id/leave", convHandler.LeaveGroup)

	v1.GET("/friends", friendHandler.List)
	v1.DELETE("/friends/:conversationId", friendHandler.Remove)

	v1.GET("/requests", friendHandler.ListRequests)
	v1.POST("/requests", friendHandler.SendRequest)
	v1.POST("/requests/:id/accept", friendHandler.Accept)
	v1.POST("/requests/:id/deny", friendHandler.Deny)

	v1.GET("/ws", wsHandler.Serve)

	return r
}
