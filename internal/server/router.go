package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/postinlab/postin-api/internal/comments"
	"github.com/postinlab/postin-api/internal/communities"
	"github.com/postinlab/postin-api/internal/notify"
	"github.com/postinlab/postin-api/internal/posts"
	"github.com/postinlab/postin-api/internal/users"
)

const userIDContextKey = "postin_user_id"

var (
	errMissingTokenManager = errors.New("token manager dependency required")
	errMissingUserService  = errors.New("user service dependency required")
	errMissingPostService  = errors.New("post service dependency required")
	errMissingPipeline     = errors.New("comment pipeline dependency required")
	errInvalidAuth         = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates bearer tokens.
type TokenManager interface {
	IssueToken(userID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the collaborators into the HTTP layer. Broker is
// optional; without it the realtime stream endpoint is not registered.
type Dependencies struct {
	Tokens        TokenManager
	Users         *users.Service
	Posts         *posts.Service
	Comments      *comments.Pipeline
	Communities   *communities.Service
	Notifications *notify.Service
	Broker        *notify.Broker
	Logger        *zap.Logger
}

// NewHTTPHandler builds the gin router for the API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Users == nil {
		return nil, errMissingUserService
	}
	if deps.Posts == nil {
		return nil, errMissingPostService
	}
	if deps.Comments == nil {
		return nil, errMissingPipeline
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:        deps.Tokens,
		users:         deps.Users,
		posts:         deps.Posts,
		comments:      deps.Comments,
		communities:   deps.Communities,
		notifications: deps.Notifications,
		broker:        deps.Broker,
		logger:        logger,
	}

	api := router.Group("/api")
	api.POST("/register", handler.handleRegister)
	api.POST("/login", handler.handleLogin)

	protected := api.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/posts", handler.handleListPosts)
	protected.POST("/posts", handler.handleCreatePost)
	protected.GET("/posts/:id", handler.handleGetPost)
	protected.DELETE("/posts/:id", handler.handleDeletePost)
	protected.POST("/posts/:id/like", handler.handleToggleLike)
	protected.POST("/posts/:id/comments", handler.handleCreateComment)
	protected.DELETE("/posts/:id/comments/:commentId", handler.handleDeleteComment)
	protected.GET("/profile", handler.handleGetProfile)
	protected.PUT("/profile", handler.handleUpdateProfile)

	if deps.Communities != nil {
		protected.GET("/communities", handler.handleListCommunities)
		protected.POST("/communities", handler.handleCreateCommunity)
		protected.GET("/communities/:id", handler.handleGetCommunity)
		protected.POST("/communities/:id/join", handler.handleJoinCommunity)
		protected.POST("/communities/:id/leave", handler.handleLeaveCommunity)
	}
	if deps.Notifications != nil {
		protected.GET("/notifications", handler.handleListNotifications)
		protected.POST("/notifications/:id/read", handler.handleMarkNotificationRead)
		protected.DELETE("/notifications/:id", handler.handleDeleteNotification)
		protected.DELETE("/notifications", handler.handleDeleteAllNotifications)
	}
	if deps.Broker != nil {
		protected.GET("/realtime/stream", handler.handleRealtimeStream)
	}

	return router, nil
}

type httpHandler struct {
	tokens        TokenManager
	users         *users.Service
	posts         *posts.Service
	comments      *comments.Pipeline
	communities   *communities.Service
	notifications *notify.Service
	broker        *notify.Broker
	logger        *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuth.Error()})
		return
	}
	userID, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}

func (h *httpHandler) currentUserID(c *gin.Context) string {
	return c.GetString(userIDContextKey)
}

// bearerToken extracts the token from the Authorization header, falling back
// to the access_token query parameter used by EventSource clients.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(c.Query("access_token"))
}
