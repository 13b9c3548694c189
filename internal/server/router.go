package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/jobtracker/internal/accounts"
	"github.com/MarcoPoloResearchLab/jobtracker/internal/applications"
	"github.com/MarcoPoloResearchLab/jobtracker/internal/auth"
	"github.com/MarcoPoloResearchLab/jobtracker/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	accountIDContextKey = "jobtracker_account_id"
	viewIDHeader        = "X-View-ID"
)

var (
	errMissingTokenManager        = errors.New("token manager dependency required")
	errMissingAccountsService     = errors.New("accounts service dependency required")
	errMissingApplicationsService = errors.New("applications service dependency required")
	errInvalidAuthorization       = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates account session tokens.
type TokenManager interface {
	IssueToken(ctx context.Context, accountID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// AccountDirectory confirms that a token subject still has an account.
type AccountDirectory interface {
	Exists(ctx context.Context, accountID string) (bool, error)
}

// Dependencies wires the HTTP surface to the services behind it.
type Dependencies struct {
	Tokens         TokenManager
	Accounts       *accounts.Service
	Applications   *applications.Service
	Metrics        *metrics.Metrics
	Queries        *QueryTracker
	AuthLimiter    *RateLimiter
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin engine serving the API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Accounts == nil {
		return nil, errMissingAccountsService
	}
	if deps.Applications == nil {
		return nil, errMissingApplicationsService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	queries := deps.Queries
	if queries == nil {
		var onSupersede func()
		if deps.Metrics != nil {
			onSupersede = deps.Metrics.RecordSuperseded
		}
		queries = NewQueryTracker(onSupersede)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		tokens:       deps.Tokens,
		directory:    deps.Accounts,
		accounts:     deps.Accounts,
		applications: deps.Applications,
		queries:      queries,
		logger:       logger,
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "api working"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api")

	users := api.Group("/users")
	limited := func(final gin.HandlerFunc) []gin.HandlerFunc {
		if deps.AuthLimiter == nil {
			return []gin.HandlerFunc{final}
		}
		return []gin.HandlerFunc{deps.AuthLimiter.Middleware(), final}
	}
	users.POST("/signup", limited(handler.handleSignUp)...)
	users.POST("/signin", limited(handler.handleSignIn)...)

	account := users.Group("/", handler.authorizeRequest)
	account.GET("renew-token", handler.handleRenewToken)
	account.GET("account", handler.handleGetAccount)
	account.PATCH("account/name", handler.handleUpdateName)
	account.PATCH("account/email", handler.handleUpdateEmail)
	account.PATCH("account/password", handler.handleUpdatePassword)
	account.PATCH("account/suggested-emails", handler.handleUpdateSuggestedEmails)
	account.DELETE("account", handler.handleDeleteAccount)

	tracked := api.Group("/applications", handler.authorizeRequest)
	tracked.GET("", handler.superseding, handler.handleListApplications)
	tracked.POST("", handler.handleCreateApplication)
	tracked.DELETE("", handler.handleDeleteAllApplications)
	tracked.GET("/:id", handler.handleGetApplication)
	tracked.PATCH("/:id", handler.handleUpdateApplication)
	tracked.DELETE("/:id", handler.handleDeleteApplication)
	tracked.POST("/:id/status", handler.handleAppendStatus)
	tracked.PATCH("/:id/status/:statusId", handler.handleEditStatus)
	tracked.DELETE("/:id/status/:statusId", handler.handleDeleteStatus)

	api.GET("/statistics", handler.authorizeRequest, handler.superseding, handler.handleStatistics)

	return router, nil
}

type httpHandler struct {
	tokens       TokenManager
	directory    AccountDirectory
	accounts     *accounts.Service
	applications *applications.Service
	queries      *QueryTracker
	logger       *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token, err := auth.BearerToken(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: errorCodeUnauthorized, Message: errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: errorCodeUnauthorized, Message: "invalid or expired token"})
		return
	}
	exists, err := h.directory.Exists(c.Request.Context(), subject)
	if err != nil {
		h.respondError(c, err)
		c.Abort()
		return
	}
	if !exists {
		h.logger.Info("token subject has no account", zap.String("account_id", subject))
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: errorCodeUnauthorized, Message: "account no longer exists"})
		return
	}
	c.Set(accountIDContextKey, subject)
	c.Next()
}

// superseding gives read queries a per-view cancellation scope.
func (h *httpHandler) superseding(c *gin.Context) {
	key := QueryKey{
		AccountID: c.GetString(accountIDContextKey),
		Route:     c.FullPath(),
		ViewID:    strings.TrimSpace(c.GetHeader(viewIDHeader)),
	}
	ctx, release := h.queries.Begin(c.Request.Context(), key)
	defer release()
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", viewIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	origins := make([]string, 0, len(allowedOrigins))
	wildcard := len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		if origin == "*" {
			wildcard = true
			break
		}
		origins = append(origins, origin)
	}
	if wildcard {
		config.AllowOriginFunc = func(string) bool { return true }
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if accountID := c.GetString(accountIDContextKey); accountID != "" {
			fields = append(fields, zap.String("account_id", accountID))
		}
		logger.Info("http request", fields...)
	}
}

func accountID(c *gin.Context) string {
	return c.GetString(accountIDContextKey)
}
