package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/alfanzaky/txqueue/internal/domain"
	authpkg "github.com/alfanzaky/txqueue/pkg/auth"
	"github.com/alfanzaky/txqueue/pkg/logger"
	"github.com/alfanzaky/txqueue/pkg/observability"
	"github.com/alfanzaky/txqueue/pkg/xresponse"
)

// Handlers groups every HTTP handler the router serves
type Handlers struct {
	Transactions *TransactionHandler
	Events       *EventHandler
	Auth         *AuthHandler
	Metrics      *observability.MetricsHandler
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, handlers Handlers, authService domain.AuthService, maxRequestSize int64) {
	// Metadata numbers stay json.Number so large integers are never rounded
	binding.EnableDecoderUseNumber = true

	router.Use(
		recoveryMiddleware(),
		corsMiddleware(),
		bodyLimitMiddleware(maxRequestSize),
		observability.ObservabilityMiddleware(),
	)

	if handlers.Metrics != nil {
		router.GET("/metrics", handlers.Metrics.MetricsEndpoint())
		router.GET("/health", handlers.Metrics.HealthEndpoint())
		router.GET("/ready", handlers.Metrics.ReadinessEndpoint())
		router.GET("/live", handlers.Metrics.LivenessEndpoint())
	}

	roleGuard := NewRoleGuard()

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware(authService))
	{
		configureTransactionRoutes(v1, handlers.Transactions, roleGuard)
		configureEventRoutes(v1, handlers.Events)
		configureAuthRoutes(v1, handlers.Auth, roleGuard)
	}

	logger.Info("API routes configured successfully")
}

func configureTransactionRoutes(group *gin.RouterGroup, h *TransactionHandler, roleGuard *RoleGuard) {
	if h == nil {
		return
	}

	group.GET("/stats", h.GetStats)

	routes := group.Group("/transactions")
	{
		routes.GET("", h.ListTransactions)
		routes.GET("/:id", h.GetTransaction)

		operator := routes.Group("")
		operator.Use(roleGuard.RequireOperator())
		{
			operator.POST("", h.CreateTransaction)
			operator.PATCH("/:id/metadata", h.UpdateMetadata)
			operator.POST("/:id/cancel", h.CancelTransaction)
			operator.POST("/:id/replace", h.ReplaceTransaction)
			operator.DELETE("/:id", h.RemoveTransaction)
			operator.DELETE("", h.ClearTransactions)
		}
	}
}

func configureEventRoutes(group *gin.RouterGroup, h *EventHandler) {
	if h == nil {
		return
	}
	group.GET("/events", h.StreamEvents)
}

func configureAuthRoutes(group *gin.RouterGroup, h *AuthHandler, roleGuard *RoleGuard) {
	if h == nil {
		return
	}
	group.POST("/auth/tokens", roleGuard.RequireOperator(), h.IssueToken)
}

// authMiddleware validates JWT token and sets operator context
func authMiddleware(authService domain.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authService == nil {
			xresponse.InternalServerError(c, "Auth service not available")
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			xresponse.Unauthorized(c, "Authorization header with Bearer token required")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			xresponse.Unauthorized(c, "Token is empty")
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, authpkg.ErrExpiredToken):
				xresponse.Unauthorized(c, "Token expired")
			case errors.Is(err, authpkg.ErrInvalidToken):
				xresponse.Unauthorized(c, "Invalid token")
			default:
				xresponse.InternalServerError(c, "Failed to validate token")
			}
			c.Abort()
			return
		}

		subject := strings.TrimSpace(claims.Subject)
		if subject == "" {
			xresponse.Unauthorized(c, "Invalid token payload")
			c.Abort()
			return
		}

		c.Set(ctxOperatorID, subject)
		c.Set(ctxOperatorRole, claims.Role)

		logger.Debug("Operator authenticated via middleware",
			logger.String("operator_id", subject),
			logger.String("role", claims.Role),
			logger.String("token_ttl", time.Until(claims.ExpiresAt).String()),
		)

		c.Next()
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Trace-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// bodyLimitMiddleware caps request bodies; limit <= 0 disables it
func bodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			logger.String("error", fmt.Sprintf("%v", recovered)),
			logger.String("path", c.Request.URL.Path),
			logger.String("method", c.Request.Method),
		)

		xresponse.InternalServerError(c, "Internal server error")
		c.Abort()
	})
}
