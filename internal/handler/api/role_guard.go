package api

import (
	"github.com/gin-gonic/gin"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/pkg/logger"
	"github.com/alfanzaky/txqueue/pkg/xresponse"
)

// Context keys set by authMiddleware
const (
	ctxOperatorID   = "operator_id"
	ctxOperatorRole = "operator_role"
)

// RoleGuard provides helper functions for role-based access control in handlers
type RoleGuard struct{}

// NewRoleGuard creates a new role guard instance
func NewRoleGuard() *RoleGuard {
	return &RoleGuard{}
}

// GetCurrentOperator extracts the authenticated subject and role from context
func (rg *RoleGuard) GetCurrentOperator(c *gin.Context) (subject, role string, exists bool) {
	subject = c.GetString(ctxOperatorID)
	role = c.GetString(ctxOperatorRole)
	if subject == "" || role == "" {
		return "", "", false
	}
	return subject, role, true
}

// RequireRole allows the request only for one of the given roles
func (rg *RoleGuard) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, role, exists := rg.GetCurrentOperator(c)
		if !exists {
			logger.Warn("Access denied - not authenticated",
				logger.String("ip", c.ClientIP()),
			)
			xresponse.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}

		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}

		logger.Warn("Access denied - insufficient role",
			logger.String("role", role),
			logger.Any("required_roles", roles),
			logger.String("ip", c.ClientIP()),
		)
		xresponse.Forbidden(c, "Insufficient permissions")
		c.Abort()
	}
}

// RequireOperator restricts a route to operators
func (rg *RoleGuard) RequireOperator() gin.HandlerFunc {
	return rg.RequireRole(domain.RoleOperator)
}

// LogAccess logs a mutating action with the caller's identity
func (rg *RoleGuard) LogAccess(c *gin.Context, action string, resource string) {
	subject, role, exists := rg.GetCurrentOperator(c)
	if !exists {
		subject, role = "anonymous", "none"
	}
	logger.Info("Operator action",
		logger.String("operator_id", subject),
		logger.String("role", role),
		logger.String("action", action),
		logger.String("resource", resource),
		logger.String("ip", c.ClientIP()),
	)
}
