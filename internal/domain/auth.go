package domain

import (
	"strings"
	"time"
)

// Operator roles carried in access tokens
const (
	RoleOperator = "OPERATOR"
	RoleViewer   = "VIEWER"
)

// AuthClaims represents validated JWT claims
type AuthClaims struct {
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AuthService issues and validates operator access tokens
type AuthService interface {
	GenerateAccessToken(subject, role string) (string, error)
	ValidateToken(token string) (*AuthClaims, error)
}

// NormalizeRole maps a claim value to a known role; unknown roles become viewer
func NormalizeRole(role string) string {
	switch strings.ToUpper(strings.TrimSpace(role)) {
	case RoleOperator:
		return RoleOperator
	default:
		return RoleViewer
	}
}
