package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/pkg/logger"
	"github.com/alfanzaky/txqueue/pkg/xresponse"
)

// AuthHandler lets operators mint tokens for other operators and viewers
type AuthHandler struct {
	authService domain.AuthService
	roleGuard   *RoleGuard
}

func NewAuthHandler(authService domain.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService, roleGuard: NewRoleGuard()}
}

type issueTokenRequest struct {
	Subject string `json:"subject" binding:"required"`
	Role    string `json:"role"`
}

type issueTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Subject     string `json:"subject"`
	Role        string `json:"role"`
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xresponse.BadRequest(c, "Invalid payload: "+err.Error())
		return
	}

	subject := strings.TrimSpace(req.Subject)
	role := domain.NormalizeRole(req.Role)

	token, err := h.authService.GenerateAccessToken(subject, role)
	if err != nil {
		logger.Error("Failed to issue access token",
			logger.String("subject", subject),
			logger.ErrorField(err),
		)
		xresponse.InternalServerError(c, "Failed to issue token")
		return
	}

	h.roleGuard.LogAccess(c, "issue_token", subject)

	xresponse.SuccessWithCode(c, http.StatusCreated, "Token issued", issueTokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		Subject:     subject,
		Role:        role,
	})
}
