package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/harborline/storefront/internal/identity"
	"go.uber.org/zap"
)

type sessionPayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) issueSession(c *gin.Context, userID string) {
	token, expiresIn, err := h.sessions.Issue(userID)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.JSON(http.StatusOK, sessionPayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

type googleAuthPayload struct {
	IDToken string `json:"id_token"`
}

func (h *httpHandler) handleGoogleAuth(c *gin.Context) {
	var request googleAuthPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if h.oauth == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "oauth_not_configured"})
		return
	}

	claims, err := h.oauth.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("id token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.identity.Reconcile(c.Request.Context(), identity.Event{
		Origin:     identity.OriginOAuth,
		ExternalID: claims.Subject,
		Email:      claims.Email,
		GivenName:  claims.GivenName,
		FamilyName: claims.FamilyName,
		AvatarURL:  claims.Picture,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.issueSession(c, user.ID)
}

type registerPayload struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	user, err := h.identity.Register(c.Request.Context(), request.Email, request.Password, request.FirstName, request.LastName)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.issueSession(c, user.ID)
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	user, err := h.identity.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.issueSession(c, user.ID)
}

type magicLinkRequestPayload struct {
	Email string `json:"email"`
}

// handleMagicLinkRequest always answers success-shaped so callers cannot
// probe which emails have accounts. Failures are logged, not surfaced.
func (h *httpHandler) handleMagicLinkRequest(c *gin.Context) {
	var request magicLinkRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.magicLink.Issue(c.Request.Context(), request.Email); err != nil {
		h.logger.Warn("magic link issuance failed", zap.Error(err))
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

type magicLinkVerifyPayload struct {
	Token string `json:"token"`
}

func (h *httpHandler) handleMagicLinkVerify(c *gin.Context) {
	var request magicLinkVerifyPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.magicLink.Verify(c.Request.Context(), strings.TrimSpace(request.Token))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.issueSession(c, user.ID)
}
