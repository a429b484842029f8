package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/harborline/storefront/internal/auth"
	"github.com/harborline/storefront/internal/commerce"
	"github.com/harborline/storefront/internal/identity"
	"github.com/harborline/storefront/internal/webhook"
	"go.uber.org/zap"
)

const userIDContextKey = "storefront_user_id"

var (
	errMissingIdentityService = errors.New("identity service dependency required")
	errMissingCommerceService = errors.New("commerce service dependency required")
	errMissingMagicLink       = errors.New("magic link dependency required")
	errMissingSessionIssuer   = errors.New("session issuer dependency required")
	errMissingWebhookVerifier = errors.New("webhook verifier dependency required")
	errMissingWebhookProc     = errors.New("webhook processor dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
)

// Dependencies wires the HTTP surface to the core services.
type Dependencies struct {
	Identity       *identity.Service
	MagicLink      *identity.MagicLink
	Commerce       *commerce.Service
	SessionIssuer  *auth.SessionIssuer
	OAuthVerifier  *auth.OAuthVerifier
	WebhookVerify  *webhook.Verifier
	WebhookProcess *webhook.Processor
	Logger         *zap.Logger
}

// NewHTTPHandler assembles the gin router for the storefront API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Identity == nil {
		return nil, errMissingIdentityService
	}
	if deps.Commerce == nil {
		return nil, errMissingCommerceService
	}
	if deps.MagicLink == nil {
		return nil, errMissingMagicLink
	}
	if deps.SessionIssuer == nil {
		return nil, errMissingSessionIssuer
	}
	if deps.WebhookVerify == nil {
		return nil, errMissingWebhookVerifier
	}
	if deps.WebhookProcess == nil {
		return nil, errMissingWebhookProc
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
		identity:  deps.Identity,
		magicLink: deps.MagicLink,
		commerce:  deps.Commerce,
		sessions:  deps.SessionIssuer,
		oauth:     deps.OAuthVerifier,
		verifier:  deps.WebhookVerify,
		processor: deps.WebhookProcess,
		logger:    logger,
	}

	router.POST("/auth/google", handler.handleGoogleAuth)
	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)
	router.POST("/auth/magic-link", handler.handleMagicLinkRequest)
	router.POST("/auth/magic-link/verify", handler.handleMagicLinkVerify)

	router.POST("/webhooks/identity", handler.handleIdentityWebhook)

	router.GET("/products/:productID/rating", handler.handleProductRating)
	router.GET("/products/:productID/reviews", handler.handleProductReviews)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/cart", handler.handleCartRead)
	protected.POST("/cart", handler.handleCartAdd)
	protected.PUT("/cart/:productID", handler.handleCartSetQuantity)
	protected.DELETE("/cart/:productID", handler.handleCartRemove)
	protected.DELETE("/cart", handler.handleCartClear)
	protected.GET("/favorites", handler.handleFavoritesRead)
	protected.PUT("/favorites/:productID", handler.handleFavoriteAdd)
	protected.DELETE("/favorites/:productID", handler.handleFavoriteRemove)
	protected.POST("/favorites/:productID/toggle", handler.handleFavoriteToggle)
	protected.POST("/products/:productID/reviews", handler.handleReviewCreate)
	protected.PUT("/reviews/:reviewID", handler.handleReviewUpdate)
	protected.DELETE("/reviews/:reviewID", handler.handleReviewDelete)
	protected.GET("/profile", handler.handleProfileRead)
	protected.PUT("/profile", handler.handleProfileUpdate)
	protected.GET("/addresses", handler.handleAddressList)
	protected.POST("/addresses", handler.handleAddressCreate)
	protected.PUT("/addresses/:addressID", handler.handleAddressUpdate)
	protected.DELETE("/addresses/:addressID", handler.handleAddressDelete)
	protected.POST("/addresses/:addressID/default", handler.handleAddressSetDefault)
	protected.GET("/wishlists", handler.handleWishlistsRead)

	return router, nil
}

type httpHandler struct {
	identity  *identity.Service
	magicLink *identity.MagicLink
	commerce  *commerce.Service
	sessions  *auth.SessionIssuer
	oauth     *auth.OAuthVerifier
	verifier  *webhook.Verifier
	processor *webhook.Processor
	logger    *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.sessions.Validate(token)
	if err != nil {
		h.logger.Warn("session validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

// respondError translates domain errors into the HTTP taxonomy. Raw storage
// errors never leak; anything unrecognized reads as an upstream failure.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, commerce.ErrInvalidQuantity),
		errors.Is(err, commerce.ErrInvalidReview),
		errors.Is(err, identity.ErrInvalidEvent),
		errors.Is(err, identity.ErrInvalidAddress),
		errors.Is(err, identity.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed"})
	case errors.Is(err, identity.ErrInvalidCredential):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_or_expired_credential"})
	case errors.Is(err, identity.ErrNotAddressOwner),
		errors.Is(err, commerce.ErrNotReviewOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, commerce.ErrProductNotFound),
		errors.Is(err, commerce.ErrReviewNotFound),
		errors.Is(err, identity.ErrAddressNotFound),
		errors.Is(err, identity.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, commerce.ErrDuplicateReview),
		errors.Is(err, identity.ErrEmailInUse):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	default:
		h.logger.Error("request failed upstream", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream_unavailable"})
	}
}

func (h *httpHandler) currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}
