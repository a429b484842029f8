package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harborline/storefront/internal/identity"
)

type profileView struct {
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	AvatarURL        string     `json:"avatar_url"`
	Phone            string     `json:"phone"`
	DateOfBirth      *time.Time `json:"date_of_birth,omitempty"`
	Bio              string     `json:"bio"`
	NewsletterOptIn  bool       `json:"newsletter_opt_in"`
	PromotionalOptIn bool       `json:"promotional_opt_in"`
}

func (h *httpHandler) handleProfileRead(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	user, err := h.identity.UserByID(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	profile, err := h.identity.ProfileFor(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileView{
		Email:            user.Email,
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		AvatarURL:        user.AvatarURL,
		Phone:            profile.Phone,
		DateOfBirth:      profile.DateOfBirth,
		Bio:              profile.Bio,
		NewsletterOptIn:  profile.NewsletterOptIn,
		PromotionalOptIn: profile.PromotionalOptIn,
	})
}

type profileUpdatePayload struct {
	Phone            *string    `json:"phone"`
	DateOfBirth      *time.Time `json:"date_of_birth"`
	Bio              *string    `json:"bio"`
	NewsletterOptIn  *bool      `json:"newsletter_opt_in"`
	PromotionalOptIn *bool      `json:"promotional_opt_in"`
}

func (h *httpHandler) handleProfileUpdate(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	var request profileUpdatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	profile, err := h.identity.UpdateProfile(c.Request.Context(), userID, identity.ProfileUpdate{
		Phone:            request.Phone,
		DateOfBirth:      request.DateOfBirth,
		Bio:              request.Bio,
		NewsletterOptIn:  request.NewsletterOptIn,
		PromotionalOptIn: request.PromotionalOptIn,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

type addressPayload struct {
	Type       string `json:"type"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"is_default"`
}

func (p addressPayload) input() identity.AddressInput {
	return identity.AddressInput{
		Type:       identity.AddressType(p.Type),
		Line1:      p.Line1,
		Line2:      p.Line2,
		City:       p.City,
		Region:     p.Region,
		PostalCode: p.PostalCode,
		Country:    p.Country,
		IsDefault:  p.IsDefault,
	}
}

func (h *httpHandler) handleAddressList(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	addresses, err := h.identity.Addresses(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addresses})
}

func (h *httpHandler) handleAddressCreate(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	var request addressPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	address, err := h.identity.CreateAddress(c.Request.Context(), userID, request.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, address)
}

func (h *httpHandler) handleAddressUpdate(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	var request addressPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	address, err := h.identity.UpdateAddress(c.Request.Context(), userID, c.Param("addressID"), request.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, address)
}

func (h *httpHandler) handleAddressDelete(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if err := h.identity.DeleteAddress(c.Request.Context(), userID, c.Param("addressID")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *httpHandler) handleAddressSetDefault(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if err := h.identity.SetDefaultAddress(c.Request.Context(), userID, c.Param("addressID")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "default_set"})
}
