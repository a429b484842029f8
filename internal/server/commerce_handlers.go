package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/harborline/storefront/internal/commerce"
)

type cartAddPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *httpHandler) handleCartAdd(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	var request cartAddPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.ProductID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	qty := request.Quantity
	if qty == 0 {
		qty = 1
	}
	if err := h.commerce.AddLine(c.Request.Context(), userID, request.ProductID, qty); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "added"})
}

type cartQuantityPayload struct {
	Quantity int `json:"quantity"`
}

func (h *httpHandler) handleCartSetQuantity(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	var request cartQuantityPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.commerce.SetQuantity(c.Request.Context(), userID, c.Param("productID"), request.Quantity); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *httpHandler) handleCartRemove(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if err := h.commerce.RemoveLine(c.Request.Context(), userID, c.Param("productID")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (h *httpHandler) handleCartClear(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if err := h.commerce.Clear(c.Request.Context(), userID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func (h *httpHandler) handleCartRead(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	view, err := h.commerce.Cart(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *httpHandler) handleFavoriteAdd(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if err := h.commerce.AddFavorite(c.Request.Context(), userID, c.Param("productID")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "favorited"})
}

func (h *httpHandler) handleFavoriteRemove(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if err := h.commerce.RemoveFavorite(c.Request.Context(), userID, c.Param("productID")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (h *httpHandler) handleFavoriteToggle(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	favorited, err := h.commerce.ToggleFavorite(c.Request.Context(), userID, c.Param("productID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorited": favorited})
}

func (h *httpHandler) handleFavoritesRead(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	products, err := h.commerce.Favorites(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

type reviewPayload struct {
	Rating   int    `json:"rating"`
	Title    string `json:"title"`
	Comment  string `json:"comment"`
	IsPublic *bool  `json:"is_public"`
}

func (p reviewPayload) input() commerce.ReviewInput {
	isPublic := true
	if p.IsPublic != nil {
		isPublic = *p.IsPublic
	}
	return commerce.ReviewInput{
		Rating:   p.Rating,
		Title:    p.Title,
		Comment:  p.Comment,
		IsPublic: isPublic,
	}
}

func (h *httpHandler) handleReviewCreate(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	var request reviewPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	review, err := h.commerce.CreateReview(c.Request.Context(), userID, c.Param("productID"), request.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h *httpHandler) handleReviewUpdate(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	reviewID, err := strconv.ParseUint(c.Param("reviewID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	var request reviewPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	review, err := h.commerce.UpdateReview(c.Request.Context(), userID, uint(reviewID), request.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *httpHandler) handleReviewDelete(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	reviewID, err := strconv.ParseUint(c.Param("reviewID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.commerce.DeleteReview(c.Request.Context(), userID, uint(reviewID)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *httpHandler) handleProductRating(c *gin.Context) {
	summary, err := h.commerce.ProductRating(c.Request.Context(), c.Param("productID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *httpHandler) handleProductReviews(c *gin.Context) {
	reviews, err := h.commerce.PublicReviews(c.Request.Context(), c.Param("productID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

func (h *httpHandler) handleWishlistsRead(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	wishlists, err := h.commerce.Wishlists(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wishlists": wishlists})
}
