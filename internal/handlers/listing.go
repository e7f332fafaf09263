package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"estatehub/api/internal/ids"
	"estatehub/api/internal/models"
	"estatehub/api/internal/repository"
	"estatehub/api/internal/service"
)

type createListingRequest struct {
	Title string `json:"title" binding:"required"`
}

// CreateListing writes the bare listing row an editing session attaches
// images to. A create-mode attach that fails deletes this row again.
func (h HandlerSet) CreateListing(c *gin.Context) {
	owner, ok := principalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
		return
	}

	listing := models.Listing{
		ID:      ids.New(),
		OwnerID: owner,
		Title:   req.Title,
	}
	if err := h.listings.Create(c.Request.Context(), listing); err != nil {
		respondError(c, h.log, owner, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"listingId": listing.ID})
}

type attachImagesRequest struct {
	SessionID string   `json:"sessionId" binding:"required"`
	Keys      []string `json:"keys"`
	Mode      string   `json:"mode" binding:"required,oneof=create update"`
}

func (h HandlerSet) AttachImages(c *gin.Context) {
	owner, ok := principalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	listingID := c.Param("id")

	var req attachImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
		return
	}

	listing, err := h.listings.GetByID(c.Request.Context(), listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "listing_not_found"})
			return
		}
		respondError(c, h.log, owner, err)
		return
	}
	if listing.OwnerID != owner {
		respondError(c, h.log, owner, &service.OwnershipError{Reason: "listing owned by another principal"})
		return
	}

	err = h.attachService.AttachImages(c.Request.Context(), service.AttachInput{
		OwnerID:     owner,
		SessionID:   req.SessionID,
		ListingID:   listingID,
		OrderedKeys: req.Keys,
		Mode:        service.AttachMode(req.Mode),
	})
	if err != nil {
		respondError(c, h.log, owner, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listingId": listingID,
		"keys":      req.Keys,
	})
}
