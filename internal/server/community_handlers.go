package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/postinlab/postin-api/internal/communities"
)

type createCommunityPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IconURL     string `json:"icon_url"`
	IsPublic    *bool  `json:"is_public"`
}

func (h *httpHandler) handleCreateCommunity(c *gin.Context) {
	var request createCommunityPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	isPublic := true
	if request.IsPublic != nil {
		isPublic = *request.IsPublic
	}
	community, err := h.communities.Create(c.Request.Context(), communities.CreateRequest{
		Name:        request.Name,
		Description: request.Description,
		IconURL:     request.IconURL,
		CreatorID:   h.currentUserID(c),
		IsPublic:    isPublic,
	})
	if errors.Is(err, communities.ErrInvalidCommunity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name_required"})
		return
	}
	if errors.Is(err, communities.ErrDuplicateName) {
		c.JSON(http.StatusConflict, gin.H{"error": "name_taken"})
		return
	}
	if err != nil {
		h.logger.Error("community creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "community_creation_failed"})
		return
	}
	c.JSON(http.StatusCreated, community)
}

func (h *httpHandler) handleListCommunities(c *gin.Context) {
	summaries, err := h.communities.List(c.Request.Context())
	if err != nil {
		h.logger.Error("community listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "community_listing_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"communities": summaries})
}

func (h *httpHandler) handleGetCommunity(c *gin.Context) {
	community, err := h.communities.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, communities.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "community_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("community lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "community_lookup_failed"})
		return
	}
	c.JSON(http.StatusOK, community)
}

func (h *httpHandler) handleJoinCommunity(c *gin.Context) {
	err := h.communities.Join(c.Request.Context(), c.Param("id"), h.currentUserID(c))
	if errors.Is(err, communities.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "community_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("community join failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "community_join_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Joined"})
}

func (h *httpHandler) handleLeaveCommunity(c *gin.Context) {
	if err := h.communities.Leave(c.Request.Context(), c.Param("id"), h.currentUserID(c)); err != nil {
		h.logger.Error("community leave failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "community_leave_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left"})
}
