package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/postinlab/postin-api/internal/notify"
)

func (h *httpHandler) handleListNotifications(c *gin.Context) {
	records, err := h.notifications.List(c.Request.Context(), h.currentUserID(c))
	if err != nil {
		h.logger.Error("notification listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notification_listing_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": records})
}

func (h *httpHandler) handleMarkNotificationRead(c *gin.Context) {
	err := h.notifications.MarkRead(c.Request.Context(), h.currentUserID(c), c.Param("id"))
	if errors.Is(err, notify.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("notification read update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notification_update_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Read"})
}

func (h *httpHandler) handleDeleteNotification(c *gin.Context) {
	err := h.notifications.Delete(c.Request.Context(), h.currentUserID(c), c.Param("id"))
	if errors.Is(err, notify.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("notification deletion failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notification_deletion_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
}

func (h *httpHandler) handleDeleteAllNotifications(c *gin.Context) {
	if err := h.notifications.DeleteAll(c.Request.Context(), h.currentUserID(c)); err != nil {
		h.logger.Error("notification bulk deletion failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notification_deletion_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
}
