package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/postinlab/postin-api/internal/comments"
	"github.com/postinlab/postin-api/internal/posts"
)

type createPostPayload struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	ImageURL    string `json:"image_url"`
	VideoURL    string `json:"video_url"`
	MediaType   string `json:"media_type"`
	CommunityID string `json:"community_id"`
}

func (h *httpHandler) handleCreatePost(c *gin.Context) {
	var request createPostPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	post, err := h.posts.Create(c.Request.Context(), posts.CreateRequest{
		UserID:      h.currentUserID(c),
		CommunityID: request.CommunityID,
		Title:       request.Title,
		Content:     request.Content,
		ImageURL:    request.ImageURL,
		VideoURL:    request.VideoURL,
		MediaType:   request.MediaType,
	})
	if errors.Is(err, posts.ErrInvalidPost) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title_required"})
		return
	}
	if err != nil {
		h.logger.Error("post creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "post_creation_failed"})
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *httpHandler) handleListPosts(c *gin.Context) {
	summaries, err := h.posts.List(c.Request.Context())
	if err != nil {
		h.logger.Error("post listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "post_listing_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": summaries})
}

func (h *httpHandler) handleGetPost(c *gin.Context) {
	postID := c.Param("id")
	post, err := h.posts.Get(c.Request.Context(), postID)
	if errors.Is(err, posts.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("post lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "post_lookup_failed"})
		return
	}

	views, err := h.comments.ListForPost(c.Request.Context(), postID)
	if err != nil {
		h.logger.Error("comment listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "comment_listing_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post, "comments": views})
}

func (h *httpHandler) handleDeletePost(c *gin.Context) {
	err := h.posts.Delete(c.Request.Context(), c.Param("id"), h.currentUserID(c))
	if errors.Is(err, posts.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
		return
	}
	if errors.Is(err, posts.ErrNotOwner) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not_owner"})
		return
	}
	if err != nil {
		h.logger.Error("post deletion failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "post_deletion_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

func (h *httpHandler) handleToggleLike(c *gin.Context) {
	liked, err := h.posts.ToggleLike(c.Request.Context(), c.Param("id"), h.currentUserID(c))
	if errors.Is(err, posts.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("like toggle failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "like_failed"})
		return
	}
	message := "Liked"
	if !liked {
		message = "Unliked"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "liked": liked})
}

type createCommentPayload struct {
	Content string `json:"content"`
}

type commentResponsePayload struct {
	UserComment comments.Comment  `json:"userComment"`
	BotComment  *comments.Comment `json:"botComment,omitempty"`
}

func (h *httpHandler) handleCreateComment(c *gin.Context) {
	var request createCommentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result, err := h.comments.Submit(c.Request.Context(), comments.SubmitRequest{
		PostID:   c.Param("id"),
		AuthorID: h.currentUserID(c),
		Content:  request.Content,
	})
	if errors.Is(err, comments.ErrEmptyComment) || errors.Is(err, comments.ErrPostNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_comment"})
		return
	}
	if err != nil {
		h.logger.Error("comment submission failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "comment_failed"})
		return
	}

	c.JSON(http.StatusCreated, commentResponsePayload{
		UserComment: result.UserComment,
		BotComment:  result.BotComment,
	})
}

func (h *httpHandler) handleDeleteComment(c *gin.Context) {
	err := h.comments.Delete(c.Request.Context(), c.Param("id"), c.Param("commentId"), h.currentUserID(c))
	if errors.Is(err, comments.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "comment_not_found"})
		return
	}
	if errors.Is(err, comments.ErrNotOwner) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not_owner"})
		return
	}
	if err != nil {
		h.logger.Error("comment deletion failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "comment_deletion_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}
