package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/postinlab/postin-api/internal/ids"
	"github.com/postinlab/postin-api/internal/users"
)

var (
	// ErrNotFound indicates the post does not exist.
	ErrNotFound = errors.New("posts: not found")
	// ErrNotOwner indicates the caller does not own the post.
	ErrNotOwner = errors.New("posts: caller is not the owner")
	// ErrInvalidPost indicates a required field is missing.
	ErrInvalidPost = errors.New("posts: title is required")
)

// LikeNotifier informs a post owner about a new like.
type LikeNotifier interface {
	NotifyLike(ownerID, actorID, actorName, postID, postTitle string)
}

// ServiceConfig describes the dependencies of the post service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	Notifier   LikeNotifier
	Logger     *zap.Logger
}

// Service manages posts and likes.
type Service struct {
	db       *gorm.DB
	ids      ids.Provider
	notifier LikeNotifier
	logger   *zap.Logger
}

// NewService constructs the post service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("posts: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("posts: id provider required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       cfg.Database,
		ids:      cfg.IDProvider,
		notifier: cfg.Notifier,
		logger:   logger,
	}, nil
}

// CreateRequest carries the fields accepted when publishing a post.
type CreateRequest struct {
	UserID      string
	CommunityID string
	Title       string
	Content     string
	ImageURL    string
	VideoURL    string
	MediaType   string
}

// Create validates and persists a new post.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Post, error) {
	if strings.TrimSpace(req.Title) == "" {
		return Post{}, ErrInvalidPost
	}
	postID, err := s.ids.NewID()
	if err != nil {
		return Post{}, err
	}
	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = MediaTypeImage
	}
	post := Post{
		ID:          postID,
		UserID:      req.UserID,
		CommunityID: req.CommunityID,
		Title:       strings.TrimSpace(req.Title),
		Content:     req.Content,
		ImageURL:    req.ImageURL,
		VideoURL:    req.VideoURL,
		MediaType:   mediaType,
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return Post{}, err
	}
	return post, nil
}

// Summary is a post with the aggregates the feed needs.
type Summary struct {
	Post
	AuthorName   string `json:"author_name"`
	LikeCount    int64  `json:"like_count"`
	CommentCount int64  `json:"comment_count"`
}

// List returns every post, newest first, with author and counters attached.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	var summaries []Summary
	err := s.db.WithContext(ctx).
		Model(&Post{}).
		Select(`posts.*, users.username AS author_name,
			(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS like_count,
			(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count`).
		Joins("JOIN users ON users.id = posts.user_id").
		Order("posts.created_at DESC").
		Scan(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// Get loads a single post.
func (s *Service) Get(ctx context.Context, postID string) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Where("id = ?", postID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, err
	}
	return post, nil
}

// Delete removes a post owned by the caller, along with its dependents.
func (s *Service) Delete(ctx context.Context, postID, callerID string) error {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != callerID {
		return ErrNotOwner
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&Like{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM comments WHERE post_id = ?", postID).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", postID).Delete(&Post{}).Error
	})
}

// ToggleLike likes the post when the caller has not liked it yet and unlikes
// it otherwise. A fresh like notifies the post owner.
func (s *Service) ToggleLike(ctx context.Context, postID, callerID string) (bool, error) {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return false, err
	}

	var existing Like
	err = s.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, callerID).
		First(&existing).Error
	if err == nil {
		if err := s.db.WithContext(ctx).Where("id = ?", existing.ID).Delete(&Like{}).Error; err != nil {
			return false, err
		}
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	likeID, err := s.ids.NewID()
	if err != nil {
		return false, err
	}
	like := Like{ID: likeID, PostID: postID, UserID: callerID}
	if err := s.db.WithContext(ctx).Create(&like).Error; err != nil {
		return false, err
	}

	if s.notifier != nil {
		var actor users.User
		if err := s.db.WithContext(ctx).Where("id = ?", callerID).First(&actor).Error; err != nil {
			s.logger.Warn("like actor lookup failed", zap.String("user_id", callerID), zap.Error(err))
		} else {
			s.notifier.NotifyLike(post.UserID, callerID, actor.Username, post.ID, post.Title)
		}
	}
	return true, nil
}
