package comments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/postinlab/postin-api/internal/ai"
	"github.com/postinlab/postin-api/internal/ids"
	"github.com/postinlab/postin-api/internal/posts"
	"github.com/postinlab/postin-api/internal/users"
)

var (
	// ErrEmptyComment indicates the submitted body was empty after trimming.
	ErrEmptyComment = errors.New("comments: body is required")
	// ErrPostNotFound indicates the target post does not exist.
	ErrPostNotFound = errors.New("comments: post not found")
	// ErrNotFound indicates the comment does not exist.
	ErrNotFound = errors.New("comments: not found")
	// ErrNotOwner indicates the caller does not own the comment.
	ErrNotOwner = errors.New("comments: caller is not the owner")
)

// ReplyGenerator produces an assistant reply; it never fails.
type ReplyGenerator interface {
	Generate(ctx context.Context, userPrompt string, pctx ai.PromptContext) ai.Reply
}

// BotResolver resolves the shared assistant identity.
type BotResolver interface {
	EnsureBotIdentity(ctx context.Context) (users.User, error)
}

// CommentNotifier informs a post owner about a new comment.
type CommentNotifier interface {
	NotifyComment(ownerID, actorID, actorName, postID, postTitle, commentID string)
}

// PipelineConfig describes the collaborators of the comment pipeline.
type PipelineConfig struct {
	Database           *gorm.DB
	IDProvider         ids.Provider
	Generator          ReplyGenerator
	Bots               BotResolver
	Notifier           CommentNotifier
	MentionMarkers     []string
	MaxContextComments int
	Clock              func() time.Time
	Logger             *zap.Logger
}

// Pipeline ingests submitted comments. The user comment is persisted
// unconditionally; when the assistant is mentioned, everything after that
// persistence is a best-effort enhancement that can never fail the request.
type Pipeline struct {
	db        *gorm.DB
	ids       ids.Provider
	generator ReplyGenerator
	bots      BotResolver
	notifier  CommentNotifier
	detector  *Detector
	assembler *Assembler
	clock     func() time.Time
	logger    *zap.Logger
}

// NewPipeline constructs the comment pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("comments: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("comments: id provider required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("comments: reply generator required")
	}
	if cfg.Bots == nil {
		return nil, fmt.Errorf("comments: bot resolver required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		db:        cfg.Database,
		ids:       cfg.IDProvider,
		generator: cfg.Generator,
		bots:      cfg.Bots,
		notifier:  cfg.Notifier,
		detector:  NewDetector(cfg.MentionMarkers),
		assembler: NewAssembler(cfg.MaxContextComments),
		clock:     clock,
		logger:    logger,
	}, nil
}

// SubmitRequest carries an inbound comment.
type SubmitRequest struct {
	PostID   string
	AuthorID string
	Content  string
}

// Result is what the pipeline hands back to the HTTP layer. BotComment is nil
// unless the mentioned branch completed.
type Result struct {
	UserComment Comment
	BotComment  *Comment
}

// Submit runs the ingestion pipeline for one comment. Only validation errors
// are returned; once the user comment is persisted, every later failure
// degrades gracefully.
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (Result, error) {
	if strings.TrimSpace(req.Content) == "" {
		return Result{}, ErrEmptyComment
	}

	var post posts.Post
	err := p.db.WithContext(ctx).Where("id = ?", req.PostID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Result{}, ErrPostNotFound
	}
	if err != nil {
		return Result{}, err
	}

	userComment, err := p.persistComment(ctx, req.PostID, req.AuthorID, req.Content)
	if err != nil {
		return Result{}, err
	}
	result := Result{UserComment: userComment}

	if !p.detector.IsMentioned(req.Content) {
		p.notifyOwner(ctx, post, userComment)
		return result, nil
	}

	botComment, ok := p.runBotBranch(ctx, post, userComment)
	if ok {
		result.BotComment = &botComment
	}
	return result, nil
}

// runBotBranch assembles context, generates a reply and persists it under the
// assistant identity. Any failure is logged and reported as "no bot comment";
// it never invalidates the already persisted user comment.
func (p *Pipeline) runBotBranch(ctx context.Context, post posts.Post, userComment Comment) (Comment, bool) {
	prompt := p.detector.ExtractPrompt(userComment.Content)

	recent, err := p.recentComments(ctx, post.ID, userComment.ID)
	if err != nil {
		p.logger.Warn("comment history lookup failed",
			zap.String("post_id", post.ID), zap.Error(err))
		recent = nil
	}
	bundle := p.assembler.Assemble(post.Title, post.Content, recent)

	reply := p.generator.Generate(ctx, prompt, bundle)

	bot, err := p.bots.EnsureBotIdentity(ctx)
	if err != nil {
		p.logger.Error("bot identity resolution failed",
			zap.String("post_id", post.ID), zap.Error(err))
		return Comment{}, false
	}

	botComment, err := p.persistComment(ctx, post.ID, bot.ID, reply.Text)
	if err != nil {
		p.logger.Error("bot comment persist failed",
			zap.String("post_id", post.ID), zap.Error(err))
		return Comment{}, false
	}

	p.logger.Info("bot reply persisted",
		zap.String("post_id", post.ID),
		zap.String("comment_id", botComment.ID),
		zap.Bool("fallback", reply.Fallback))
	return botComment, true
}

func (p *Pipeline) persistComment(ctx context.Context, postID, authorID, content string) (Comment, error) {
	commentID, err := p.ids.NewID()
	if err != nil {
		return Comment{}, err
	}
	comment := Comment{
		ID:        commentID,
		PostID:    postID,
		UserID:    authorID,
		Content:   content,
		CreatedAt: p.clock().UTC(),
	}
	if err := p.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return Comment{}, err
	}
	return comment, nil
}

// recentComments fetches the most recent prior comments on the post, newest
// first, excluding the comment just submitted.
func (p *Pipeline) recentComments(ctx context.Context, postID, excludeID string) ([]RecentComment, error) {
	var rows []struct {
		Username string
		Content  string
	}
	err := p.db.WithContext(ctx).
		Model(&Comment{}).
		Select("users.username AS username, comments.content AS content").
		Joins("JOIN users ON users.id = comments.user_id").
		Where("comments.post_id = ? AND comments.id <> ?", postID, excludeID).
		Order("comments.created_at DESC, comments.id DESC").
		Limit(p.assembler.maxComments).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	recent := make([]RecentComment, 0, len(rows))
	for _, row := range rows {
		recent = append(recent, RecentComment{AuthorName: row.Username, Body: row.Content})
	}
	return recent, nil
}

func (p *Pipeline) notifyOwner(ctx context.Context, post posts.Post, comment Comment) {
	if p.notifier == nil {
		return
	}
	var author users.User
	if err := p.db.WithContext(ctx).Where("id = ?", comment.UserID).First(&author).Error; err != nil {
		p.logger.Warn("comment author lookup failed",
			zap.String("user_id", comment.UserID), zap.Error(err))
		return
	}
	p.notifier.NotifyComment(post.UserID, comment.UserID, author.Username, post.ID, post.Title, comment.ID)
}

// Delete removes a comment owned by the caller.
func (p *Pipeline) Delete(ctx context.Context, postID, commentID, callerID string) error {
	var comment Comment
	err := p.db.WithContext(ctx).
		Where("id = ? AND post_id = ?", commentID, postID).
		First(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if comment.UserID != callerID {
		return ErrNotOwner
	}
	return p.db.WithContext(ctx).Where("id = ?", commentID).Delete(&Comment{}).Error
}

// ListForPost returns every comment on a post in chronological order, with
// author names attached.
func (p *Pipeline) ListForPost(ctx context.Context, postID string) ([]View, error) {
	var views []View
	err := p.db.WithContext(ctx).
		Model(&Comment{}).
		Select("comments.*, users.username AS author_name").
		Joins("JOIN users ON users.id = comments.user_id").
		Where("comments.post_id = ?", postID).
		Order("comments.created_at ASC, comments.id ASC").
		Scan(&views).Error
	if err != nil {
		return nil, err
	}
	return views, nil
}

// View is a comment joined with its author name.
type View struct {
	Comment
	AuthorName string `json:"author_name"`
}
