package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/postinlab/postin-api/internal/ids"
)

const deliveryTimeout = 5 * time.Second

// DispatcherConfig describes the dependencies of the notification dispatcher.
// Publishers may be empty: an unconfigured realtime channel is not an error.
type DispatcherConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	Publishers []Publisher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Dispatcher records and pushes owner notifications. Every call is
// fire-and-forget: failures are logged and swallowed, and the caller never
// waits for delivery.
type Dispatcher struct {
	db         *gorm.DB
	ids        ids.Provider
	publishers []Publisher
	logger     *zap.Logger
	clock      func() time.Time
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("notify: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("notify: id provider required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Dispatcher{
		db:         cfg.Database,
		ids:        cfg.IDProvider,
		publishers: cfg.Publishers,
		logger:     logger,
		clock:      clock,
	}, nil
}

// NotifyComment informs a post owner about a new comment. A no-op when the
// commenter is the owner.
func (d *Dispatcher) NotifyComment(ownerID, actorID, actorName, postID, postTitle, commentID string) {
	if actorID == ownerID {
		return
	}
	message := fmt.Sprintf("%s commented on your post: \"%s\"", actorName, postTitle)
	d.dispatch(Event{
		UserID:    ownerID,
		Kind:      KindComment,
		Message:   message,
		PostID:    postID,
		CommentID: commentID,
		ActorName: actorName,
	})
}

// NotifyLike informs a post owner about a new like. A no-op when the liker is
// the owner.
func (d *Dispatcher) NotifyLike(ownerID, actorID, actorName, postID, postTitle string) {
	if actorID == ownerID {
		return
	}
	message := fmt.Sprintf("%s liked your post: \"%s\"", actorName, postTitle)
	d.dispatch(Event{
		UserID:    ownerID,
		Kind:      KindLike,
		Message:   message,
		PostID:    postID,
		ActorName: actorName,
	})
}

// dispatch hands the event to a delivery goroutine. The goroutine uses a
// fresh context so a finished HTTP request cannot cancel delivery.
func (d *Dispatcher) dispatch(event Event) {
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				d.logger.Error("notification delivery panicked", zap.Any("panic", recovered))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		d.deliver(ctx, event)
	}()
}

// deliver persists the notification and pushes it to every configured
// realtime channel. Errors are logged only; there is exactly one attempt.
func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	notificationID, err := d.ids.NewID()
	if err != nil {
		d.logger.Error("notification id generation failed", zap.Error(err))
		return
	}
	event.ID = notificationID
	event.CreatedAt = d.clock().UTC()

	record := Notification{
		ID:        event.ID,
		UserID:    event.UserID,
		Kind:      event.Kind,
		Message:   event.Message,
		PostID:    event.PostID,
		CommentID: event.CommentID,
		ActorName: event.ActorName,
		CreatedAt: event.CreatedAt,
	}
	if err := d.db.WithContext(ctx).Create(&record).Error; err != nil {
		d.logger.Error("notification persist failed",
			zap.String("recipient", event.UserID),
			zap.String("kind", event.Kind),
			zap.Error(err))
	}

	for _, publisher := range d.publishers {
		if publisher == nil {
			continue
		}
		if err := publisher.Publish(ctx, event); err != nil {
			d.logger.Warn("notification push failed",
				zap.String("recipient", event.UserID),
				zap.String("kind", event.Kind),
				zap.Error(err))
		}
	}
}
