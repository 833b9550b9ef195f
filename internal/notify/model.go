package notify

import "time"

// Notification kinds.
const (
	KindComment = "comment"
	KindLike    = "like"
)

// Notification is a persisted "someone interacted with your post" record. It
// is created by the dispatcher, marked read by the recipient, and deleted
// individually or in bulk by the recipient.
type Notification struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	UserID    string    `gorm:"column:user_id;size:36;not null;index:idx_notifications_user_created,priority:1"`
	Kind      string    `gorm:"column:kind;size:16;not null"`
	Message   string    `gorm:"column:message;type:text;not null"`
	PostID    string    `gorm:"column:post_id;size:36;not null"`
	CommentID string    `gorm:"column:comment_id;size:36"`
	ActorName string    `gorm:"column:actor_name;size:190;not null"`
	Read      bool      `gorm:"column:read;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_notifications_user_created,priority:2"`
}

// TableName exposes the table backing notifications.
func (Notification) TableName() string {
	return "notifications"
}

// Event is the wire form pushed over realtime channels.
type Event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	PostID    string    `json:"post_id"`
	CommentID string    `json:"comment_id,omitempty"`
	ActorName string    `json:"actor_name"`
	CreatedAt time.Time `json:"created_at"`
}
