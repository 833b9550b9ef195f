package comments

import "time"

// Comment is a user (or bot) reply on a post. Immutable once created except
// for deletion.
type Comment struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	PostID    string    `gorm:"column:post_id;size:36;not null;index:idx_comments_post_created,priority:1"`
	UserID    string    `gorm:"column:user_id;size:36;not null;index"`
	Content   string    `gorm:"column:content;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_comments_post_created,priority:2"`
}

// TableName exposes the table backing comments.
func (Comment) TableName() string {
	return "comments"
}
