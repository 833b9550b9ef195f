package posts

import "time"

// Media types accepted on a post.
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

// Post is a user submission, optionally published into a community.
type Post struct {
	ID          string    `gorm:"column:id;primaryKey;size:36;not null"`
	UserID      string    `gorm:"column:user_id;size:36;not null;index"`
	CommunityID string    `gorm:"column:community_id;size:36;index"`
	Title       string    `gorm:"column:title;size:320;not null"`
	Content     string    `gorm:"column:content;type:text"`
	ImageURL    string    `gorm:"column:image_url;size:512"`
	VideoURL    string    `gorm:"column:video_url;size:512"`
	MediaType   string    `gorm:"column:media_type;size:16"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing posts.
func (Post) TableName() string {
	return "posts"
}

// Like marks that a user liked a post. The composite unique index makes the
// toggle idempotent per (post, user).
type Like struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	PostID    string    `gorm:"column:post_id;size:36;not null;uniqueIndex:ux_likes_post_user,priority:1"`
	UserID    string    `gorm:"column:user_id;size:36;not null;uniqueIndex:ux_likes_post_user,priority:2"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing likes.
func (Like) TableName() string {
	return "likes"
}
