package communities

import "time"

// Community is a named space that users join and post into.
type Community struct {
	ID          string    `gorm:"column:id;primaryKey;size:36;not null"`
	Name        string    `gorm:"column:name;size:190;not null;uniqueIndex"`
	Description string    `gorm:"column:description;type:text"`
	IconURL     string    `gorm:"column:icon_url;size:512"`
	CreatorID   string    `gorm:"column:creator_id;size:36;not null"`
	IsPublic    bool      `gorm:"column:is_public;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing communities.
func (Community) TableName() string {
	return "communities"
}

// Member links a user to a community.
type Member struct {
	CommunityID string    `gorm:"column:community_id;primaryKey;size:36;not null"`
	UserID      string    `gorm:"column:user_id;primaryKey;size:36;not null"`
	JoinedAt    time.Time `gorm:"column:joined_at;autoCreateTime"`
}

// TableName exposes the table backing community memberships.
func (Member) TableName() string {
	return "community_members"
}
