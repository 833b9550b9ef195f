package communities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/postinlab/postin-api/internal/ids"
)

var (
	// ErrNotFound indicates the community does not exist.
	ErrNotFound = errors.New("communities: not found")
	// ErrDuplicateName indicates a community with that name already exists.
	ErrDuplicateName = errors.New("communities: name already taken")
	// ErrInvalidCommunity indicates a required field is missing.
	ErrInvalidCommunity = errors.New("communities: name is required")
)

// ServiceConfig describes the dependencies of the community service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
}

// Service manages communities and memberships.
type Service struct {
	db  *gorm.DB
	ids ids.Provider
}

// NewService constructs the community service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("communities: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("communities: id provider required")
	}
	return &Service{db: cfg.Database, ids: cfg.IDProvider}, nil
}

// CreateRequest carries the fields accepted when founding a community.
type CreateRequest struct {
	Name        string
	Description string
	IconURL     string
	CreatorID   string
	IsPublic    bool
}

// Create founds a community and enrolls the creator as its first member.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Community, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Community{}, ErrInvalidCommunity
	}
	communityID, err := s.ids.NewID()
	if err != nil {
		return Community{}, err
	}
	community := Community{
		ID:          communityID,
		Name:        name,
		Description: req.Description,
		IconURL:     req.IconURL,
		CreatorID:   req.CreatorID,
		IsPublic:    req.IsPublic,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&community).Error; err != nil {
			return err
		}
		return tx.Create(&Member{CommunityID: communityID, UserID: req.CreatorID}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return Community{}, ErrDuplicateName
		}
		return Community{}, err
	}
	return community, nil
}

// Summary is a community with its member count attached.
type Summary struct {
	Community
	MemberCount int64 `json:"member_count"`
}

// List returns every community with member counts.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	var summaries []Summary
	err := s.db.WithContext(ctx).
		Model(&Community{}).
		Select(`communities.*,
			(SELECT COUNT(*) FROM community_members WHERE community_members.community_id = communities.id) AS member_count`).
		Order("communities.created_at DESC").
		Scan(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// Get loads a single community.
func (s *Service) Get(ctx context.Context, communityID string) (Community, error) {
	var community Community
	err := s.db.WithContext(ctx).Where("id = ?", communityID).First(&community).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Community{}, ErrNotFound
	}
	if err != nil {
		return Community{}, err
	}
	return community, nil
}

// Join enrolls a user; joining twice is a no-op.
func (s *Service) Join(ctx context.Context, communityID, userID string) error {
	if _, err := s.Get(ctx, communityID); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Create(&Member{CommunityID: communityID, UserID: userID}).Error
	if err != nil && !isUniqueViolation(err) {
		return err
	}
	return nil
}

// Leave removes a user's membership.
func (s *Service) Leave(ctx context.Context, communityID, userID string) error {
	return s.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Delete(&Member{}).Error
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
