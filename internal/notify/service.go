package notify

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound indicates the notification does not exist or belongs to someone else.
var ErrNotFound = errors.New("notify: notification not found")

// Service exposes the recipient-facing notification operations.
type Service struct {
	db *gorm.DB
}

// NewService constructs the notification service.
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("notify: database connection required")
	}
	return &Service{db: db}, nil
}

// List returns the recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Notification, error) {
	var records []Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// MarkRead flips the read flag on a single notification owned by the recipient.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	result := s.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a single notification owned by the recipient.
func (s *Service) Delete(ctx context.Context, userID, notificationID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every notification owned by the recipient.
func (s *Service) DeleteAll(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&Notification{}).Error
}
