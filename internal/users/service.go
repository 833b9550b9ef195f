package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/postinlab/postin-api/internal/auth"
	"github.com/postinlab/postin-api/internal/ids"
)

var (
	// ErrInvalidCredentials indicates the email/password pair did not match an account.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrDuplicateAccount indicates the email or username is already registered.
	ErrDuplicateAccount = errors.New("users: email or username already registered")
	// ErrNotFound indicates no account matches the requested identifier.
	ErrNotFound = errors.New("users: not found")
	// ErrInvalidRegistration indicates a required registration field is missing.
	ErrInvalidRegistration = errors.New("users: email, username and password are required")
)

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service manages accounts and profiles.
type Service struct {
	db     *gorm.DB
	ids    ids.Provider
	logger *zap.Logger
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("users: id provider required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, ids: cfg.IDProvider, logger: logger}, nil
}

// RegisterRequest carries the fields accepted at sign-up.
type RegisterRequest struct {
	Email    string
	Username string
	Password string
}

// Register creates a new account with a hashed password and an empty profile.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, error) {
	email := strings.ToLower(normalize(req.Email))
	username := normalize(req.Username)
	if email == "" || username == "" || req.Password == "" {
		return User{}, ErrInvalidRegistration
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return User{}, err
	}
	userID, err := s.ids.NewID()
	if err != nil {
		return User{}, err
	}

	account := User{
		ID:           userID,
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         RoleUser,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicateAccount
		}
		return User{}, err
	}

	if err := s.CreateProfile(ctx, userID, ProfileAttrs{}); err != nil {
		s.logger.Warn("profile creation failed during registration",
			zap.String("user_id", userID), zap.Error(err))
	}

	return account, nil
}

// Authenticate resolves an account by email and verifies the password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	var account User
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(normalize(email))).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return account, nil
}

// GetByID loads a single account.
func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	var account User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return account, nil
}

// NewUserAttrs describes the account fields used when creating a user by marker.
type NewUserAttrs struct {
	Username     string
	PasswordHash string
	Role         string
}

// FindOrCreateUser resolves the account registered under the unique email marker,
// creating it when absent. Concurrent creators converge on the same row: the
// losing insert hits the unique index and is resolved with a second lookup.
func (s *Service) FindOrCreateUser(ctx context.Context, email string, attrs NewUserAttrs) (User, bool, error) {
	email = strings.ToLower(normalize(email))

	var existing User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, false, err
	}

	userID, err := s.ids.NewID()
	if err != nil {
		return User{}, false, err
	}
	role := attrs.Role
	if role == "" {
		role = RoleUser
	}
	account := User{
		ID:           userID,
		Email:        email,
		Username:     normalize(attrs.Username),
		PasswordHash: attrs.PasswordHash,
		Role:         role,
	}
	err = s.db.WithContext(ctx).Create(&account).Error
	if err == nil {
		return account, true, nil
	}
	if !isUniqueViolation(err) {
		return User{}, false, err
	}

	// Lost the race: another caller created the row first.
	err = s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err != nil {
		return User{}, false, err
	}
	return existing, false, nil
}

// ProfileAttrs describes the mutable profile fields.
type ProfileAttrs struct {
	Bio       string
	AvatarURL string
	Location  string
	Website   string
}

// CreateProfile attaches a profile row to the given account. Creating a profile
// for a user that already has one is treated as a no-op.
func (s *Service) CreateProfile(ctx context.Context, userID string, attrs ProfileAttrs) error {
	profileID, err := s.ids.NewID()
	if err != nil {
		return err
	}
	profile := Profile{
		ID:        profileID,
		UserID:    userID,
		Bio:       attrs.Bio,
		AvatarURL: attrs.AvatarURL,
		Location:  attrs.Location,
		Website:   attrs.Website,
	}
	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

// GetProfile loads the profile attached to an account.
func (s *Service) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var profile Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// UpdateProfile overwrites the mutable profile fields and returns the result.
func (s *Service) UpdateProfile(ctx context.Context, userID string, attrs ProfileAttrs) (Profile, error) {
	updates := map[string]interface{}{
		"bio":        attrs.Bio,
		"avatar_url": attrs.AvatarURL,
		"location":   attrs.Location,
		"website":    attrs.Website,
	}
	result := s.db.WithContext(ctx).Model(&Profile{}).Where("user_id = ?", userID).Updates(updates)
	if result.Error != nil {
		return Profile{}, result.Error
	}
	if result.RowsAffected == 0 {
		if err := s.CreateProfile(ctx, userID, attrs); err != nil {
			return Profile{}, err
		}
	}
	return s.GetProfile(ctx, userID)
}

// isUniqueViolation reports whether the storage error came from a uniqueness
// constraint. The string check covers sqlite drivers that predate gorm's
// error translation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
