package users

import (
	"context"

	"go.uber.org/zap"
)

// The assistant account is keyed by a reserved email so that every process,
// and every request racing inside a process, converges on the same row.
const (
	BotEmail    = "ai.bot@post.in"
	BotUsername = "AI Bot"

	botBio       = "Asisten AI resmi Post.in. Sebut @bot atau @ai di komentar untuk bertanya."
	botAvatarURL = "https://api.dicebear.com/7.x/bottts/svg?seed=postin-bot"
)

// BotManager resolves the single shared assistant identity.
type BotManager struct {
	users  *Service
	logger *zap.Logger
}

// NewBotManager constructs a BotManager over the account service.
func NewBotManager(service *Service, logger *zap.Logger) *BotManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BotManager{users: service, logger: logger}
}

// EnsureBotIdentity returns the assistant account, creating it on first use.
// Creation is idempotent under concurrency: the unique index on the reserved
// email guarantees at most one row regardless of how many callers race.
func (m *BotManager) EnsureBotIdentity(ctx context.Context) (User, error) {
	account, created, err := m.users.FindOrCreateUser(ctx, BotEmail, NewUserAttrs{
		Username: BotUsername,
		Role:     RoleBot,
	})
	if err != nil {
		return User{}, err
	}
	if created {
		m.logger.Info("bot identity created", zap.String("user_id", account.ID))
		if err := m.users.CreateProfile(ctx, account.ID, ProfileAttrs{
			Bio:       botBio,
			AvatarURL: botAvatarURL,
		}); err != nil {
			m.logger.Warn("bot profile creation failed", zap.Error(err))
		}
	}
	return account, nil
}
