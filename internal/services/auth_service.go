package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"blink-market/internal/logger"
	"blink-market/internal/models"
	"blink-market/internal/utils"
)

const nicknameAttempts = 5

// AuthService handles authentication business logic
type AuthService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(db *gorm.DB, log *zap.Logger) *AuthService {
	return &AuthService{db: db, log: logger.OrNop(log).Named("auth")}
}

// ProcessWalletLogin finds or creates the user for a verified wallet and
// stamps the login time.
func (s *AuthService) ProcessWalletLogin(ctx context.Context, walletAddress string, kind models.WalletKind) (*models.User, error) {
	now := time.Now().UTC()
	var user models.User

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("wallet_address = ?", walletAddress).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			nickname, err := s.freeNickname(tx)
			if err != nil {
				return err
			}
			user = models.User{
				WalletAddress: walletAddress,
				WalletKind:    kind,
				Nickname:      nickname,
				LastLoginAt:   now,
			}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			s.log.Info("new user registered",
				zap.Uint("user_id", user.ID),
				zap.String("wallet", walletAddress),
				zap.String("kind", string(kind)),
				zap.String("nickname", nickname),
			)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to find user: %w", err)
		}

		user.LastLoginAt = now
		return tx.Model(&user).Update("last_login_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// freeNickname draws nicknames until one is not taken.
func (s *AuthService) freeNickname(tx *gorm.DB) (string, error) {
	for i := 0; i < nicknameAttempts; i++ {
		name, err := utils.Nickname()
		if err != nil {
			return "", err
		}
		var taken int64
		if err := tx.Model(&models.User{}).Where("nickname = ?", name).Count(&taken).Error; err != nil {
			return "", fmt.Errorf("failed to check nickname: %w", err)
		}
		if taken == 0 {
			return name, nil
		}
	}
	return "", fmt.Errorf("no free nickname after %d attempts", nicknameAttempts)
}

// GetUserByWallet retrieves a user by wallet address
func (s *AuthService) GetUserByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("wallet_address = ?", walletAddress).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}
	return &user, nil
}
