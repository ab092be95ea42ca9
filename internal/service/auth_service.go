package service

import (
	"context"
	"errors"
	"time"

	"storefront-service/internal/auth"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

var ErrInvalidInitData = errors.New("invalid init data")

// AuthService exchanges Telegram Mini-App init data for a session token
type AuthService struct {
	store    *store.Store
	tokens   *auth.TokenManager
	botToken string
	maxAge   time.Duration
	logger   *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(store *store.Store, tokens *auth.TokenManager, botToken string, maxAge time.Duration) *AuthService {
	return &AuthService{
		store:    store,
		tokens:   tokens,
		botToken: botToken,
		maxAge:   maxAge,
		logger:   util.GetLogger(),
	}
}

// AuthResponse is returned after a successful exchange
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Authenticate verifies initData, upserts the user and issues a token
func (s *AuthService) Authenticate(ctx context.Context, initData string) (*AuthResponse, error) {
	if err := auth.VerifyInitData(initData, s.botToken, s.maxAge); err != nil {
		s.logger.Warn("Init data rejected", zap.Error(err))
		return nil, ErrInvalidInitData
	}

	tgUser, err := auth.ParseInitDataUser(initData)
	if err != nil {
		return nil, ErrInvalidInitData
	}

	user, err := s.store.GetOrCreateUserByTelegramID(ctx, tgUser.ID, tgUser.Username, tgUser.FirstName)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: user}, nil
}
