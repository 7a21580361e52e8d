package service

import (
	"context"
	"errors"
	"time"

	"github.com/appcraft/showcase-service/src/internal/api/apiErrors"
	"github.com/appcraft/showcase-service/src/internal/auth"
	"github.com/appcraft/showcase-service/src/internal/model"
	"github.com/appcraft/showcase-service/src/internal/store"

	"github.com/rs/xid"
	"go.uber.org/zap"
)

type UserService struct {
	repo store.Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewUserService(repo store.Repository, logger *zap.Logger) *UserService {
	return &UserService{
		repo: repo,
		log:  logger,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SignIn records a completed OAuth handshake: the user is created on first
// sign-in and their profile attributes re-synced afterwards.
func (s *UserService) SignIn(ctx context.Context, profile auth.Profile) (model.User, error) {
	user, err := s.repo.UpsertUser(ctx, model.User{
		ID:        xid.New().String(),
		GitHubID:  profile.GitHubID,
		Username:  profile.Username,
		Email:     profile.Email,
		AvatarURL: profile.AvatarURL,
		CreatedAt: s.now(),
	})
	if err != nil {
		return model.User{}, err
	}

	s.log.Info("SignIn: success", zap.String("user", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Me returns the profile of the acting principal.
func (s *UserService) Me(ctx context.Context, p model.Principal) (model.User, error) {
	if !p.Authenticated() {
		return model.User{}, apiErrors.APIError{Code: apiErrors.Unauthorized, Message: "You must be signed in."}
	}
	user, err := s.repo.GetUser(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, apiErrors.APIError{Code: apiErrors.Unauthorized, Message: "You must be signed in."}
		}
		return model.User{}, err
	}
	return user, nil
}
