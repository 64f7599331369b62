package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dyfl-backend/internal/domain"
	"dyfl-backend/internal/repository"

	"github.com/rs/zerolog"
)

var ErrMissingDeviceID = errors.New("device id is required")

type UserService struct {
	users   UserStore
	manager PlayerManager
	logger  zerolog.Logger
}

func NewUserService(users UserStore, manager PlayerManager, logger zerolog.Logger) *UserService {
	return &UserService{users: users, manager: manager, logger: logger}
}

// GetOrCreate returns the user owning deviceID and marks it as seen.
func (s *UserService) GetOrCreate(ctx context.Context, deviceID string) (*domain.User, error) {
	if deviceID == "" {
		return nil, ErrMissingDeviceID
	}

	user, err := s.users.GetByDeviceID(ctx, deviceID)
	if errors.Is(err, repository.ErrNotFound) {
		user, err = s.users.Create(ctx, deviceID)
		if errors.Is(err, repository.ErrAlreadyExists) {
			return s.users.GetByDeviceID(ctx, deviceID)
		}
		if err != nil {
			return nil, err
		}
		s.logger.Info().Str("user_id", user.ID).Msg("user created")
		return user, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.users.Touch(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to update last seen: %w", err)
	}
	user.LastSeen = now
	return user, nil
}

// RegisterPushToken stores token for the device, creating the user if needed.
func (s *UserService) RegisterPushToken(ctx context.Context, deviceID, token string) (*domain.User, error) {
	user, err := s.GetOrCreate(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if token == "" || token == user.PushToken {
		return user, nil
	}
	if err := s.users.SetPushToken(ctx, user.ID, token); err != nil {
		return nil, err
	}
	user.PushToken = token
	s.logger.Info().Str("user_id", user.ID).Msg("push token registered")
	return user, nil
}

// Delete removes the user and its follows, then drops players left without
// followers.
func (s *UserService) Delete(ctx context.Context, deviceID string) error {
	followed, err := s.users.Delete(ctx, deviceID)
	if err != nil {
		return err
	}
	for _, displayID := range followed {
		if _, err := s.manager.RemoveIfUnused(ctx, displayID); err != nil {
			s.logger.Warn().Err(err).Str("display_id", displayID).Msg("failed to clean up tracked player")
		}
	}
	s.logger.Info().Int("followed", len(followed)).Msg("user deleted")
	return nil
}
