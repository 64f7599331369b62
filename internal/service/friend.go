package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"dyfl-backend/internal/domain"
	"dyfl-backend/internal/repository"

	"github.com/rs/zerolog"
)

var (
	ErrAlreadyFriend  = errors.New("player is already in the friend list")
	ErrFriendNotFound = errors.New("friend not found")
)

type PlayerManager interface {
	GetOrCreate(ctx context.Context, displayID string) (*domain.TrackedPlayer, error)
	RemoveIfUnused(ctx context.Context, displayID string) (bool, error)
}

type FriendService struct {
	friends FriendStore
	players PlayerStore
	manager PlayerManager
	logger  zerolog.Logger
}

func NewFriendService(friends FriendStore, players PlayerStore, manager PlayerManager, logger zerolog.Logger) *FriendService {
	return &FriendService{friends: friends, players: players, manager: manager, logger: logger}
}

// FriendView is a follow relation joined with the tracked player's state.
// Player is nil if the tracked row is missing.
type FriendView struct {
	domain.Friend
	Player *domain.TrackedPlayer
}

func (s *FriendService) List(ctx context.Context, userID string) ([]FriendView, error) {
	friends, err := s.friends.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]FriendView, 0, len(friends))
	for _, f := range friends {
		view := FriendView{Friend: f}
		player, err := s.players.GetByDisplayID(ctx, f.DisplayID)
		switch {
		case err == nil:
			view.Player = player
		case errors.Is(err, repository.ErrNotFound):
			s.logger.Warn().Str("display_id", f.DisplayID).Msg("friend has no tracked player")
		default:
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// Add follows displayID for the user, creating the tracked player if needed.
func (s *FriendService) Add(ctx context.Context, userID, displayID string) (*FriendView, error) {
	if _, _, err := domain.SplitDisplayID(displayID); err != nil {
		return nil, err
	}

	existing, err := s.friends.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if slices.ContainsFunc(existing, func(f domain.Friend) bool { return f.DisplayID == displayID }) {
		return nil, ErrAlreadyFriend
	}

	player, err := s.manager.GetOrCreate(ctx, displayID)
	if err != nil {
		return nil, err
	}

	friend, err := s.friends.Add(ctx, userID, displayID)
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, ErrAlreadyFriend
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Str("display_id", displayID).Msg("friend added")
	return &FriendView{Friend: *friend, Player: player}, nil
}

// Remove unfollows displayID and drops the tracked player when nobody else
// follows it.
func (s *FriendService) Remove(ctx context.Context, userID, displayID string) error {
	err := s.friends.Remove(ctx, userID, displayID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrFriendNotFound
	}
	if err != nil {
		return err
	}

	if _, err := s.manager.RemoveIfUnused(ctx, displayID); err != nil {
		s.logger.Warn().Err(err).Str("display_id", displayID).Msg("failed to clean up tracked player")
	}
	s.logger.Info().Str("user_id", userID).Str("display_id", displayID).Msg("friend removed")
	return nil
}

type RemovalResult struct {
	DisplayID string
	Err       error
}

type BatchRemoval struct {
	Results    []RemovalResult
	Successful int
	Failed     int
	// Partial is set when some removals failed and the caller did not force.
	Partial bool
}

func (s *FriendService) RemoveBatch(ctx context.Context, userID string, displayIDs []string, force bool) BatchRemoval {
	var out BatchRemoval
	for _, id := range displayIDs {
		err := s.Remove(ctx, userID, id)
		out.Results = append(out.Results, RemovalResult{DisplayID: id, Err: err})
		if err != nil {
			out.Failed++
			continue
		}
		out.Successful++
	}
	out.Partial = !force && out.Failed > 0
	return out
}

type FriendStats struct {
	Total     int                 `json:"total"`
	WithSolo  int                 `json:"withSoloQ"`
	WithFlex  int                 `json:"withFlex"`
	SoloTiers map[domain.Tier]int `json:"soloTiers"`
	FlexTiers map[domain.Tier]int `json:"flexTiers"`
}

func (s *FriendService) Stats(ctx context.Context, userID string) (*FriendStats, error) {
	views, err := s.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}

	stats := &FriendStats{
		Total:     len(views),
		SoloTiers: map[domain.Tier]int{},
		FlexTiers: map[domain.Tier]int{},
	}
	for _, v := range views {
		if v.Player == nil {
			continue
		}
		if r := v.Player.SoloRank; r != nil {
			stats.WithSolo++
			stats.SoloTiers[r.Tier]++
		}
		if r := v.Player.FlexRank; r != nil {
			stats.WithFlex++
			stats.FlexTiers[r.Tier]++
		}
	}
	return stats, nil
}
