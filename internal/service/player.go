package service

import (
	"context"
	"errors"
	"fmt"

	"dyfl-backend/internal/constants"
	"dyfl-backend/internal/domain"
	"dyfl-backend/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type HistoryLister interface {
	ListByAccountID(ctx context.Context, accountID string, limit int) ([]domain.RankHistory, error)
}

type PlayerService struct {
	api     GameAPI
	store   PlayerStore
	history HistoryLister
	logger  zerolog.Logger
}

func NewPlayerService(api GameAPI, store PlayerStore, history HistoryLister, logger zerolog.Logger) *PlayerService {
	return &PlayerService{api: api, store: store, history: history, logger: logger}
}

// GetOrCreate returns the tracked player for displayID, creating it from
// upstream data on first use.
func (s *PlayerService) GetOrCreate(ctx context.Context, displayID string) (*domain.TrackedPlayer, error) {
	if _, _, err := domain.SplitDisplayID(displayID); err != nil {
		return nil, err
	}

	player, err := s.store.GetByDisplayID(ctx, displayID)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	s.logger.Debug().Str("display_id", displayID).Msg("tracked player not found, creating")
	return s.create(ctx, displayID)
}

func (s *PlayerService) create(ctx context.Context, displayID string) (*domain.TrackedPlayer, error) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	accountID, err := s.api.ResolveAccountID(apiCtx, displayID)
	if err != nil {
		s.logger.Error().Err(err).Str("display_id", displayID).Msg("failed to resolve account id")
		return nil, fmt.Errorf("failed to resolve account id: %w", err)
	}
	if !domain.IsValidAccountID(accountID) {
		s.logger.Error().Str("display_id", displayID).Str("account_id", accountID).Msg("upstream returned a malformed account id")
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAccountID, accountID)
	}

	player := &domain.TrackedPlayer{DisplayID: displayID, AccountID: accountID}
	if err := s.fillFromUpstream(apiCtx, player); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, player); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			// created concurrently by another request
			if existing, getErr := s.store.GetByDisplayID(ctx, displayID); getErr == nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to create tracked player: %w", err)
	}

	s.logger.Info().
		Str("display_id", displayID).
		Str("account_id", accountID).
		Str("solo", rankString(player.SoloRank)).
		Str("flex", rankString(player.FlexRank)).
		Msg("tracked player created")
	return player, nil
}

// fillFromUpstream sets ranks and the three match cursors. A failed rank
// lookup leaves the player unranked; a failed match id lookup is an error.
func (s *PlayerService) fillFromUpstream(ctx context.Context, player *domain.TrackedPlayer) error {
	ranks, err := s.api.FetchRankEntries(ctx, player.AccountID)
	if err != nil {
		s.logger.Warn().Err(err).Str("display_id", player.DisplayID).Msg("failed to fetch rank entries, treating as unranked")
		ranks = &domain.RankSet{}
	}
	player.SoloRank = ranks.Solo
	player.FlexRank = ranks.Flex

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		player.LastMatchID, err = s.api.FetchLatestMatchID(gctx, player.AccountID, domain.QueueAny)
		return err
	})
	g.Go(func() (err error) {
		player.LastMatchIDSolo, err = s.api.FetchLatestMatchID(gctx, player.AccountID, domain.QueueSolo)
		return err
	})
	g.Go(func() (err error) {
		player.LastMatchIDFlex, err = s.api.FetchLatestMatchID(gctx, player.AccountID, domain.QueueFlex)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to fetch latest match ids: %w", err)
	}
	return nil
}

// Refresh re-reads ranks and match cursors from upstream.
func (s *PlayerService) Refresh(ctx context.Context, displayID string) (*domain.TrackedPlayer, error) {
	player, err := s.store.GetByDisplayID(ctx, displayID)
	if err != nil {
		return nil, err
	}

	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()
	if err := s.fillFromUpstream(apiCtx, player); err != nil {
		return nil, err
	}

	err = s.store.Update(ctx, displayID, domain.PlayerUpdate{
		LastMatchID:     &player.LastMatchID,
		LastMatchIDSolo: &player.LastMatchIDSolo,
		LastMatchIDFlex: &player.LastMatchIDFlex,
		SoloRank:        player.SoloRank,
		FlexRank:        player.FlexRank,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to refresh tracked player: %w", err)
	}
	return s.store.GetByDisplayID(ctx, displayID)
}

func (s *PlayerService) RemoveIfUnused(ctx context.Context, displayID string) (bool, error) {
	return s.store.DeleteIfUnreferenced(ctx, displayID)
}

// ForceRemove drops the player and every follow relation on it.
func (s *PlayerService) ForceRemove(ctx context.Context, displayID string) error {
	return s.store.ForceDelete(ctx, displayID)
}

func (s *PlayerService) History(ctx context.Context, displayID string) ([]domain.RankHistory, error) {
	player, err := s.store.GetByDisplayID(ctx, displayID)
	if err != nil {
		return nil, err
	}
	return s.history.ListByAccountID(ctx, player.AccountID, constants.RankHistoryLimit)
}

type AccountIDFix struct {
	DisplayID    string
	OldAccountID string
	NewAccountID string
	Err          error
}

// FixInvalidAccountIDs re-resolves every player whose stored account id is
// malformed. Individual failures are reported, not returned.
func (s *PlayerService) FixInvalidAccountIDs(ctx context.Context) ([]AccountIDFix, error) {
	players, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked players: %w", err)
	}

	var fixes []AccountIDFix
	for _, p := range players {
		if domain.IsValidAccountID(p.AccountID) {
			continue
		}
		fix := AccountIDFix{DisplayID: p.DisplayID, OldAccountID: p.AccountID}
		s.logger.Warn().Str("display_id", p.DisplayID).Str("account_id", p.AccountID).Msg("invalid account id found")

		fix.NewAccountID, fix.Err = s.api.ResolveAccountID(ctx, p.DisplayID)
		if fix.Err == nil && !domain.IsValidAccountID(fix.NewAccountID) {
			fix.Err = fmt.Errorf("%w: %q", domain.ErrInvalidAccountID, fix.NewAccountID)
		}
		if fix.Err == nil {
			fix.Err = s.store.UpdateAccountID(ctx, p.DisplayID, fix.NewAccountID)
		}
		if fix.Err != nil {
			s.logger.Error().Err(fix.Err).Str("display_id", p.DisplayID).Msg("failed to fix account id")
		} else {
			s.logger.Info().Str("display_id", p.DisplayID).Str("account_id", fix.NewAccountID).Msg("account id fixed")
		}
		fixes = append(fixes, fix)
	}
	return fixes, nil
}

func rankString(r *domain.Rank) string {
	if r == nil {
		return "unranked"
	}
	return r.String()
}
