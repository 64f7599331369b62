package service

import (
	"context"
	"fmt"
	"time"

	"dyfl-backend/internal/domain"

	"github.com/rs/zerolog"
)

type OutcomeKind string

const (
	NoNewMatch         OutcomeKind = "no_new_match"
	NonRankedMatchSeen OutcomeKind = "non_ranked_match_seen"
	RankedResult       OutcomeKind = "ranked_result"
)

type Outcome struct {
	Kind    OutcomeKind
	MatchID string
	Queue   domain.QueueKind
	// nil when the tracked account was not among the participants
	Win        *bool
	LPDelta    int
	RankChange *domain.RankChange
}

type Engine struct {
	api      GameAPI
	store    PlayerStore
	cache    LookupCache
	notifier DefeatNotifier
	history  HistoryRecorder
	logger   zerolog.Logger
}

func NewEngine(api GameAPI, store PlayerStore, cache LookupCache, notifier DefeatNotifier, history HistoryRecorder, logger zerolog.Logger) *Engine {
	return &Engine{
		api:      api,
		store:    store,
		cache:    cache,
		notifier: notifier,
		history:  history,
		logger:   logger,
	}
}

// Reconcile compares the stored state of one player with the upstream state
// and persists what changed. Whenever err is non-nil the outcome is NoNewMatch.
func (e *Engine) Reconcile(ctx context.Context, player domain.TrackedPlayer) (Outcome, error) {
	noNew := Outcome{Kind: NoNewMatch}
	logger := e.logger.With().Str("display_id", player.DisplayID).Logger()

	matchID, err := e.api.FetchLatestMatchID(ctx, player.AccountID, domain.QueueAny)
	if err != nil {
		return noNew, fmt.Errorf("failed to fetch latest match id: %w", err)
	}
	if matchID == "" {
		return noNew, nil
	}

	match, err := e.cache.Match(ctx, matchID, func(ctx context.Context) (*domain.MatchSummary, error) {
		return e.api.FetchMatchSummary(ctx, matchID)
	})
	if err != nil || match == nil {
		logger.Warn().Err(err).Str("match_id", matchID).Msg("match summary unavailable, will retry next pass")
		return noNew, nil
	}

	queue := domain.QueueKindFromID(match.QueueID)
	if !queue.IsRanked() {
		if matchID != player.LastMatchID {
			if err := e.store.Update(ctx, player.DisplayID, domain.PlayerUpdate{LastMatchID: &matchID}); err != nil {
				return noNew, fmt.Errorf("failed to record non-ranked match: %w", err)
			}
		}
		return Outcome{Kind: NonRankedMatchSeen, MatchID: matchID, Queue: queue}, nil
	}

	if matchID == player.CursorFor(queue) && matchID == player.LastMatchID {
		return noNew, nil
	}

	ranks, err := e.cache.Ranks(ctx, player.AccountID, func(ctx context.Context) (*domain.RankSet, error) {
		return e.api.FetchRankEntries(ctx, player.AccountID)
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to fetch rank entries, treating as empty")
		ranks = &domain.RankSet{}
	}

	oldRank := player.RankFor(queue)
	freshRank := ranks.For(queue)
	snapshot := freshRank
	if snapshot == nil {
		snapshot = oldRank
	}

	update := domain.PlayerUpdate{LastMatchID: &matchID}
	switch queue {
	case domain.QueueSolo:
		update.LastMatchIDSolo = &matchID
		update.SoloRank = snapshot
	case domain.QueueFlex:
		update.LastMatchIDFlex = &matchID
		update.FlexRank = snapshot
	}
	if err := e.store.Update(ctx, player.DisplayID, update); err != nil {
		return noNew, fmt.Errorf("failed to update tracked player: %w", err)
	}

	delta, change := LPDelta(oldRank, freshRank)
	outcome := Outcome{
		Kind:       RankedResult,
		MatchID:    matchID,
		Queue:      queue,
		LPDelta:    delta,
		RankChange: change,
	}

	participant, found := match.Participant(player.AccountID)
	if found {
		win := participant.Win
		outcome.Win = &win
	}
	e.recordHistory(ctx, player, outcome, oldRank, freshRank, logger)

	logResult := func(msg string) {
		event := logger.Info().
			Str("match_id", matchID).
			Str("queue", string(queue)).
			Int("lp_delta", delta)
		if change != nil {
			event = event.Str("rank_change", change.String()).Str("direction", string(change.Direction))
		}
		event.Msg(msg)
	}

	switch {
	case !found:
		logger.Warn().
			Str("match_id", matchID).
			Str("queue", string(queue)).
			Msg("new ranked game detected but player missing from participants")
	case participant.Win:
		logResult("new ranked game detected: win")
	default:
		logResult("new ranked game detected: defeat")
		defeat := domain.Defeat{
			DisplayID:       player.DisplayID,
			MatchID:         matchID,
			Queue:           queue,
			Participant:     participant,
			DurationSeconds: match.DurationSeconds,
			LPLoss:          abs(delta),
			RankChange:      change,
		}
		if err := e.notifier.NotifyDefeat(ctx, defeat); err != nil {
			logger.Error().Err(err).Str("match_id", matchID).Msg("failed to send defeat notification")
		}
	}

	return outcome, nil
}

func (e *Engine) recordHistory(ctx context.Context, player domain.TrackedPlayer, outcome Outcome, oldRank, newRank *domain.Rank, logger zerolog.Logger) {
	if e.history == nil {
		return
	}
	err := e.history.Record(ctx, domain.RankHistory{
		MatchID:    outcome.MatchID,
		AccountID:  player.AccountID,
		Queue:      outcome.Queue,
		Win:        outcome.Win,
		LPDelta:    outcome.LPDelta,
		OldRank:    oldRank,
		NewRank:    newRank,
		RecordedAt: time.Now(),
	})
	if err != nil {
		logger.Warn().Err(err).Str("match_id", outcome.MatchID).Msg("failed to record rank history")
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
