package service

import (
	"context"
	"time"

	"dyfl-backend/internal/domain"
)

type GameAPI interface {
	ResolveAccountID(ctx context.Context, displayID string) (string, error)
	FetchRankEntries(ctx context.Context, accountID string) (*domain.RankSet, error)
	FetchLatestMatchID(ctx context.Context, accountID string, queue domain.QueueKind) (string, error)
	FetchMatchSummary(ctx context.Context, matchID string) (*domain.MatchSummary, error)
}

type PlayerStore interface {
	ListAll(ctx context.Context) ([]domain.TrackedPlayer, error)
	GetByDisplayID(ctx context.Context, displayID string) (*domain.TrackedPlayer, error)
	Create(ctx context.Context, p *domain.TrackedPlayer) error
	Update(ctx context.Context, displayID string, u domain.PlayerUpdate) error
	UpdateAccountID(ctx context.Context, displayID, accountID string) error
	DeleteIfUnreferenced(ctx context.Context, displayID string) (bool, error)
	ForceDelete(ctx context.Context, displayID string) error
}

type LookupCache interface {
	Match(ctx context.Context, matchID string, load func(ctx context.Context) (*domain.MatchSummary, error)) (*domain.MatchSummary, error)
	Ranks(ctx context.Context, accountID string, load func(ctx context.Context) (*domain.RankSet, error)) (*domain.RankSet, error)
	BeginCycle()
	MaybeEvict() bool
}

type DefeatNotifier interface {
	NotifyDefeat(ctx context.Context, defeat domain.Defeat) error
}

type HistoryRecorder interface {
	Record(ctx context.Context, record domain.RankHistory) error
}

type FriendStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Friend, error)
	Add(ctx context.Context, userID, displayID string) (*domain.Friend, error)
	Remove(ctx context.Context, userID, displayID string) error
	ListFollowers(ctx context.Context, displayID string) ([]domain.User, error)
}

type UserStore interface {
	GetByDeviceID(ctx context.Context, deviceID string) (*domain.User, error)
	Create(ctx context.Context, deviceID string) (*domain.User, error)
	Touch(ctx context.Context, userID string, at time.Time) error
	SetPushToken(ctx context.Context, userID, token string) error
	Delete(ctx context.Context, deviceID string) ([]string, error)
}

// Publisher hands a notification to the delivery side.
type Publisher interface {
	Publish(ctx context.Context, event domain.NotificationEvent) error
}
