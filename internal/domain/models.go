package domain

import (
	"time"
)

type TrackedPlayer struct {
	DisplayID       string
	AccountID       string
	SoloRank        *Rank
	FlexRank        *Rank
	LastMatchID     string
	LastMatchIDSolo string
	LastMatchIDFlex string
	LastUpdated     time.Time
	CreatedAt       time.Time
}

// RankFor returns the snapshot for a ranked queue, nil for unranked or Other.
func (p *TrackedPlayer) RankFor(queue QueueKind) *Rank {
	switch queue {
	case QueueSolo:
		return p.SoloRank
	case QueueFlex:
		return p.FlexRank
	}
	return nil
}

// CursorFor returns the last processed match id for a ranked queue.
func (p *TrackedPlayer) CursorFor(queue QueueKind) string {
	switch queue {
	case QueueSolo:
		return p.LastMatchIDSolo
	case QueueFlex:
		return p.LastMatchIDFlex
	}
	return ""
}

// PlayerUpdate carries the fields to persist after a reconciliation.
// Nil fields are left untouched.
type PlayerUpdate struct {
	LastMatchID     *string
	LastMatchIDSolo *string
	LastMatchIDFlex *string
	SoloRank        *Rank
	FlexRank        *Rank
}

func (u PlayerUpdate) IsEmpty() bool {
	return u.LastMatchID == nil && u.LastMatchIDSolo == nil && u.LastMatchIDFlex == nil &&
		u.SoloRank == nil && u.FlexRank == nil
}

type User struct {
	ID        string
	DeviceID  string
	PushToken string
	CreatedAt time.Time
	LastSeen  time.Time
}

type Friend struct {
	ID        string
	UserID    string
	DisplayID string
	CreatedAt time.Time
}

type RankHistory struct {
	ID         string // nanoid
	MatchID    string
	AccountID  string
	Queue      QueueKind
	Win        *bool
	LPDelta    int
	OldRank    *Rank
	NewRank    *Rank
	RecordedAt time.Time
}

// Defeat is everything the notification layer needs to describe a lost game.
type Defeat struct {
	DisplayID       string
	MatchID         string
	Queue           QueueKind
	Participant     ParticipantResult
	DurationSeconds int
	LPLoss          int
	RankChange      *RankChange
}

type NotificationEvent struct {
	// device ids of the followers
	Recipients []string  `json:"recipients"`
	PushTokens []string  `json:"push_tokens,omitempty"`
	Message    string    `json:"message"`
	DisplayID  string    `json:"display_id"`
	MatchID    string    `json:"match_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
