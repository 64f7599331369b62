package server

import (
	"time"

	"dyfl-backend/internal/domain"
	"dyfl-backend/internal/service"
)

type rankResponse struct {
	Tier     domain.Tier     `json:"tier"`
	Division domain.Division `json:"division"`
	Points   int             `json:"leaguePoints"`
}

func toRank(r *domain.Rank) *rankResponse {
	if r == nil {
		return nil
	}
	return &rankResponse{Tier: r.Tier, Division: r.Division, Points: r.Points}
}

type userResponse struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"deviceId"`
	PushToken string    `json:"pushToken,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	LastSeen  time.Time `json:"lastSeen"`
}

func toUser(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		DeviceID:  u.DeviceID,
		PushToken: u.PushToken,
		CreatedAt: u.CreatedAt,
		LastSeen:  u.LastSeen,
	}
}

type friendResponse struct {
	ID              string        `json:"id"`
	RiotID          string        `json:"riotId"`
	AddedAt         time.Time     `json:"addedAt"`
	AccountID       string        `json:"puuid,omitempty"`
	SoloQ           *rankResponse `json:"soloQ,omitempty"`
	Flex            *rankResponse `json:"flex,omitempty"`
	LastMatchID     string        `json:"lastMatchId,omitempty"`
	LastMatchIDSolo string        `json:"lastMatchIdSoloQ,omitempty"`
	LastMatchIDFlex string        `json:"lastMatchIdFlex,omitempty"`
	LastUpdated     *time.Time    `json:"lastUpdated,omitempty"`
}

func toFriend(v service.FriendView) friendResponse {
	resp := friendResponse{ID: v.ID, RiotID: v.DisplayID, AddedAt: v.CreatedAt}
	if p := v.Player; p != nil {
		resp.AccountID = p.AccountID
		resp.SoloQ = toRank(p.SoloRank)
		resp.Flex = toRank(p.FlexRank)
		resp.LastMatchID = p.LastMatchID
		resp.LastMatchIDSolo = p.LastMatchIDSolo
		resp.LastMatchIDFlex = p.LastMatchIDFlex
		updated := p.LastUpdated
		resp.LastUpdated = &updated
	}
	return resp
}

type addFriendRequest struct {
	DeviceID string `json:"deviceId"`
	RiotID   string `json:"riotId"`
}

type removeFriendsRequest struct {
	DeviceID string   `json:"deviceId"`
	RiotIDs  []string `json:"riotIds"`
	Force    bool     `json:"force"`
}

type removalResult struct {
	RiotID  string `json:"riotId"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type removeFriendsResponse struct {
	Total        int             `json:"total"`
	SuccessCount int             `json:"successCount"`
	FailedCount  int             `json:"failedCount"`
	Results      []removalResult `json:"results"`
}

type createUserRequest struct {
	DeviceID  string `json:"deviceId"`
	PushToken string `json:"pushToken"`
}

type pushRegisterRequest struct {
	Token string `json:"token"`
}

type historyResponse struct {
	MatchID    string        `json:"matchId"`
	Queue      string        `json:"queue"`
	Win        *bool         `json:"win"`
	LPDelta    int           `json:"lpDelta"`
	OldRank    *rankResponse `json:"oldRank,omitempty"`
	NewRank    *rankResponse `json:"newRank,omitempty"`
	RecordedAt time.Time     `json:"recordedAt"`
}

func toHistory(h domain.RankHistory) historyResponse {
	return historyResponse{
		MatchID:    h.MatchID,
		Queue:      string(h.Queue),
		Win:        h.Win,
		LPDelta:    h.LPDelta,
		OldRank:    toRank(h.OldRank),
		NewRank:    toRank(h.NewRank),
		RecordedAt: h.RecordedAt,
	}
}
