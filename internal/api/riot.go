package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"dyfl-backend/internal/config"
	"dyfl-backend/internal/constants"
	"dyfl-backend/internal/domain"
	"dyfl-backend/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const (
	queueTypeSolo = "RANKED_SOLO_5x5"
	queueTypeFlex = "RANKED_FLEX_SR"
)

type RiotClient struct {
	apiKey      string
	regionalURL string
	platformURL string
	client      *fasthttp.Client
	retry       RetryPolicy
	metrics     metrics.TrackerMetrics
	logger      zerolog.Logger
	rateLimitMu sync.RWMutex
	rateLimit   RateLimit
}

type RateLimit struct {
	// raw "limit:window" pairs, e.g. "20:1,100:120"
	AppLimit string `json:"app_limit"`
	AppCount string `json:"app_count"`

	// seconds, only set after a 429
	RetryAfter int `json:"retry_after"`

	UpdatedAt time.Time `json:"updated_at"`
}

type ClientOption func(*RiotClient)

func WithHTTPClient(client *fasthttp.Client) ClientOption {
	return func(c *RiotClient) { c.client = client }
}

func WithRetryPolicy(policy RetryPolicy) ClientOption {
	return func(c *RiotClient) { c.retry = policy }
}

func NewRiotClient(cfg *config.Config, m metrics.TrackerMetrics, logger zerolog.Logger, opts ...ClientOption) *RiotClient {
	policy := DefaultRetryPolicy()
	policy.MaxAttempts = cfg.RetryMaxAttempts
	policy.BaseDelay = cfg.RetryBaseDelay

	c := &RiotClient{
		apiKey:      cfg.RiotAPIKey,
		regionalURL: strings.TrimRight(cfg.RiotRegionalURL, "/"),
		platformURL: strings.TrimRight(cfg.RiotPlatformURL, "/"),
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		retry:   policy,
		metrics: m,
		logger:  logger,
		rateLimit: RateLimit{
			UpdatedAt: time.Now(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RiotClient) RateLimitInfo() RateLimit {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *RiotClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if limit := string(resp.Header.Peek("X-App-Rate-Limit")); limit != "" {
		c.rateLimit.AppLimit = limit
	}
	if count := string(resp.Header.Peek("X-App-Rate-Limit-Count")); count != "" {
		c.rateLimit.AppCount = count
	}
	c.rateLimit.RetryAfter = 0
	if retryAfter := string(resp.Header.Peek("Retry-After")); retryAfter != "" {
		if val, err := strconv.Atoi(retryAfter); err == nil {
			c.rateLimit.RetryAfter = val
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

// ResolveAccountID turns "name#tag" into the upstream puuid.
func (c *RiotClient) ResolveAccountID(ctx context.Context, displayID string) (string, error) {
	name, tag, err := domain.SplitDisplayID(displayID)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.regionalURL, url.PathEscape(name), url.PathEscape(tag))
	account, err := doRequest[AccountDTO](ctx, c, "resolve account", u)
	if err != nil {
		return "", err
	}
	return account.Puuid, nil
}

func (c *RiotClient) FetchRankEntries(ctx context.Context, accountID string) (*domain.RankSet, error) {
	u := fmt.Sprintf("%s/lol/league/v4/entries/by-puuid/%s", c.platformURL, url.PathEscape(accountID))
	entries, err := doRequest[[]LeagueEntryDTO](ctx, c, "fetch rank entries", u)
	if err != nil {
		return nil, err
	}

	set := &domain.RankSet{}
	for _, entry := range *entries {
		rank, ok := entry.toRank()
		if !ok {
			c.logger.Debug().
				Str("account_id", accountID).
				Str("queue_type", entry.QueueType).
				Str("tier", entry.Tier).
				Msg("ignoring unrecognized rank entry")
			continue
		}
		if rank.Points != entry.LeaguePoints {
			c.logger.Debug().
				Str("account_id", accountID).
				Str("tier", string(rank.Tier)).
				Int("league_points", entry.LeaguePoints).
				Int("points", rank.Points).
				Msg("league points clamped")
		}
		switch entry.QueueType {
		case queueTypeSolo:
			set.Solo = rank
		case queueTypeFlex:
			set.Flex = rank
		}
	}
	return set, nil
}

// FetchLatestMatchID returns "" when the player has no match in the queue.
func (c *RiotClient) FetchLatestMatchID(ctx context.Context, accountID string, queue domain.QueueKind) (string, error) {
	params := url.Values{}
	params.Set("start", "0")
	params.Set("count", "1")
	switch queue {
	case domain.QueueSolo:
		params.Set("queue", strconv.Itoa(domain.QueueIDRankedSolo))
	case domain.QueueFlex:
		params.Set("queue", strconv.Itoa(domain.QueueIDRankedFlex))
	}

	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?%s",
		c.regionalURL, url.PathEscape(accountID), params.Encode())
	ids, err := doRequest[[]string](ctx, c, "fetch latest match id", u)
	if err != nil {
		return "", err
	}
	if len(*ids) == 0 {
		return "", nil
	}
	return (*ids)[0], nil
}

func (c *RiotClient) FetchMatchSummary(ctx context.Context, matchID string) (*domain.MatchSummary, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.regionalURL, url.PathEscape(matchID))
	match, err := doRequest[MatchDTO](ctx, c, "fetch match summary", u)
	if err != nil {
		return nil, err
	}

	summary := &domain.MatchSummary{
		MatchID:         matchID,
		QueueID:         match.Info.QueueID,
		Queue:           domain.QueueKindFromID(match.Info.QueueID),
		DurationSeconds: match.Info.GameDuration,
		Participants:    make([]domain.ParticipantResult, 0, len(match.Info.Participants)),
	}
	for _, p := range match.Info.Participants {
		summary.Participants = append(summary.Participants, domain.ParticipantResult{
			AccountID:    p.Puuid,
			Win:          p.Win,
			ChampionID:   p.ChampionID,
			ChampionName: p.ChampionName,
			Kills:        p.Kills,
			Deaths:       p.Deaths,
			Assists:      p.Assists,
		})
	}
	return summary, nil
}

func doRequest[T any](ctx context.Context, client *RiotClient, op, url string) (*T, error) {
	var result *T
	attempt := 0
	err := client.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		var err error
		result, err = doOnce[T](ctx, client, op, url)
		if err != nil {
			client.logger.Debug().
				Err(err).
				Str("op", op).
				Int("attempt", attempt).
				Msg("riot api attempt failed")
		}
		return err
	})
	if err != nil {
		client.metrics.AddUpstreamError(KindName(err))
		return nil, err
	}
	return result, nil
}

func doOnce[T any](ctx context.Context, client *RiotClient, op, url string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: op, Kind: classifyTransport(err), Err: err}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("X-Riot-Token", client.apiKey)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = client.client.DoDeadline(req, resp, deadline)
	} else {
		err = client.client.Do(req, resp)
	}
	if err != nil {
		return nil, &Error{Op: op, Kind: classifyTransport(err), Err: err}
	}

	client.updateRateLimit(resp)

	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		return nil, &Error{Op: op, Status: status, Kind: classifyStatus(status)}
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, &Error{Op: op, Status: fasthttp.StatusOK, Kind: ErrUnknown, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return &result, nil
}

type AccountDTO struct {
	Puuid    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

type LeagueEntryDTO struct {
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

func (e LeagueEntryDTO) toRank() (*domain.Rank, bool) {
	points := e.LeaguePoints
	if points < domain.MinPoints {
		points = domain.MinPoints
	}
	if points > domain.MaxPoints {
		points = domain.MaxPoints
	}
	rank := &domain.Rank{
		Tier:     domain.Tier(strings.ToUpper(e.Tier)),
		Division: domain.Division(strings.ToUpper(e.Rank)),
		Points:   points,
	}
	if err := rank.Validate(); err != nil {
		return nil, false
	}
	return rank, true
}

type MatchDTO struct {
	Metadata struct {
		MatchID string `json:"matchId"`
	} `json:"metadata"`
	Info struct {
		QueueID      int              `json:"queueId"`
		GameDuration int              `json:"gameDuration"`
		Participants []ParticipantDTO `json:"participants"`
	} `json:"info"`
}

type ParticipantDTO struct {
	Puuid        string `json:"puuid"`
	Win          bool   `json:"win"`
	ChampionID   int    `json:"championId"`
	ChampionName string `json:"championName"`
	Kills        int    `json:"kills"`
	Deaths       int    `json:"deaths"`
	Assists      int    `json:"assists"`
}
