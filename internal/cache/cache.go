package cache

import (
	"context"
	"math/rand/v2"

	"dyfl-backend/internal/config"
	"dyfl-backend/internal/domain"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// EvictionPolicy is consulted once per pass; true clears the whole cache.
type EvictionPolicy func() bool

func Probabilistic(p float64) EvictionPolicy {
	return func() bool {
		return rand.Float64() < p
	}
}

func Never() EvictionPolicy {
	return func() bool { return false }
}

// Cache memoizes match summaries for the process lifetime and rank sets for
// a single detection cycle. Loads for the same key are collapsed.
type Cache struct {
	matches *gocache.Cache
	ranks   *gocache.Cache
	sf      singleflight.Group
	evict   EvictionPolicy
	logger  zerolog.Logger
}

func New(cfg *config.Config, logger zerolog.Logger) *Cache {
	return NewWithPolicy(Probabilistic(cfg.CacheEvictionProbability), logger)
}

func NewWithPolicy(policy EvictionPolicy, logger zerolog.Logger) *Cache {
	if policy == nil {
		policy = Never()
	}
	return &Cache{
		matches: gocache.New(gocache.NoExpiration, 0),
		ranks:   gocache.New(gocache.NoExpiration, 0),
		evict:   policy,
		logger:  logger,
	}
}

func (c *Cache) Match(ctx context.Context, matchID string, load func(ctx context.Context) (*domain.MatchSummary, error)) (*domain.MatchSummary, error) {
	if v, ok := c.matches.Get(matchID); ok {
		return v.(*domain.MatchSummary), nil
	}

	v, err, _ := c.sf.Do("match:"+matchID, func() (interface{}, error) {
		if v, ok := c.matches.Get(matchID); ok {
			return v, nil
		}
		match, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if match != nil {
			c.matches.SetDefault(matchID, match)
		}
		return match, nil
	})
	if err != nil {
		return nil, err
	}
	match, _ := v.(*domain.MatchSummary)
	return match, nil
}

func (c *Cache) Ranks(ctx context.Context, accountID string, load func(ctx context.Context) (*domain.RankSet, error)) (*domain.RankSet, error) {
	if v, ok := c.ranks.Get(accountID); ok {
		return v.(*domain.RankSet), nil
	}

	v, err, _ := c.sf.Do("ranks:"+accountID, func() (interface{}, error) {
		if v, ok := c.ranks.Get(accountID); ok {
			return v, nil
		}
		ranks, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if ranks != nil {
			c.ranks.SetDefault(accountID, ranks)
		}
		return ranks, nil
	})
	if err != nil {
		return nil, err
	}
	ranks, _ := v.(*domain.RankSet)
	return ranks, nil
}

// BeginCycle drops rank sets; they are only valid within one pass.
func (c *Cache) BeginCycle() {
	c.ranks.Flush()
}

// MaybeEvict clears everything when the eviction policy fires.
func (c *Cache) MaybeEvict() bool {
	if !c.evict() {
		return false
	}
	matches, ranks := c.Len()
	c.matches.Flush()
	c.ranks.Flush()
	c.logger.Info().
		Int("matches", matches).
		Int("ranks", ranks).
		Msg("cache cleared")
	return true
}

func (c *Cache) Len() (matches, ranks int) {
	return c.matches.ItemCount(), c.ranks.ItemCount()
}
