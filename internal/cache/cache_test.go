package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dyfl-backend/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchIsLoadedOnce(t *testing.T) {
	c := NewWithPolicy(Never(), zerolog.Nop())
	var loads atomic.Int32
	load := func(context.Context) (*domain.MatchSummary, error) {
		loads.Add(1)
		return &domain.MatchSummary{MatchID: "EUW1_1", Queue: domain.QueueSolo}, nil
	}

	for i := 0; i < 3; i++ {
		m, err := c.Match(context.Background(), "EUW1_1", load)
		require.NoError(t, err)
		assert.Equal(t, "EUW1_1", m.MatchID)
	}
	assert.Equal(t, int32(1), loads.Load())
}

func TestConcurrentLoadsCollapse(t *testing.T) {
	c := NewWithPolicy(Never(), zerolog.Nop())
	var loads atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (*domain.MatchSummary, error) {
		loads.Add(1)
		<-release
		return &domain.MatchSummary{MatchID: "EUW1_2"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Match(context.Background(), "EUW1_2", load)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
}

func TestLoadErrorIsNotCached(t *testing.T) {
	c := NewWithPolicy(Never(), zerolog.Nop())
	boom := errors.New("boom")
	calls := 0
	load := func(context.Context) (*domain.MatchSummary, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return &domain.MatchSummary{MatchID: "EUW1_3"}, nil
	}

	_, err := c.Match(context.Background(), "EUW1_3", load)
	assert.ErrorIs(t, err, boom)

	m, err := c.Match(context.Background(), "EUW1_3", load)
	require.NoError(t, err)
	assert.Equal(t, "EUW1_3", m.MatchID)
	assert.Equal(t, 2, calls)
}

func TestRanksDoNotSurviveBeginCycle(t *testing.T) {
	c := NewWithPolicy(Never(), zerolog.Nop())
	calls := 0
	load := func(context.Context) (*domain.RankSet, error) {
		calls++
		return &domain.RankSet{Solo: &domain.Rank{Tier: domain.TierGold, Division: domain.DivisionII, Points: calls}}, nil
	}
	matchLoad := func(context.Context) (*domain.MatchSummary, error) {
		return &domain.MatchSummary{MatchID: "EUW1_4"}, nil
	}

	first, err := c.Ranks(context.Background(), "acc", load)
	require.NoError(t, err)
	again, err := c.Ranks(context.Background(), "acc", load)
	require.NoError(t, err)
	assert.Same(t, first, again)
	_, err = c.Match(context.Background(), "EUW1_4", matchLoad)
	require.NoError(t, err)

	c.BeginCycle()

	fresh, err := c.Ranks(context.Background(), "acc", load)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Solo.Points)

	matches, ranks := c.Len()
	assert.Equal(t, 1, matches, "match summaries survive a cycle")
	assert.Equal(t, 1, ranks)
}

func TestMaybeEvict(t *testing.T) {
	fire := false
	c := NewWithPolicy(func() bool { return fire }, zerolog.Nop())
	_, err := c.Match(context.Background(), "EUW1_5", func(context.Context) (*domain.MatchSummary, error) {
		return &domain.MatchSummary{MatchID: "EUW1_5"}, nil
	})
	require.NoError(t, err)

	assert.False(t, c.MaybeEvict())
	matches, _ := c.Len()
	assert.Equal(t, 1, matches)

	fire = true
	assert.True(t, c.MaybeEvict())
	matches, ranks := c.Len()
	assert.Zero(t, matches)
	assert.Zero(t, ranks)
}

func TestProbabilisticBounds(t *testing.T) {
	always := Probabilistic(1)
	never := Probabilistic(0)
	for i := 0; i < 100; i++ {
		assert.True(t, always())
		assert.False(t, never())
	}
}
