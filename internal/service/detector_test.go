package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dyfl-backend/internal/cache"
	"dyfl-backend/internal/config"
	"dyfl-backend/internal/domain"
	"dyfl-backend/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcilerFunc func(ctx context.Context, p domain.TrackedPlayer) (Outcome, error)

func (f reconcilerFunc) Reconcile(ctx context.Context, p domain.TrackedPlayer) (Outcome, error) {
	return f(ctx, p)
}

func playersN(n int) []domain.TrackedPlayer {
	players := make([]domain.TrackedPlayer, n)
	for i := range players {
		players[i] = domain.TrackedPlayer{
			DisplayID: fmt.Sprintf("Player%d#EUW", i),
			AccountID: fmt.Sprintf("acc-%d", i),
		}
	}
	return players
}

func newTestDetector(store PlayerStore, engine Reconciler, evict cache.EvictionPolicy) (*Detector, *[]time.Duration) {
	cfg := &config.Config{BatchSize: 3, BatchPause: time.Second}
	d := NewDetector(cfg, store, engine, cache.NewWithPolicy(evict, zerolog.Nop()), metrics.Nop(), zerolog.Nop())

	var mu sync.Mutex
	var pauses []time.Duration
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		pauses = append(pauses, dur)
		return ctx.Err()
	}
	return d, &pauses
}

func TestRunPassBatches(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	engine := reconcilerFunc(func(_ context.Context, p domain.TrackedPlayer) (Outcome, error) {
		mu.Lock()
		seen[p.DisplayID]++
		mu.Unlock()
		if p.DisplayID == "Player2#EUW" {
			return Outcome{Kind: RankedResult, MatchID: "EUW1_1"}, nil
		}
		return Outcome{Kind: NoNewMatch}, nil
	})
	d, pauses := newTestDetector(newFakePlayerStore(playersN(7)...), engine, cache.Never())

	report, err := d.RunPass(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, report.Batches)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *pauses)
	assert.Len(t, report.Results, 7)
	assert.Len(t, seen, 7)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
	assert.Equal(t, 1, report.NewRankedGames)
	assert.Zero(t, report.Failures)
	assert.False(t, report.CacheEvicted)
}

func TestRunPassIsolatesFailures(t *testing.T) {
	engine := reconcilerFunc(func(_ context.Context, p domain.TrackedPlayer) (Outcome, error) {
		switch p.DisplayID {
		case "Player3#EUW":
			return Outcome{Kind: NoNewMatch}, errors.New("riot api temporarily unavailable")
		case "Player5#EUW":
			panic("nil match summary")
		}
		return Outcome{Kind: NoNewMatch}, nil
	})
	d, _ := newTestDetector(newFakePlayerStore(playersN(7)...), engine, cache.Never())

	report, err := d.RunPass(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.Failures)

	failed := map[string]bool{}
	for _, res := range report.Results {
		if res.Err != nil {
			failed[res.DisplayID] = true
			assert.Equal(t, NoNewMatch, res.Outcome.Kind)
		}
	}
	assert.Equal(t, map[string]bool{"Player3#EUW": true, "Player5#EUW": true}, failed)
}

func TestRunPassListFailureAborts(t *testing.T) {
	store := newFakePlayerStore()
	store.listErr = errors.New("database is locked")
	called := false
	engine := reconcilerFunc(func(context.Context, domain.TrackedPlayer) (Outcome, error) {
		called = true
		return Outcome{Kind: NoNewMatch}, nil
	})
	d, _ := newTestDetector(store, engine, cache.Never())

	report, err := d.RunPass(context.Background())

	require.Error(t, err)
	assert.Nil(t, report)
	assert.False(t, called)
}

func TestRunPassEmpty(t *testing.T) {
	engine := reconcilerFunc(func(context.Context, domain.TrackedPlayer) (Outcome, error) {
		return Outcome{Kind: NoNewMatch}, nil
	})
	d, pauses := newTestDetector(newFakePlayerStore(), engine, func() bool { return true })

	report, err := d.RunPass(context.Background())

	require.NoError(t, err)
	assert.Zero(t, report.Batches)
	assert.Empty(t, *pauses)
	assert.True(t, report.CacheEvicted)
}

func TestRunPassCancelledBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	engine := reconcilerFunc(func(context.Context, domain.TrackedPlayer) (Outcome, error) {
		cancel()
		return Outcome{Kind: NoNewMatch}, nil
	})
	d, _ := newTestDetector(newFakePlayerStore(playersN(7)...), engine, cache.Never())

	report, err := d.RunPass(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Batches)
	assert.Len(t, report.Results, 3)
}
