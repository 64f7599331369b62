package service

import (
	"context"
	"fmt"
	"time"

	"dyfl-backend/internal/config"
	"dyfl-backend/internal/constants"
	"dyfl-backend/internal/domain"
	"dyfl-backend/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Reconciler interface {
	Reconcile(ctx context.Context, player domain.TrackedPlayer) (Outcome, error)
}

type PlayerResult struct {
	DisplayID string
	Outcome   Outcome
	Err       error
}

type PassReport struct {
	Results        []PlayerResult
	Batches        int
	NewRankedGames int
	Failures       int
	CacheEvicted   bool
	Duration       time.Duration
}

type Detector struct {
	store      PlayerStore
	engine     Reconciler
	cache      LookupCache
	metrics    metrics.TrackerMetrics
	batchSize  int
	batchPause time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     zerolog.Logger
}

func NewDetector(cfg *config.Config, store PlayerStore, engine Reconciler, cache LookupCache, m metrics.TrackerMetrics, logger zerolog.Logger) *Detector {
	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = constants.DefaultBatchSize
	}
	return &Detector{
		store:      store,
		engine:     engine,
		cache:      cache,
		metrics:    m,
		batchSize:  batchSize,
		batchPause: cfg.BatchPause,
		sleep:      sleepContext,
		logger:     logger,
	}
}

// RunPass reconciles every tracked player, oldest update first, in
// sequential batches. Only a failure to list players aborts the pass.
func (d *Detector) RunPass(ctx context.Context) (*PassReport, error) {
	start := time.Now()
	d.cache.BeginCycle()

	players, err := d.store.ListAll(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to list tracked players, skipping pass")
		return nil, fmt.Errorf("failed to list tracked players: %w", err)
	}

	d.logger.Info().Int("players", len(players)).Int("batch_size", d.batchSize).Msg("detection pass started")

	report := &PassReport{Results: make([]PlayerResult, len(players))}
	for lo := 0; lo < len(players); lo += d.batchSize {
		if lo > 0 {
			if err := d.sleep(ctx, d.batchPause); err != nil {
				report.Results = report.Results[:lo]
				d.logger.Warn().Err(err).Int("processed", lo).Msg("detection pass interrupted")
				break
			}
		}
		hi := min(lo+d.batchSize, len(players))

		// plain group: one player's error must not cancel its batch mates
		var g errgroup.Group
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				report.Results[i] = d.reconcileOne(ctx, players[i])
				return nil
			})
		}
		_ = g.Wait()
		report.Batches++
	}

	for _, res := range report.Results {
		if res.Err != nil {
			report.Failures++
			d.metrics.AddOutcome("error")
			continue
		}
		d.metrics.AddOutcome(string(res.Outcome.Kind))
		if res.Outcome.Kind == RankedResult {
			report.NewRankedGames++
		}
	}

	report.CacheEvicted = d.cache.MaybeEvict()
	report.Duration = time.Since(start)
	d.metrics.ObservePass(report.Duration, len(players))

	d.logger.Info().
		Int("players", len(players)).
		Int("batches", report.Batches).
		Int("new_ranked_games", report.NewRankedGames).
		Int("failures", report.Failures).
		Bool("cache_evicted", report.CacheEvicted).
		Dur("duration", report.Duration).
		Msg("detection pass completed")

	return report, ctx.Err()
}

func (d *Detector) reconcileOne(ctx context.Context, player domain.TrackedPlayer) (res PlayerResult) {
	res.DisplayID = player.DisplayID
	defer func() {
		if r := recover(); r != nil {
			res.Outcome = Outcome{Kind: NoNewMatch}
			res.Err = fmt.Errorf("panic while reconciling: %v", r)
		}
		if res.Err != nil {
			d.logger.Error().
				Err(res.Err).
				Str("display_id", player.DisplayID).
				Str("account_id", player.AccountID).
				Msg("reconciliation failed")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, constants.ReconcileTimeout)
	defer cancel()

	res.Outcome, res.Err = d.engine.Reconcile(ctx, player)
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
