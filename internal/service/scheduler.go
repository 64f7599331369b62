package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"dyfl-backend/internal/config"

	"github.com/rs/zerolog"
)

type PassRunner interface {
	RunPass(ctx context.Context) (*PassReport, error)
}

// Scheduler runs a pass on start and then every interval. A tick that fires
// while the previous pass is still running is skipped.
type Scheduler struct {
	runner   PassRunner
	interval time.Duration
	logger   zerolog.Logger

	running atomic.Bool
	skipped atomic.Int64
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewScheduler(cfg *config.Config, runner PassRunner, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: cfg.PollInterval,
		logger:   logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
	s.logger.Info().Dur("interval", s.interval).Msg("game detection scheduler started")
}

// Stop cancels the loop and waits for a running pass to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info().Msg("game detection scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick starts a pass in the background unless one is already running.
func (s *Scheduler) tick(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Warn().Msg("previous detection pass still running, skipping tick")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		if _, err := s.runner.RunPass(ctx); err != nil {
			s.logger.Error().Err(err).Msg("detection pass failed")
		}
	}()
	return true
}
