package fx

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"dyfl-backend/internal/api"
	"dyfl-backend/internal/cache"
	"dyfl-backend/internal/config"
	"dyfl-backend/internal/constants"
	"dyfl-backend/internal/database"
	"dyfl-backend/internal/logger"
	"dyfl-backend/internal/metrics"
	"dyfl-backend/internal/notify"
	"dyfl-backend/internal/repository"
	"dyfl-backend/internal/server"
	"dyfl-backend/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvidePublisher(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (service.Publisher, error) {
	if cfg.NATSURL == "" {
		logger.Warn().Msg("NATS_URL not set, notifications will only be logged")
		return notify.NewLogPublisher(logger), nil
	}

	pub, err := notify.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(pub.Close))
	return pub, nil
}

func closeDatabase(lc fx.Lifecycle, db *sql.DB, logger zerolog.Logger) {
	lc.Append(fx.StopHook(func() {
		if err := db.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing database connection")
		}
	}))
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	fx.Invoke(closeDatabase),
	// metrics
	fx.Provide(metrics.NewRegistry),
	fx.Provide(metrics.NewMetrics),
	// repos
	fx.Provide(fx.Annotate(repository.NewPlayerRepository, fx.As(new(service.PlayerStore)))),
	fx.Provide(fx.Annotate(repository.NewFriendRepository, fx.As(new(service.FriendStore), new(service.FollowerLister)))),
	fx.Provide(fx.Annotate(repository.NewUserRepository, fx.As(new(service.UserStore)))),
	fx.Provide(fx.Annotate(repository.NewRankHistoryRepository, fx.As(new(service.HistoryRecorder), new(service.HistoryLister)))),
	// api client + cache
	fx.Provide(fx.Annotate(api.NewRiotClient, fx.As(new(service.GameAPI)))),
	fx.Provide(fx.Annotate(cache.New, fx.As(new(service.LookupCache)))),
	// notifications
	fx.Provide(ProvidePublisher),
	fx.Provide(fx.Annotate(service.NewNotificationService, fx.As(new(service.DefeatNotifier)))),
	// detection
	fx.Provide(fx.Annotate(service.NewEngine, fx.As(new(service.Reconciler)))),
	fx.Provide(fx.Annotate(service.NewDetector, fx.As(fx.Self(), new(service.PassRunner)))),
	fx.Provide(service.NewScheduler),
	// svc
	fx.Provide(fx.Annotate(service.NewPlayerService, fx.As(fx.Self(), new(service.PlayerManager)))),
	fx.Provide(service.NewFriendService),
	fx.Provide(service.NewUserService),
	// server
	fx.Provide(server.NewServer),
)

// Serve starts the HTTP server and the detection scheduler with the app.
var Serve = fx.Invoke(runServer)

func runServer(lc fx.Lifecycle, srv *server.Server, scheduler *service.Scheduler, logger zerolog.Logger) {
	httpServer := srv.HTTPServer()

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", httpServer.Addr).Msg("server starting")
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()

			scheduler.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
			defer cancel()

			if err := scheduler.Stop(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("detection pass did not finish before shutdown")
			}

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
