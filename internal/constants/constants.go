package constants

import "time"

const (
	DefaultRegionalURL = "https://europe.api.riotgames.com"
	DefaultPlatformURL = "https://euw1.api.riotgames.com"
)

const (
	DefaultPollInterval             = 2 * time.Minute
	DefaultBatchSize                = 3
	DefaultBatchPause               = 1 * time.Second
	DefaultRetryMaxAttempts         = 3
	DefaultRetryBaseDelay           = 1 * time.Second
	DefaultCacheEvictionProbability = 0.1
	DefaultNATSSubject              = "dyfl.notifications"
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
	// one player: up to four upstream calls, each possibly retried
	ReconcileTimeout = 90 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	RankHistoryLimit = 20
)
