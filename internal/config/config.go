package config

import (
	"fmt"
	"time"

	"dyfl-backend/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type Config struct {
	RiotAPIKey      string
	RiotRegionalURL string
	RiotPlatformURL string

	DBPath     string
	ServerPort string
	LogLevel   string
	LogFile    string

	PollInterval time.Duration
	BatchSize    int
	BatchPause   time.Duration

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	CacheEvictionProbability float64

	NATSURL     string
	NATSSubject string
}

func LoadDotEnv() error {
	return godotenv.Load()
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		RiotAPIKey:               v.GetString("RIOT_API_KEY"),
		RiotRegionalURL:          v.GetString("RIOT_REGIONAL_URL"),
		RiotPlatformURL:          v.GetString("RIOT_PLATFORM_URL"),
		DBPath:                   v.GetString("DB_PATH"),
		ServerPort:               v.GetString("SERVER_PORT"),
		LogLevel:                 v.GetString("LOG_LEVEL"),
		LogFile:                  v.GetString("LOG_FILE"),
		PollInterval:             v.GetDuration("POLL_INTERVAL"),
		BatchSize:                v.GetInt("BATCH_SIZE"),
		BatchPause:               v.GetDuration("BATCH_PAUSE"),
		RetryMaxAttempts:         v.GetInt("RETRY_MAX_ATTEMPTS"),
		RetryBaseDelay:           v.GetDuration("RETRY_BASE_DELAY"),
		CacheEvictionProbability: v.GetFloat64("CACHE_EVICTION_PROBABILITY"),
		NATSURL:                  v.GetString("NATS_URL"),
		NATSSubject:              v.GetString("NATS_SUBJECT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("regional_url", cfg.RiotRegionalURL).
		Str("platform_url", cfg.RiotPlatformURL).
		Dur("poll_interval", cfg.PollInterval).
		Int("batch_size", cfg.BatchSize).
		Dur("batch_pause", cfg.BatchPause).
		Int("retry_max_attempts", cfg.RetryMaxAttempts).
		Dur("retry_base_delay", cfg.RetryBaseDelay).
		Float64("cache_eviction_probability", cfg.CacheEvictionProbability).
		Bool("nats_enabled", cfg.NATSURL != "").
		Msg("configuration loaded")

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("RIOT_REGIONAL_URL", constants.DefaultRegionalURL)
	v.SetDefault("RIOT_PLATFORM_URL", constants.DefaultPlatformURL)
	v.SetDefault("DB_PATH", "dyfl.db")
	v.SetDefault("SERVER_PORT", "3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("POLL_INTERVAL", constants.DefaultPollInterval)
	v.SetDefault("BATCH_SIZE", constants.DefaultBatchSize)
	v.SetDefault("BATCH_PAUSE", constants.DefaultBatchPause)
	v.SetDefault("RETRY_MAX_ATTEMPTS", constants.DefaultRetryMaxAttempts)
	v.SetDefault("RETRY_BASE_DELAY", constants.DefaultRetryBaseDelay)
	v.SetDefault("CACHE_EVICTION_PROBABILITY", constants.DefaultCacheEvictionProbability)
	v.SetDefault("NATS_SUBJECT", constants.DefaultNATSSubject)
}

func (c *Config) validate() error {
	if c.RiotAPIKey == "" {
		return fmt.Errorf("RIOT_API_KEY is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1, got %d", c.BatchSize)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.CacheEvictionProbability < 0 || c.CacheEvictionProbability > 1 {
		return fmt.Errorf("CACHE_EVICTION_PROBABILITY must be within [0,1], got %v", c.CacheEvictionProbability)
	}
	return nil
}

var Module = fx.Provide(Load)
