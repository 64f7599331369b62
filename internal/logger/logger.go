package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// New reads LOG_LEVEL and LOG_FILE straight from the environment since the
// logger is built before the config.
func New() zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger, fileErr := build(level, os.Getenv("LOG_FILE"))
	if fileErr != nil {
		logger.Warn().Err(fileErr).Msg("failed to open log file, logging to stdout only")
	}
	return logger
}

func build(level zerolog.Level, path string) (zerolog.Logger, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = os.Stdout
	var fileErr error
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fileErr = err
		} else {
			out = zerolog.MultiLevelWriter(os.Stdout, f)
		}
	}

	logger := zerolog.New(out).
		With().
		Timestamp().
		Caller().
		Logger()

	return logger.Level(level), fileErr
}

var Module = fx.Provide(New)
