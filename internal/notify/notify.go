package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dyfl-backend/internal/domain"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSPublisher hands defeat notifications to the push delivery worker over
// a NATS subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	logger  zerolog.Logger
}

func NewNATSPublisher(url, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("dyfl-backend"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("disconnected from nats")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("reconnected to nats")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	logger.Info().Str("url", nc.ConnectedUrl()).Str("subject", subject).Msg("connected to nats")
	return &NATSPublisher{nc: nc, subject: subject, logger: logger}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event domain.NotificationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	p.logger.Debug().Str("subject", p.subject).Str("display_id", event.DisplayID).Msg("notification published")
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("failed to drain nats connection: %w", err)
	}
	return nil
}

// LogPublisher only logs notifications. Used when no NATS URL is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event domain.NotificationEvent) error {
	p.logger.Info().
		Str("display_id", event.DisplayID).
		Strs("recipients", event.Recipients).
		Str("message", event.Message).
		Msg("notification")
	return nil
}
