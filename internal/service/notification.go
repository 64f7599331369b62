package service

import (
	"context"
	"fmt"
	"time"

	"dyfl-backend/internal/domain"
	"dyfl-backend/internal/metrics"

	"github.com/rs/zerolog"
)

type FollowerLister interface {
	ListFollowers(ctx context.Context, displayID string) ([]domain.User, error)
}

type NotificationService struct {
	followers FollowerLister
	publisher Publisher
	metrics   metrics.TrackerMetrics
	logger    zerolog.Logger
}

func NewNotificationService(followers FollowerLister, publisher Publisher, m metrics.TrackerMetrics, logger zerolog.Logger) *NotificationService {
	return &NotificationService{
		followers: followers,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// NotifyDefeat publishes one event addressed to every user following the player.
func (s *NotificationService) NotifyDefeat(ctx context.Context, defeat domain.Defeat) error {
	users, err := s.followers.ListFollowers(ctx, defeat.DisplayID)
	if err != nil {
		return fmt.Errorf("failed to list followers of %s: %w", defeat.DisplayID, err)
	}
	if len(users) == 0 {
		s.logger.Debug().Str("display_id", defeat.DisplayID).Msg("no followers, skipping notification")
		return nil
	}

	event := domain.NotificationEvent{
		Recipients: make([]string, 0, len(users)),
		Message:    FormatDefeatMessage(defeat),
		DisplayID:  defeat.DisplayID,
		MatchID:    defeat.MatchID,
		CreatedAt:  time.Now().UTC(),
	}
	for _, u := range users {
		event.Recipients = append(event.Recipients, u.DeviceID)
		if u.PushToken != "" {
			event.PushTokens = append(event.PushTokens, u.PushToken)
		}
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.AddNotification("failed")
		return fmt.Errorf("failed to publish defeat notification: %w", err)
	}
	s.metrics.AddNotification("published")

	s.logger.Info().
		Str("display_id", defeat.DisplayID).
		Str("match_id", defeat.MatchID).
		Int("recipients", len(event.Recipients)).
		Msg("defeat notification published")
	return nil
}

// FormatDefeatMessage renders e.g.
// "SoloQ - Faker#KR1 lost with Ahri (4/7/9) in 31:32 minutes (-18 LP)".
func FormatDefeatMessage(d domain.Defeat) string {
	p := d.Participant
	msg := fmt.Sprintf("%s - %s lost with %s (%d/%d/%d) in %s minutes",
		d.Queue, d.DisplayID, p.ChampionName, p.Kills, p.Deaths, p.Assists, FormatDuration(d.DurationSeconds))

	if d.RankChange != nil && d.RankChange.Direction == domain.Demotion {
		return fmt.Sprintf("%s + demotion (%s, -%d LP)", msg, d.RankChange, d.LPLoss)
	}
	if d.LPLoss > 0 {
		msg += fmt.Sprintf(" (-%d LP)", d.LPLoss)
	}
	return msg
}

// FormatDuration renders seconds as m:ss.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
