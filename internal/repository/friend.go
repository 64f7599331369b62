package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dyfl-backend/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type FriendRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewFriendRepository(sqlDB *sql.DB, logger zerolog.Logger) *FriendRepository {
	return &FriendRepository{db: sqlDB, logger: logger}
}

func (r *FriendRepository) ListByUser(ctx context.Context, userID string) ([]domain.Friend, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, display_id, created_at FROM friends WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	var friends []domain.Friend
	for rows.Next() {
		var f domain.Friend
		if err := rows.Scan(&f.ID, &f.UserID, &f.DisplayID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate friends: %w", err)
	}
	return friends, nil
}

func (r *FriendRepository) Add(ctx context.Context, userID, displayID string) (*domain.Friend, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nanoid: %w", err)
	}
	f := &domain.Friend{ID: id, UserID: userID, DisplayID: displayID, CreatedAt: time.Now().UTC()}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO friends (id, user_id, display_id, created_at) VALUES (?, ?, ?, ?)`,
		f.ID, f.UserID, f.DisplayID, f.CreatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("friend %s: %w", displayID, ErrAlreadyExists)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add friend: %w", err)
	}
	return f, nil
}

func (r *FriendRepository) Remove(ctx context.Context, userID, displayID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM friends WHERE user_id = ? AND display_id = ?`, userID, displayID)
	if err != nil {
		return fmt.Errorf("failed to remove friend: %w", err)
	}
	return expectOneRow(res, displayID)
}

func (r *FriendRepository) CountFollowers(ctx context.Context, displayID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM friends WHERE display_id = ?`, displayID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count followers: %w", err)
	}
	return n, nil
}

// ListFollowers returns the users that have displayID in their friend list.
func (r *FriendRepository) ListFollowers(ctx context.Context, displayID string) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.device_id, u.push_token, u.created_at, u.last_seen
		 FROM friends f JOIN users u ON u.id = f.user_id
		 WHERE f.display_id = ?
		 ORDER BY u.created_at ASC, u.id ASC`, displayID)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.DeviceID, &u.PushToken, &u.CreatedAt, &u.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan follower: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate followers: %w", err)
	}
	return users, nil
}
