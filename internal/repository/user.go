package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dyfl-backend/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type UserRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewUserRepository(sqlDB *sql.DB, logger zerolog.Logger) *UserRepository {
	return &UserRepository{db: sqlDB, logger: logger}
}

func (r *UserRepository) GetByDeviceID(ctx context.Context, deviceID string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, device_id, push_token, created_at, last_seen FROM users WHERE device_id = ?`, deviceID).
		Scan(&u.ID, &u.DeviceID, &u.PushToken, &u.CreatedAt, &u.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, deviceID string) (*domain.User, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nanoid: %w", err)
	}
	now := time.Now().UTC()
	u := &domain.User{ID: id, DeviceID: deviceID, CreatedAt: now, LastSeen: now}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, device_id, push_token, created_at, last_seen) VALUES (?, ?, '', ?, ?)`,
		u.ID, u.DeviceID, u.CreatedAt, u.LastSeen)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("user %s: %w", deviceID, ErrAlreadyExists)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Touch(ctx context.Context, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_seen = ? WHERE id = ?`, at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to touch user: %w", err)
	}
	return expectOneRow(res, userID)
}

func (r *UserRepository) SetPushToken(ctx context.Context, userID, token string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET push_token = ? WHERE id = ?`, token, userID)
	if err != nil {
		return fmt.Errorf("failed to set push token: %w", err)
	}
	return expectOneRow(res, userID)
}

// Delete removes the user and its friend rows, returning the display ids it
// was following so callers can drop players nobody tracks anymore.
func (r *UserRepository) Delete(ctx context.Context, deviceID string) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE device_id = ?`, deviceID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT display_id FROM friends WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	var followed []string
	for rows.Next() {
		var displayID string
		if err := rows.Scan(&displayID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		followed = append(followed, displayID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate friends: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM friends WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("failed to delete friends: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID); err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return followed, nil
}
