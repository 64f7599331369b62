package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dyfl-backend/internal/domain"

	"github.com/rs/zerolog"
)

const playerColumns = `display_id, account_id,
	solo_tier, solo_division, solo_points,
	flex_tier, flex_division, flex_points,
	last_match_id, last_match_id_solo, last_match_id_flex,
	last_updated, created_at`

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*domain.TrackedPlayer, error) {
	var p domain.TrackedPlayer
	var soloTier, soloDiv, flexTier, flexDiv sql.NullString
	var soloPts, flexPts sql.NullInt64
	err := row.Scan(
		&p.DisplayID, &p.AccountID,
		&soloTier, &soloDiv, &soloPts,
		&flexTier, &flexDiv, &flexPts,
		&p.LastMatchID, &p.LastMatchIDSolo, &p.LastMatchIDFlex,
		&p.LastUpdated, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.SoloRank = rankFromColumns(soloTier, soloDiv, soloPts)
	p.FlexRank = rankFromColumns(flexTier, flexDiv, flexPts)
	return &p, nil
}

// ListAll returns every tracked player, least recently updated first.
func (r *PlayerRepository) ListAll(ctx context.Context) ([]domain.TrackedPlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM tracked_players ORDER BY last_updated ASC, display_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked players: %w", err)
	}
	defer rows.Close()

	var players []domain.TrackedPlayer
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracked player: %w", err)
		}
		players = append(players, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracked players: %w", err)
	}
	return players, nil
}

func (r *PlayerRepository) GetByDisplayID(ctx context.Context, displayID string) (*domain.TrackedPlayer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM tracked_players WHERE display_id = ?`, displayID)
	p, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tracked player %s: %w", displayID, err)
	}
	return p, nil
}

func (r *PlayerRepository) Create(ctx context.Context, p *domain.TrackedPlayer) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.LastUpdated.IsZero() {
		p.LastUpdated = now
	}

	soloTier, soloDiv, soloPts := rankColumns(p.SoloRank)
	flexTier, flexDiv, flexPts := rankColumns(p.FlexRank)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tracked_players (`+playerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.DisplayID, p.AccountID,
		soloTier, soloDiv, soloPts,
		flexTier, flexDiv, flexPts,
		p.LastMatchID, p.LastMatchIDSolo, p.LastMatchIDFlex,
		p.LastUpdated, p.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("tracked player %s: %w", p.DisplayID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create tracked player %s: %w", p.DisplayID, err)
	}

	r.logger.Debug().Str("display_id", p.DisplayID).Msg("tracked player created")
	return nil
}

// Update applies the non-nil fields of u and bumps last_updated.
func (r *PlayerRepository) Update(ctx context.Context, displayID string, u domain.PlayerUpdate) error {
	if u.IsEmpty() {
		r.logger.Debug().Str("display_id", displayID).Msg("empty update, only bumping last_updated")
	}
	sets := []string{"last_updated = ?"}
	args := []any{time.Now().UTC()}

	if u.LastMatchID != nil {
		sets = append(sets, "last_match_id = ?")
		args = append(args, *u.LastMatchID)
	}
	if u.LastMatchIDSolo != nil {
		sets = append(sets, "last_match_id_solo = ?")
		args = append(args, *u.LastMatchIDSolo)
	}
	if u.LastMatchIDFlex != nil {
		sets = append(sets, "last_match_id_flex = ?")
		args = append(args, *u.LastMatchIDFlex)
	}
	if u.SoloRank != nil {
		tier, div, pts := rankColumns(u.SoloRank)
		sets = append(sets, "solo_tier = ?", "solo_division = ?", "solo_points = ?")
		args = append(args, tier, div, pts)
	}
	if u.FlexRank != nil {
		tier, div, pts := rankColumns(u.FlexRank)
		sets = append(sets, "flex_tier = ?", "flex_division = ?", "flex_points = ?")
		args = append(args, tier, div, pts)
	}
	args = append(args, displayID)

	res, err := r.db.ExecContext(ctx,
		`UPDATE tracked_players SET `+strings.Join(sets, ", ")+` WHERE display_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update tracked player %s: %w", displayID, err)
	}
	return expectOneRow(res, displayID)
}

func (r *PlayerRepository) UpdateAccountID(ctx context.Context, displayID, accountID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tracked_players SET account_id = ?, last_updated = ? WHERE display_id = ?`,
		accountID, time.Now().UTC(), displayID)
	if isUniqueViolation(err) {
		return fmt.Errorf("account id for %s: %w", displayID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to update account id for %s: %w", displayID, err)
	}
	return expectOneRow(res, displayID)
}

// DeleteIfUnreferenced removes the player only when no friend row points at it.
func (r *PlayerRepository) DeleteIfUnreferenced(ctx context.Context, displayID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tracked_players
		 WHERE display_id = ?
		   AND NOT EXISTS (SELECT 1 FROM friends WHERE friends.display_id = tracked_players.display_id)`,
		displayID)
	if err != nil {
		return false, fmt.Errorf("failed to delete tracked player %s: %w", displayID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		r.logger.Info().Str("display_id", displayID).Msg("tracked player removed, no longer followed")
	}
	return n > 0, nil
}

// ForceDelete removes the player together with every friend row pointing at it.
func (r *PlayerRepository) ForceDelete(ctx context.Context, displayID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	friends, err := tx.ExecContext(ctx, `DELETE FROM friends WHERE display_id = ?`, displayID)
	if err != nil {
		return fmt.Errorf("failed to delete friend rows of %s: %w", displayID, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tracked_players WHERE display_id = ?`, displayID)
	if err != nil {
		return fmt.Errorf("failed to delete tracked player %s: %w", displayID, err)
	}
	if err := expectOneRow(res, displayID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	removed, _ := friends.RowsAffected()
	r.logger.Info().Str("display_id", displayID).Int64("friend_rows", removed).Msg("tracked player force removed")
	return nil
}

func expectOneRow(res sql.Result, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return nil
}
