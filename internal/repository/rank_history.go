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

type RankHistoryRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRankHistoryRepository(sqlDB *sql.DB, logger zerolog.Logger) *RankHistoryRepository {
	return &RankHistoryRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Record stores one ranked result. A second record for the same account and
// match is ignored.
func (r *RankHistoryRepository) Record(ctx context.Context, record domain.RankHistory) error {
	return r.RecordBatch(ctx, []domain.RankHistory{record})
}

func (r *RankHistoryRepository) RecordBatch(ctx context.Context, records []domain.RankHistory) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rank_history (
			id, match_id, account_id, queue, win, lp_delta,
			old_tier, old_division, old_points,
			new_tier, new_division, new_points,
			recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, match_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare rank history insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		id := record.ID
		if id == "" {
			id, err = gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
		}
		recordedAt := record.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = time.Now()
		}

		var win any
		if record.Win != nil {
			win = *record.Win
		}
		oldTier, oldDiv, oldPts := rankColumns(record.OldRank)
		newTier, newDiv, newPts := rankColumns(record.NewRank)

		_, err := stmt.ExecContext(ctx,
			id, record.MatchID, record.AccountID, string(record.Queue), win, record.LPDelta,
			oldTier, oldDiv, oldPts,
			newTier, newDiv, newPts,
			recordedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert rank history: %w", err)
		}
	}

	return tx.Commit()
}

func (r *RankHistoryRepository) ListByAccountID(ctx context.Context, accountID string, limit int) ([]domain.RankHistory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, match_id, account_id, queue, win, lp_delta,
			old_tier, old_division, old_points,
			new_tier, new_division, new_points,
			recorded_at
		 FROM rank_history
		 WHERE account_id = ?
		 ORDER BY recorded_at DESC
		 LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rank history: %w", err)
	}
	defer rows.Close()

	var result []domain.RankHistory
	for rows.Next() {
		var (
			h                                domain.RankHistory
			queue                            string
			win                              sql.NullBool
			oldTier, oldDiv, newTier, newDiv sql.NullString
			oldPts, newPts                   sql.NullInt64
		)
		err := rows.Scan(&h.ID, &h.MatchID, &h.AccountID, &queue, &win, &h.LPDelta,
			&oldTier, &oldDiv, &oldPts,
			&newTier, &newDiv, &newPts,
			&h.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rank history: %w", err)
		}
		h.Queue = domain.QueueKind(queue)
		if win.Valid {
			w := win.Bool
			h.Win = &w
		}
		h.OldRank = rankFromColumns(oldTier, oldDiv, oldPts)
		h.NewRank = rankFromColumns(newTier, newDiv, newPts)
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rank history: %w", err)
	}
	return result, nil
}
