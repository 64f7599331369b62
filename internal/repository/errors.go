package repository

import (
	"database/sql"
	"errors"

	"dyfl-backend/internal/domain"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// rankColumns flattens an optional rank into three nullable columns.
func rankColumns(r *domain.Rank) (tier, division, points any) {
	if r == nil {
		return nil, nil, nil
	}
	return string(r.Tier), string(r.Division), r.Points
}

func rankFromColumns(tier, division sql.NullString, points sql.NullInt64) *domain.Rank {
	if !tier.Valid || tier.String == "" {
		return nil
	}
	return &domain.Rank{
		Tier:     domain.Tier(tier.String),
		Division: domain.Division(division.String),
		Points:   int(points.Int64),
	}
}
